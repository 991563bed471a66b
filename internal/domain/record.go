/**
 * @description
 * This file defines the OnboardingRecord aggregate: one row per user holding
 * the current step, the set of completed steps, activity timestamps, and the
 * per-step payload sub-records. Sub-records are pointers so that an absent
 * payload is distinguishable from an empty one; each is replaced wholesale by
 * its step adapter, never field-merged.
 *
 * @dependencies
 * - time: Standard Go library.
 */

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OnboardingRecord is the persisted aggregate for a single user's onboarding
// progression. Mutated only through the transition engine and the per-step
// adapters.
type OnboardingRecord struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Locale      string `json:"locale"`
	CurrentStep Step   `json:"current_step"`
	// CompletedSteps has membership semantics only; insertion order is
	// irrelevant and re-adding a step is a no-op.
	CompletedSteps StepSet    `json:"completed_steps"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`

	Consents    *ConsentsRecord    `json:"consents,omitempty"`
	Profile     *ProfileRecord     `json:"profile,omitempty"`
	KYC         *KYCRecord         `json:"kyc,omitempty"`
	Wallet      *WalletRecord      `json:"wallet,omitempty"`
	Broker      *BrokerRecord      `json:"broker,omitempty"`
	Security    *SecurityRecord    `json:"security,omitempty"`
	Preferences *PreferencesRecord `json:"preferences,omitempty"`

	// Version backs the optimistic-concurrency check in the store; it is not
	// part of the caller-facing contract.
	Version int64 `json:"-"`
}

// StepSet is a membership set over onboarding steps, serialized as a sorted
// list of step names.
type StepSet map[Step]bool

// Add inserts s; adding an already-present step is a no-op.
func (ss StepSet) Add(s Step) {
	ss[s] = true
}

// Contains reports membership of s.
func (ss StepSet) Contains(s Step) bool {
	return ss[s]
}

// Len returns the number of steps in the set.
func (ss StepSet) Len() int {
	return len(ss)
}

// Clone returns an independent copy of the set.
func (ss StepSet) Clone() StepSet {
	out := make(StepSet, len(ss))
	for s := range ss {
		out[s] = true
	}
	return out
}

// Ordered returns the members in canonical step order.
func (ss StepSet) Ordered() []Step {
	out := make([]Step, 0, len(ss))
	for _, s := range StepOrder {
		if ss[s] {
			out = append(out, s)
		}
	}
	return out
}

// MarshalJSON encodes the set as a canonically ordered name list.
func (ss StepSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(ss))
	for _, s := range ss.Ordered() {
		names = append(names, s.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes a name list into the set.
func (ss *StepSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	out := make(StepSet, len(names))
	for _, name := range names {
		s, err := ParseStep(name)
		if err != nil {
			return err
		}
		out[s] = true
	}
	*ss = out
	return nil
}

// NewOnboardingRecord creates a fresh record positioned at the first step.
func NewOnboardingRecord(userID, email, locale string, now time.Time) *OnboardingRecord {
	return &OnboardingRecord{
		UserID:         userID,
		Email:          email,
		Locale:         locale,
		CurrentStep:    StepWelcome,
		CompletedSteps: make(StepSet),
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// ConsentGrant records acceptance of a single versioned agreement.
type ConsentGrant struct {
	Version    string    `json:"version"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// ConsentsRecord holds the three platform agreements. Partial acceptance is
// rejected by the adapter, never partially stored.
type ConsentsRecord struct {
	TermsOfService ConsentGrant `json:"tos"`
	Privacy        ConsentGrant `json:"privacy"`
	RiskDisclosure ConsentGrant `json:"risk"`
}

// ProfileRecord holds the user's personal details.
type ProfileRecord struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DateOfBirth string  `json:"date_of_birth"` // YYYY-MM-DD
	Country     string  `json:"country"`       // ISO-3166 alpha-2
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// KYCStatus is the inner verification status machine, independent of the
// outer onboarding step machine. The outer machine only observes whether the
// KYC step is marked complete, never this value.
type KYCStatus string

const (
	KYCNotStarted   KYCStatus = "not_started"
	KYCPending      KYCStatus = "pending"
	KYCUnderReview  KYCStatus = "under_review"
	KYCRequiresMore KYCStatus = "requires_more"
	KYCApproved     KYCStatus = "approved"
	KYCRejected     KYCStatus = "rejected"
	KYCExpired      KYCStatus = "expired"
	KYCFlagged      KYCStatus = "flagged"
)

// kycTransitions enumerates the permitted inner-status moves.
var kycTransitions = map[KYCStatus][]KYCStatus{
	KYCNotStarted:   {KYCPending},
	KYCPending:      {KYCUnderReview, KYCApproved, KYCRejected, KYCExpired, KYCFlagged},
	KYCUnderReview:  {KYCRequiresMore, KYCApproved, KYCRejected, KYCExpired, KYCFlagged},
	KYCRequiresMore: {KYCUnderReview, KYCRejected, KYCExpired, KYCFlagged},
	KYCApproved:     {},
	KYCRejected:     {},
	KYCExpired:      {},
	KYCFlagged:      {},
}

// CanTransition reports whether the inner KYC machine permits from → to.
// Identical from/to is treated as a permitted no-op.
func (from KYCStatus) CanTransition(to KYCStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range kycTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the inner machine has reached a final status.
func (s KYCStatus) Terminal() bool {
	switch s {
	case KYCApproved, KYCRejected, KYCExpired, KYCFlagged:
		return true
	}
	return false
}

// ValidKYCStatus reports whether s is a recognized inner status.
func ValidKYCStatus(s KYCStatus) bool {
	_, ok := kycTransitions[s]
	return ok
}

// KYCRecord holds the submitted identity document details plus the provider's
// verbatim status payload. This core interprets nothing beyond Status.
type KYCRecord struct {
	Status          KYCStatus  `json:"status"`
	DocumentType    string     `json:"document_type"`
	DocumentNumber  string     `json:"document_number"`
	DocumentCountry string     `json:"document_country"`
	ProviderRef     *string    `json:"provider_ref,omitempty"`
	ProviderStatus  *string    `json:"provider_status,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// WalletRecord holds the linked funding wallet.
type WalletRecord struct {
	Provider          string    `json:"provider"`
	ExternalAccountID string    `json:"external_account_id"`
	Currency          string    `json:"currency"` // ISO-4217
	LinkedAt          time.Time `json:"linked_at"`
}

// BrokerRecord holds the brokerage sub-account created with the provider.
type BrokerRecord struct {
	Provider    string    `json:"provider"`
	AccountID   *string   `json:"account_id,omitempty"`
	Status      string    `json:"status"`
	AccountType string    `json:"account_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// SecurityRecord holds the two-factor enrollment outcome. Skipped enrollment
// is recorded explicitly so the UI can re-prompt later.
type SecurityRecord struct {
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	Method           *string    `json:"method,omitempty"` // totp | sms
	EnrolledAt       *time.Time `json:"enrolled_at,omitempty"`
	Skipped          bool       `json:"skipped"`
}

// PreferencesRecord holds notification and display preferences.
type PreferencesRecord struct {
	Locale             string  `json:"locale"`
	EmailNotifications bool    `json:"email_notifications"`
	PushNotifications  bool    `json:"push_notifications"`
	SMSNotifications   bool    `json:"sms_notifications"`
	TradingExperience  *string `json:"trading_experience,omitempty"`
}

// StepCompletedEvent is published after a step is marked complete.
type StepCompletedEvent struct {
	EventID         string    `json:"event_id"`
	UserID          string    `json:"user_id"`
	Step            string    `json:"step"`
	PercentComplete int       `json:"percent_complete"`
	Timestamp       time.Time `json:"timestamp"`
}

// OnboardingCompletedEvent is published once, when the record first reaches
// the completed state.
type OnboardingCompletedEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

func init() {
	// Guard against a step being added to the order without a wire name;
	// the array types catch missing table entries, this catches empties.
	for _, s := range StepOrder {
		if stepNames[s] == "" {
			panic(fmt.Sprintf("onboarding step %d has no wire name", int(s)))
		}
	}
}
