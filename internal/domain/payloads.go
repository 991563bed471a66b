/**
 * @description
 * This file defines the request payload shapes received from the client for
 * each onboarding operation. The per-step adapters validate these before
 * anything is written; a payload never reaches the record unvalidated.
 *
 * @dependencies
 * - time: Standard Go library.
 */

package domain

import "time"

// InitializeRequest starts (or idempotently resumes) onboarding for a user.
type InitializeRequest struct {
	Email  string `json:"email"`
	Locale string `json:"locale"`
}

// ConsentAcceptance is the client's acceptance of a single agreement.
type ConsentAcceptance struct {
	Version    string     `json:"version"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// ConsentsPayload carries all three agreement acceptances. All three must be
// present; partial consent is rejected outright, never partially stored.
type ConsentsPayload struct {
	TermsOfService *ConsentAcceptance `json:"tos"`
	Privacy        *ConsentAcceptance `json:"privacy"`
	RiskDisclosure *ConsentAcceptance `json:"risk"`
	MarkCompleted  bool               `json:"mark_completed"`
}

// ProfilePayload carries the user's personal details.
type ProfilePayload struct {
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	DateOfBirth   string  `json:"date_of_birth"` // YYYY-MM-DD
	Country       string  `json:"country"`       // ISO-3166 alpha-2
	PhoneNumber   *string `json:"phone_number,omitempty"`
	MarkCompleted bool    `json:"mark_completed"`
}

// KYCPayload carries the identity document to submit for verification.
type KYCPayload struct {
	DocumentType    string `json:"document_type"` // passport | drivers_license | national_id
	DocumentNumber  string `json:"document_number"`
	DocumentCountry string `json:"document_country"` // ISO-3166 alpha-2
	MarkCompleted   bool   `json:"mark_completed"`
}

// WalletPayload links a funding wallet.
type WalletPayload struct {
	Provider          string `json:"provider"`
	ExternalAccountID string `json:"external_account_id"`
	Currency          string `json:"currency"` // ISO-4217
	MarkCompleted     bool   `json:"mark_completed"`
}

// BrokerPayload requests creation of a brokerage sub-account.
type BrokerPayload struct {
	AccountType   string `json:"account_type"` // cash | margin
	MarkCompleted bool   `json:"mark_completed"`
}

// SecurityPayload enrolls two-factor authentication.
type SecurityPayload struct {
	Method        string `json:"method"` // totp | sms
	MarkCompleted bool   `json:"mark_completed"`
}

// PreferencesPayload saves notification and display preferences.
type PreferencesPayload struct {
	Locale             string  `json:"locale"`
	EmailNotifications bool    `json:"email_notifications"`
	PushNotifications  bool    `json:"push_notifications"`
	SMSNotifications   bool    `json:"sms_notifications"`
	TradingExperience  *string `json:"trading_experience,omitempty"` // none | some | experienced
	MarkCompleted      bool    `json:"mark_completed"`
}

// UpdateStepRequest moves the user to a step without a payload (welcome,
// tour, done, and back-navigation).
type UpdateStepRequest struct {
	Step      Step `json:"step"`
	Completed bool `json:"completed"`
}
