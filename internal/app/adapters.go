/**
 * @description
 * This file implements the per-step persistence adapters. Each adapter
 * validates its step's payload field by field, then replaces the matching
 * sub-record on the onboarding record wholesale (no field-level merging, so
 * a stale partial update can never silently drop data). Adapters never touch
 * the current step or the completed set; the facade sequences persistence
 * before the state transition so a validation failure leaves progress
 * untouched.
 *
 * @dependencies
 * - fmt, sort, strings, time, unicode: Standard Go libraries.
 * - internal/domain: Payload and sub-record types.
 */

package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/quantrail/onboarding-service/internal/domain"
)

// ValidationError reports field-level problems with a step payload. No state
// mutation happens when one is returned.
type ValidationError struct {
	Step   domain.Step
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Step, strings.Join(parts, "; "))
}

// newValidationError builds a ValidationError, or nil when no fields failed.
func newValidationError(step domain.Step, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Step: step, Fields: fields}
}

// StepAdapter validates a step payload and merges it into the record. Apply
// must be all-or-nothing: on error the record is untouched.
type StepAdapter interface {
	Step() domain.Step
	Apply(record *domain.OnboardingRecord, now time.Time) error
}

// ConsentsAdapter persists the three platform agreements.
type ConsentsAdapter struct {
	Payload domain.ConsentsPayload
}

func (a ConsentsAdapter) Step() domain.Step { return domain.StepConsents }

func (a ConsentsAdapter) Apply(record *domain.OnboardingRecord, now time.Time) error {
	fields := make(map[string]string)
	grants := make(map[string]domain.ConsentGrant, 3)
	for name, acceptance := range map[string]*domain.ConsentAcceptance{
		"tos":     a.Payload.TermsOfService,
		"privacy": a.Payload.Privacy,
		"risk":    a.Payload.RiskDisclosure,
	} {
		if acceptance == nil {
			fields[name] = "acceptance is required"
			continue
		}
		if strings.TrimSpace(acceptance.Version) == "" {
			fields[name+".version"] = "agreement version is required"
			continue
		}
		acceptedAt := now
		if acceptance.AcceptedAt != nil {
			acceptedAt = acceptance.AcceptedAt.UTC()
		}
		grants[name] = domain.ConsentGrant{Version: acceptance.Version, AcceptedAt: acceptedAt}
	}
	if err := newValidationError(domain.StepConsents, fields); err != nil {
		return err
	}

	record.Consents = &domain.ConsentsRecord{
		TermsOfService: grants["tos"],
		Privacy:        grants["privacy"],
		RiskDisclosure: grants["risk"],
	}
	return nil
}

// ProfileAdapter persists the user's personal details.
type ProfileAdapter struct {
	Payload domain.ProfilePayload
}

func (a ProfileAdapter) Step() domain.Step { return domain.StepProfile }

func (a ProfileAdapter) Apply(record *domain.OnboardingRecord, now time.Time) error {
	fields := make(map[string]string)

	firstName := strings.TrimSpace(a.Payload.FirstName)
	if firstName == "" {
		fields["first_name"] = "first name is required"
	}
	lastName := strings.TrimSpace(a.Payload.LastName)
	if lastName == "" {
		fields["last_name"] = "last name is required"
	}
	if _, err := time.Parse("2006-01-02", a.Payload.DateOfBirth); err != nil {
		fields["date_of_birth"] = "date of birth must be formatted YYYY-MM-DD"
	}
	country := strings.ToUpper(strings.TrimSpace(a.Payload.Country))
	if !validCountryCode(country) {
		fields["country"] = "country must be a recognized ISO-3166 alpha-2 code"
	}
	var phone *string
	if a.Payload.PhoneNumber != nil {
		trimmed := strings.TrimSpace(*a.Payload.PhoneNumber)
		if !validPhoneNumber(trimmed) {
			fields["phone_number"] = "phone number must be E.164 formatted"
		} else {
			phone = &trimmed
		}
	}
	if err := newValidationError(domain.StepProfile, fields); err != nil {
		return err
	}

	record.Profile = &domain.ProfileRecord{
		FirstName:   firstName,
		LastName:    lastName,
		DateOfBirth: a.Payload.DateOfBirth,
		Country:     country,
		PhoneNumber: phone,
	}
	return nil
}

// KYCAdapter persists the identity document submission. The provider
// interaction itself happens in the service; this adapter only stores the
// document details and keeps the inner status machine consistent.
type KYCAdapter struct {
	Payload domain.KYCPayload
}

var kycDocumentTypes = map[string]bool{
	"passport":        true,
	"drivers_license": true,
	"national_id":     true,
}

func (a KYCAdapter) Step() domain.Step { return domain.StepKYC }

func (a KYCAdapter) Apply(record *domain.OnboardingRecord, now time.Time) error {
	fields := make(map[string]string)

	docType := strings.ToLower(strings.TrimSpace(a.Payload.DocumentType))
	if !kycDocumentTypes[docType] {
		fields["document_type"] = "document type must be one of passport, drivers_license, national_id"
	}
	docNumber := strings.TrimSpace(a.Payload.DocumentNumber)
	if docNumber == "" {
		fields["document_number"] = "document number is required"
	}
	docCountry := strings.ToUpper(strings.TrimSpace(a.Payload.DocumentCountry))
	if !validCountryCode(docCountry) {
		fields["document_country"] = "document country must be a recognized ISO-3166 alpha-2 code"
	}
	if err := newValidationError(domain.StepKYC, fields); err != nil {
		return err
	}

	status := domain.KYCNotStarted
	var providerRef, providerStatus *string
	var submittedAt *time.Time
	if record.KYC != nil {
		// Re-saving documents keeps the verification state; only the document
		// fields are replaced.
		status = record.KYC.Status
		providerRef = record.KYC.ProviderRef
		providerStatus = record.KYC.ProviderStatus
		submittedAt = record.KYC.SubmittedAt
	}
	record.KYC = &domain.KYCRecord{
		Status:          status,
		DocumentType:    docType,
		DocumentNumber:  docNumber,
		DocumentCountry: docCountry,
		ProviderRef:     providerRef,
		ProviderStatus:  providerStatus,
		SubmittedAt:     submittedAt,
		UpdatedAt:       now,
	}
	return nil
}

// WalletAdapter persists the linked funding wallet.
type WalletAdapter struct {
	Payload domain.WalletPayload
}

func (a WalletAdapter) Step() domain.Step { return domain.StepWallet }

func (a WalletAdapter) Apply(record *domain.OnboardingRecord, now time.Time) error {
	fields := make(map[string]string)

	provider := strings.TrimSpace(a.Payload.Provider)
	if provider == "" {
		fields["provider"] = "wallet provider is required"
	}
	accountID := strings.TrimSpace(a.Payload.ExternalAccountID)
	if accountID == "" {
		fields["external_account_id"] = "external account id is required"
	}
	currency := strings.ToUpper(strings.TrimSpace(a.Payload.Currency))
	if !validCurrencyCode(currency) {
		fields["currency"] = "currency must be a 3-letter ISO-4217 code"
	}
	if err := newValidationError(domain.StepWallet, fields); err != nil {
		return err
	}

	record.Wallet = &domain.WalletRecord{
		Provider:          provider,
		ExternalAccountID: accountID,
		Currency:          currency,
		LinkedAt:          now,
	}
	return nil
}

// BrokerAdapter records the brokerage sub-account request. The provider call
// happens in the service; its outcome (account id or pending/error status) is
// written onto the sub-record afterwards.
type BrokerAdapter struct {
	Payload domain.BrokerPayload
}

func (a BrokerAdapter) Step() domain.Step { return domain.StepBroker }

func (a BrokerAdapter) Apply(record *domain.OnboardingRecord, now time.Time) error {
	accountType := strings.ToLower(strings.TrimSpace(a.Payload.AccountType))
	if accountType != "cash" && accountType != "margin" {
		return newValidationError(domain.StepBroker, map[string]string{
			"account_type": "account type must be cash or margin",
		})
	}

	record.Broker = &domain.BrokerRecord{
		Provider:    "alpaca",
		Status:      "pending",
		AccountType: accountType,
		CreatedAt:   now,
	}
	return nil
}

// SecurityAdapter enrolls two-factor authentication.
type SecurityAdapter struct {
	Payload domain.SecurityPayload
	// Skip records an explicit opt-out instead of an enrollment.
	Skip bool
}

func (a SecurityAdapter) Step() domain.Step { return domain.StepSecurity }

func (a SecurityAdapter) Apply(record *domain.OnboardingRecord, now time.Time) error {
	if a.Skip {
		record.Security = &domain.SecurityRecord{Skipped: true}
		return nil
	}

	method := strings.ToLower(strings.TrimSpace(a.Payload.Method))
	if method != "totp" && method != "sms" {
		return newValidationError(domain.StepSecurity, map[string]string{
			"method": "method must be totp or sms",
		})
	}
	enrolledAt := now
	record.Security = &domain.SecurityRecord{
		TwoFactorEnabled: true,
		Method:           &method,
		EnrolledAt:       &enrolledAt,
	}
	return nil
}

// PreferencesAdapter persists notification and display preferences.
type PreferencesAdapter struct {
	Payload domain.PreferencesPayload
}

var tradingExperienceLevels = map[string]bool{
	"none":        true,
	"some":        true,
	"experienced": true,
}

func (a PreferencesAdapter) Step() domain.Step { return domain.StepPreferences }

func (a PreferencesAdapter) Apply(record *domain.OnboardingRecord, now time.Time) error {
	fields := make(map[string]string)

	locale := strings.TrimSpace(a.Payload.Locale)
	if locale == "" {
		fields["locale"] = "locale is required"
	}
	var experience *string
	if a.Payload.TradingExperience != nil {
		level := strings.ToLower(strings.TrimSpace(*a.Payload.TradingExperience))
		if !tradingExperienceLevels[level] {
			fields["trading_experience"] = "trading experience must be one of none, some, experienced"
		} else {
			experience = &level
		}
	}
	if err := newValidationError(domain.StepPreferences, fields); err != nil {
		return err
	}

	record.Preferences = &domain.PreferencesRecord{
		Locale:             locale,
		EmailNotifications: a.Payload.EmailNotifications,
		PushNotifications:  a.Payload.PushNotifications,
		SMSNotifications:   a.Payload.SMSNotifications,
		TradingExperience:  experience,
	}
	return nil
}

// MarkerAdapter is the payload-free adapter for steps that only record a
// visit (welcome, tour, done, and back-navigation via update-step).
type MarkerAdapter struct {
	Target domain.Step
}

func (a MarkerAdapter) Step() domain.Step { return a.Target }

func (a MarkerAdapter) Apply(record *domain.OnboardingRecord, now time.Time) error {
	return nil
}

// validCountryCode accepts two ASCII uppercase letters. Full ISO-3166
// membership is the KYC provider's concern; this guards the storage format.
func validCountryCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// validCurrencyCode accepts three ASCII uppercase letters (ISO-4217 shape).
func validCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// validPhoneNumber accepts E.164 shaped numbers: leading +, 8-15 digits.
func validPhoneNumber(phone string) bool {
	if !strings.HasPrefix(phone, "+") {
		return false
	}
	digits := phone[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
