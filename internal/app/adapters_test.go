package app

import (
	"errors"
	"testing"
	"time"

	"github.com/quantrail/onboarding-service/internal/domain"
)

func strPtr(s string) *string { return &s }

func validConsentsPayload() domain.ConsentsPayload {
	return domain.ConsentsPayload{
		TermsOfService: &domain.ConsentAcceptance{Version: "2026-01"},
		Privacy:        &domain.ConsentAcceptance{Version: "2026-01"},
		RiskDisclosure: &domain.ConsentAcceptance{Version: "2025-11"},
	}
}

func TestConsentsAdapterRejectsPartialConsent(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *domain.ConsentsPayload)
		field   string
	}{
		{name: "missing risk disclosure", mutate: func(p *domain.ConsentsPayload) { p.RiskDisclosure = nil }, field: "risk"},
		{name: "missing privacy", mutate: func(p *domain.ConsentsPayload) { p.Privacy = nil }, field: "privacy"},
		{name: "blank tos version", mutate: func(p *domain.ConsentsPayload) { p.TermsOfService.Version = "  " }, field: "tos.version"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := validConsentsPayload()
			tc.mutate(&payload)
			record := recordAt(domain.StepConsents)

			err := ConsentsAdapter{Payload: payload}.Apply(record, time.Now().UTC())
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := validationErr.Fields[tc.field]; !ok {
				t.Fatalf("expected field %q in error, got %v", tc.field, validationErr.Fields)
			}
			if record.Consents != nil {
				t.Fatal("partial consent must not be stored")
			}
		})
	}
}

func TestConsentsAdapterStoresAllThreeGrants(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	record := recordAt(domain.StepConsents)

	if err := (ConsentsAdapter{Payload: validConsentsPayload()}).Apply(record, now); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if record.Consents == nil {
		t.Fatal("consents sub-record missing")
	}
	if record.Consents.TermsOfService.Version != "2026-01" {
		t.Fatalf("tos version = %q", record.Consents.TermsOfService.Version)
	}
	if !record.Consents.Privacy.AcceptedAt.Equal(now) {
		t.Fatalf("privacy accepted at = %v, want %v", record.Consents.Privacy.AcceptedAt, now)
	}
}

func TestProfileAdapterValidation(t *testing.T) {
	valid := domain.ProfilePayload{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: "1990-12-10",
		Country:     "gb",
		PhoneNumber: strPtr("+447700900123"),
	}

	tests := []struct {
		name   string
		mutate func(p *domain.ProfilePayload)
		field  string
	}{
		{name: "missing last name", mutate: func(p *domain.ProfilePayload) { p.LastName = "" }, field: "last_name"},
		{name: "whitespace first name", mutate: func(p *domain.ProfilePayload) { p.FirstName = "   " }, field: "first_name"},
		{name: "bad date format", mutate: func(p *domain.ProfilePayload) { p.DateOfBirth = "10/12/1990" }, field: "date_of_birth"},
		{name: "impossible date", mutate: func(p *domain.ProfilePayload) { p.DateOfBirth = "1990-02-31" }, field: "date_of_birth"},
		{name: "bad country code", mutate: func(p *domain.ProfilePayload) { p.Country = "GBR" }, field: "country"},
		{name: "bad phone", mutate: func(p *domain.ProfilePayload) { p.PhoneNumber = strPtr("07700900123") }, field: "phone_number"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := valid
			tc.mutate(&payload)
			record := recordAt(domain.StepProfile)

			err := ProfileAdapter{Payload: payload}.Apply(record, time.Now().UTC())
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := validationErr.Fields[tc.field]; !ok {
				t.Fatalf("expected field %q in error, got %v", tc.field, validationErr.Fields)
			}
			if record.Profile != nil {
				t.Fatal("invalid profile must not be stored")
			}
		})
	}

	record := recordAt(domain.StepProfile)
	if err := (ProfileAdapter{Payload: valid}).Apply(record, time.Now().UTC()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if record.Profile.Country != "GB" {
		t.Fatalf("country = %q, want normalized GB", record.Profile.Country)
	}
}

func TestProfileAdapterReplacesWholeSubRecord(t *testing.T) {
	record := recordAt(domain.StepProfile)
	record.Profile = &domain.ProfileRecord{
		FirstName:   "Old",
		LastName:    "Name",
		DateOfBirth: "1980-01-01",
		Country:     "US",
		PhoneNumber: strPtr("+12025550100"),
	}

	payload := domain.ProfilePayload{FirstName: "New", LastName: "Name", DateOfBirth: "1985-06-15", Country: "DE"}
	if err := (ProfileAdapter{Payload: payload}).Apply(record, time.Now().UTC()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	// Full replace: the omitted phone number must not survive the old record.
	if record.Profile.PhoneNumber != nil {
		t.Fatalf("phone number survived full replace: %q", *record.Profile.PhoneNumber)
	}
	if record.Profile.FirstName != "New" || record.Profile.Country != "DE" {
		t.Fatalf("profile not replaced: %+v", record.Profile)
	}
}

func TestKYCAdapterValidatesDocument(t *testing.T) {
	record := recordAt(domain.StepKYC)
	payload := domain.KYCPayload{DocumentType: "library_card", DocumentNumber: "123", DocumentCountry: "US"}

	err := KYCAdapter{Payload: payload}.Apply(record, time.Now().UTC())
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := validationErr.Fields["document_type"]; !ok {
		t.Fatalf("expected document_type error, got %v", validationErr.Fields)
	}
}

func TestKYCAdapterPreservesVerificationState(t *testing.T) {
	now := time.Now().UTC()
	record := recordAt(domain.StepKYC)
	ref := "ver_123"
	submitted := now.Add(-time.Hour)
	record.KYC = &domain.KYCRecord{
		Status:          domain.KYCUnderReview,
		DocumentType:    "passport",
		DocumentNumber:  "X100",
		DocumentCountry: "US",
		ProviderRef:     &ref,
		SubmittedAt:     &submitted,
	}

	payload := domain.KYCPayload{DocumentType: "passport", DocumentNumber: "X200", DocumentCountry: "US"}
	if err := (KYCAdapter{Payload: payload}).Apply(record, now); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if record.KYC.Status != domain.KYCUnderReview {
		t.Fatalf("status reset to %s", record.KYC.Status)
	}
	if record.KYC.ProviderRef == nil || *record.KYC.ProviderRef != ref {
		t.Fatal("provider ref lost on document re-save")
	}
	if record.KYC.DocumentNumber != "X200" {
		t.Fatalf("document number = %q, want X200", record.KYC.DocumentNumber)
	}
}

func TestWalletAdapterValidation(t *testing.T) {
	record := recordAt(domain.StepWallet)
	payload := domain.WalletPayload{Provider: "plaid", ExternalAccountID: "acc_1", Currency: "usd"}

	if err := (WalletAdapter{Payload: payload}).Apply(record, time.Now().UTC()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if record.Wallet.Currency != "USD" {
		t.Fatalf("currency = %q, want normalized USD", record.Wallet.Currency)
	}

	record = recordAt(domain.StepWallet)
	bad := domain.WalletPayload{Provider: "plaid", ExternalAccountID: "acc_1", Currency: "dollars"}
	err := WalletAdapter{Payload: bad}.Apply(record, time.Now().UTC())
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestBrokerAdapterValidatesAccountType(t *testing.T) {
	record := recordAt(domain.StepBroker)
	err := BrokerAdapter{Payload: domain.BrokerPayload{AccountType: "options"}}.Apply(record, time.Now().UTC())
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if err := (BrokerAdapter{Payload: domain.BrokerPayload{AccountType: "Cash"}}).Apply(record, time.Now().UTC()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if record.Broker.Status != "pending" {
		t.Fatalf("initial broker status = %q, want pending", record.Broker.Status)
	}
	if record.Broker.AccountType != "cash" {
		t.Fatalf("account type = %q, want normalized cash", record.Broker.AccountType)
	}
}

func TestSecurityAdapterEnrollAndSkip(t *testing.T) {
	now := time.Now().UTC()
	record := recordAt(domain.StepSecurity)

	if err := (SecurityAdapter{Payload: domain.SecurityPayload{Method: "TOTP"}}).Apply(record, now); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !record.Security.TwoFactorEnabled || record.Security.Method == nil || *record.Security.Method != "totp" {
		t.Fatalf("unexpected security record: %+v", record.Security)
	}

	if err := (SecurityAdapter{Skip: true}).Apply(record, now); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !record.Security.Skipped || record.Security.TwoFactorEnabled {
		t.Fatalf("skip must fully replace enrollment: %+v", record.Security)
	}

	err := SecurityAdapter{Payload: domain.SecurityPayload{Method: "carrier_pigeon"}}.Apply(record, now)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestPreferencesAdapterValidation(t *testing.T) {
	record := recordAt(domain.StepPreferences)
	payload := domain.PreferencesPayload{
		Locale:             "en-US",
		EmailNotifications: true,
		TradingExperience:  strPtr("guru"),
	}
	err := PreferencesAdapter{Payload: payload}.Apply(record, time.Now().UTC())
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	payload.TradingExperience = strPtr("Experienced")
	if err := (PreferencesAdapter{Payload: payload}).Apply(record, time.Now().UTC()); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if record.Preferences.TradingExperience == nil || *record.Preferences.TradingExperience != "experienced" {
		t.Fatalf("trading experience = %v", record.Preferences.TradingExperience)
	}
}

func TestValidationErrorMessageIsDeterministic(t *testing.T) {
	err := &ValidationError{
		Step: domain.StepProfile,
		Fields: map[string]string{
			"last_name":  "last name is required",
			"first_name": "first name is required",
		},
	}
	want := "invalid profile payload: first_name: first name is required; last_name: last name is required"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
