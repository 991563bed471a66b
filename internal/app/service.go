/**
 * @description
 * This file contains the onboarding facade: the single entry point the API
 * layer calls through. It sequences every mutating operation the same way —
 * check step accessibility, apply the step's persistence adapter, advance the
 * state machine, commit the record once — so a validation or accessibility
 * failure can never leave partial progress behind. It also owns the
 * per-user serialization (keyed mutex in-process, optimistic version check
 * in the store) and publishes step events after a successful commit.
 *
 * @dependencies
 * - context, errors, fmt, log, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For event ids.
 * - internal/domain, internal/store: Domain models and persistence.
 * - pkg/kycclient, pkg/brokerclient, pkg/rabbitmq: External collaborators.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantrail/onboarding-service/internal/domain"
	"github.com/quantrail/onboarding-service/internal/store"
	"github.com/quantrail/onboarding-service/pkg/brokerclient"
	"github.com/quantrail/onboarding-service/pkg/kycclient"
)

const (
	// EventExchange is the topic exchange onboarding events are published to.
	EventExchange = "onboarding_events"

	routingKeyStepCompleted       = "onboarding.step_completed"
	routingKeyOnboardingCompleted = "onboarding.completed"
)

// KYCProvider is the slice of the KYC client the service depends on.
type KYCProvider interface {
	SubmitVerification(ctx context.Context, req kycclient.VerificationRequest) (*kycclient.VerificationSubmission, error)
	GetVerificationStatus(ctx context.Context, reference string) (*kycclient.VerificationStatus, error)
}

// BrokerProvider is the slice of the brokerage client the service depends on.
type BrokerProvider interface {
	CreateAccount(ctx context.Context, req brokerclient.CreateAccountRequest) (*brokerclient.Account, error)
}

// EventPublisher publishes onboarding events; failures are logged, never
// surfaced to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// RecordView is the record plus its recomputed progress projection, returned
// by every operation.
type RecordView struct {
	Record   *domain.OnboardingRecord `json:"record"`
	Progress Progress                 `json:"progress"`
}

// Service provides the core onboarding business logic.
type Service struct {
	repo        store.Repository
	kycProvider KYCProvider
	broker      BrokerProvider
	publisher   EventPublisher
	pollLimiter KYCPollLimiter

	// userLocks serializes mutations per user within this process; the
	// store's version check covers concurrent writers in other instances.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	// now is a hook for tests; defaults to UTC wall clock.
	now func() time.Time
}

// NewService creates a new onboarding service instance.
func NewService(repo store.Repository, kyc KYCProvider, broker BrokerProvider, publisher EventPublisher, limiter KYCPollLimiter) *Service {
	if limiter == nil {
		limiter = UnlimitedKYCPollLimiter{}
	}
	return &Service{
		repo:        repo,
		kycProvider: kyc,
		broker:      broker,
		publisher:   publisher,
		pollLimiter: limiter,
		userLocks:   make(map[string]*sync.Mutex),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ErrKYCNotSubmitted is returned by StartKYC when no documents were saved.
var ErrKYCNotSubmitted = errors.New("kyc documents have not been saved yet")

// ErrKYCPollLimited is returned when the KYC status poll window is exhausted.
var ErrKYCPollLimited = errors.New("kyc status poll rate limit exceeded")

// lockUser acquires the per-user mutation lock.
func (s *Service) lockUser(userID string) *sync.Mutex {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock
}

// Initialize creates the onboarding record for a user, or returns the
// existing one unchanged. Safe to call repeatedly.
func (s *Service) Initialize(ctx context.Context, userID string, req domain.InitializeRequest) (*RecordView, error) {
	lock := s.lockUser(userID)
	defer lock.Unlock()

	locale := req.Locale
	if locale == "" {
		locale = "en"
	}
	record := domain.NewOnboardingRecord(userID, req.Email, locale, s.now())
	err := s.repo.CreateRecord(ctx, record)
	if err != nil {
		if errors.Is(err, store.ErrRecordExists) {
			existing, getErr := s.repo.GetRecord(ctx, userID)
			if getErr != nil {
				return nil, getErr
			}
			return s.view(existing), nil
		}
		return nil, fmt.Errorf("failed to initialize onboarding: %w", err)
	}
	log.Printf("level=info component=onboarding op=initialize user_id=%s", userID)
	return s.view(record), nil
}

// GetRecord re-reads the record with a fresh progress projection.
func (s *Service) GetRecord(ctx context.Context, userID string) (*RecordView, error) {
	record, err := s.repo.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.view(record), nil
}

// CompleteStep runs the canonical mutation sequence for a step: gate, apply
// the adapter, advance the state machine, commit, publish. markCompleted
// controls whether the step is added to the completed set on advance.
func (s *Service) CompleteStep(ctx context.Context, userID string, adapter StepAdapter, markCompleted bool) (*RecordView, error) {
	lock := s.lockUser(userID)
	defer lock.Unlock()
	return s.completeStepLocked(ctx, userID, adapter, markCompleted, nil)
}

// completeStepLocked is the shared mutation path; enrich, when non-nil, runs
// after the adapter so provider outcomes can be written onto the sub-record
// inside the same commit. Callers must hold the user lock.
func (s *Service) completeStepLocked(ctx context.Context, userID string, adapter StepAdapter, markCompleted bool, enrich func(record *domain.OnboardingRecord) error) (*RecordView, error) {
	record, err := s.repo.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	target := adapter.Step()
	if !IsStepAccessible(record, target) {
		log.Printf("level=warn component=onboarding op=complete_step outcome=reject reason=not_accessible user_id=%s current=%s target=%s", userID, record.CurrentStep, target)
		return nil, fmt.Errorf("cannot enter step %s from %s: %w", target, record.CurrentStep, ErrStepNotAccessible)
	}

	now := s.now()
	if err := adapter.Apply(record, now); err != nil {
		return nil, err
	}
	if enrich != nil {
		if err := enrich(record); err != nil {
			return nil, err
		}
	}

	wasCompleted := record.Completed
	stepAlreadyDone := record.CompletedSteps.Contains(target)
	if err := Advance(record, target, markCompleted, now); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRecord(ctx, record); err != nil {
		return nil, err
	}

	if markCompleted && !stepAlreadyDone {
		s.publishStepCompleted(ctx, record, target)
	}
	if record.Completed && !wasCompleted {
		s.publishOnboardingCompleted(ctx, record)
	}
	log.Printf("level=info component=onboarding op=complete_step user_id=%s step=%s completed=%t", userID, target, markCompleted)
	return s.view(record), nil
}

// SaveConsents validates and stores the agreement acceptances.
func (s *Service) SaveConsents(ctx context.Context, userID string, payload domain.ConsentsPayload) (*RecordView, error) {
	return s.CompleteStep(ctx, userID, ConsentsAdapter{Payload: payload}, payload.MarkCompleted)
}

// SaveProfile validates and stores the user's personal details.
func (s *Service) SaveProfile(ctx context.Context, userID string, payload domain.ProfilePayload) (*RecordView, error) {
	return s.CompleteStep(ctx, userID, ProfileAdapter{Payload: payload}, payload.MarkCompleted)
}

// SaveKYC validates and stores the identity document details without
// contacting the provider.
func (s *Service) SaveKYC(ctx context.Context, userID string, payload domain.KYCPayload) (*RecordView, error) {
	return s.CompleteStep(ctx, userID, KYCAdapter{Payload: payload}, payload.MarkCompleted)
}

// StartKYC submits the saved documents to the verification provider. A
// provider failure is not a failure of this call: the sub-record keeps its
// pending state and the provider error is stored verbatim for diagnosis.
func (s *Service) StartKYC(ctx context.Context, userID string) (*RecordView, error) {
	lock := s.lockUser(userID)
	defer lock.Unlock()

	record, err := s.repo.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record.KYC == nil {
		return nil, ErrKYCNotSubmitted
	}

	now := s.now()
	req := kycclient.VerificationRequest{
		UserID:          userID,
		DocumentType:    record.KYC.DocumentType,
		DocumentNumber:  record.KYC.DocumentNumber,
		DocumentCountry: record.KYC.DocumentCountry,
	}
	if record.Profile != nil {
		req.FirstName = record.Profile.FirstName
		req.LastName = record.Profile.LastName
		req.DateOfBirth = record.Profile.DateOfBirth
		req.Country = record.Profile.Country
	}

	submission, provErr := s.kycProvider.SubmitVerification(ctx, req)
	if provErr != nil {
		// Deliberately decoupled from upstream availability: record the
		// attempt as pending and surface the record, not the provider error.
		log.Printf("level=warn component=onboarding op=start_kyc outcome=provider_error user_id=%s err=%v", userID, provErr)
		errText := provErr.Error()
		record.KYC.ProviderStatus = &errText
	} else {
		record.KYC.ProviderRef = &submission.Reference
		record.KYC.ProviderStatus = &submission.Status
	}
	if record.KYC.Status.CanTransition(domain.KYCPending) {
		record.KYC.Status = domain.KYCPending
	}
	submittedAt := now
	record.KYC.SubmittedAt = &submittedAt
	record.KYC.UpdatedAt = now
	record.LastActivityAt = now

	if err := s.repo.UpdateRecord(ctx, record); err != nil {
		return nil, err
	}
	log.Printf("level=info component=onboarding op=start_kyc user_id=%s status=%s", userID, record.KYC.Status)
	return s.view(record), nil
}

// kycStatusMapping translates provider status strings onto the inner status
// machine. Unknown provider statuses leave the inner status untouched.
var kycStatusMapping = map[string]domain.KYCStatus{
	"pending":       domain.KYCPending,
	"processing":    domain.KYCPending,
	"under_review":  domain.KYCUnderReview,
	"review":        domain.KYCUnderReview,
	"requires_more": domain.KYCRequiresMore,
	"approved":      domain.KYCApproved,
	"rejected":      domain.KYCRejected,
	"expired":       domain.KYCExpired,
	"flagged":       domain.KYCFlagged,
}

// CheckKYCStatus polls the provider for the current verification status and
// refreshes the inner status machine. Polls are rate limited per user.
func (s *Service) CheckKYCStatus(ctx context.Context, userID string) (*RecordView, error) {
	allowed, retryAfter, err := s.pollLimiter.Allow(ctx, userID)
	if err != nil {
		// Limiter unavailability must not block status checks.
		log.Printf("level=warn component=onboarding op=check_kyc_status msg=\"poll limiter unavailable; allowing\" user_id=%s err=%v", userID, err)
	} else if !allowed {
		return nil, fmt.Errorf("retry after %s: %w", retryAfter.Round(time.Second), ErrKYCPollLimited)
	}

	lock := s.lockUser(userID)
	defer lock.Unlock()

	record, err := s.repo.GetRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record.KYC == nil || record.KYC.ProviderRef == nil {
		// Nothing to poll yet; return the record as-is.
		return s.view(record), nil
	}
	if record.KYC.Status.Terminal() {
		return s.view(record), nil
	}

	status, provErr := s.kycProvider.GetVerificationStatus(ctx, *record.KYC.ProviderRef)
	if provErr != nil {
		log.Printf("level=warn component=onboarding op=check_kyc_status outcome=provider_error user_id=%s err=%v", userID, provErr)
		return s.view(record), nil
	}

	now := s.now()
	record.KYC.ProviderStatus = &status.Status
	if mapped, ok := kycStatusMapping[status.Status]; ok && record.KYC.Status.CanTransition(mapped) {
		record.KYC.Status = mapped
	}
	record.KYC.UpdatedAt = now
	record.LastActivityAt = now

	if err := s.repo.UpdateRecord(ctx, record); err != nil {
		return nil, err
	}
	return s.view(record), nil
}

// LinkWallet validates and stores the funding wallet link.
func (s *Service) LinkWallet(ctx context.Context, userID string, payload domain.WalletPayload) (*RecordView, error) {
	return s.CompleteStep(ctx, userID, WalletAdapter{Payload: payload}, payload.MarkCompleted)
}

// CreateBrokerAccount requests a brokerage sub-account from the provider and
// stores the outcome. The provider call happens inside the same commit as
// the step transition, and a provider failure degrades to a pending
// sub-record rather than failing the operation.
func (s *Service) CreateBrokerAccount(ctx context.Context, userID string, payload domain.BrokerPayload) (*RecordView, error) {
	lock := s.lockUser(userID)
	defer lock.Unlock()

	return s.completeStepLocked(ctx, userID, BrokerAdapter{Payload: payload}, payload.MarkCompleted, func(record *domain.OnboardingRecord) error {
		req := brokerclient.CreateAccountRequest{
			UserID:      userID,
			Email:       record.Email,
			AccountType: record.Broker.AccountType,
		}
		if record.Profile != nil {
			req.FirstName = record.Profile.FirstName
			req.LastName = record.Profile.LastName
			req.Country = record.Profile.Country
		}
		account, provErr := s.broker.CreateAccount(ctx, req)
		if provErr != nil {
			log.Printf("level=warn component=onboarding op=create_broker_account outcome=provider_error user_id=%s err=%v", userID, provErr)
			record.Broker.Status = "error"
			return nil
		}
		record.Broker.AccountID = &account.AccountID
		record.Broker.Status = account.Status
		return nil
	})
}

// SetupTwoFactor enrolls two-factor authentication for the security step.
func (s *Service) SetupTwoFactor(ctx context.Context, userID string, payload domain.SecurityPayload) (*RecordView, error) {
	return s.CompleteStep(ctx, userID, SecurityAdapter{Payload: payload}, payload.MarkCompleted)
}

// SkipTwoFactor records an explicit 2FA opt-out and completes the step.
func (s *Service) SkipTwoFactor(ctx context.Context, userID string) (*RecordView, error) {
	return s.CompleteStep(ctx, userID, SecurityAdapter{Skip: true}, true)
}

// SavePreferences validates and stores notification preferences.
func (s *Service) SavePreferences(ctx context.Context, userID string, payload domain.PreferencesPayload) (*RecordView, error) {
	return s.CompleteStep(ctx, userID, PreferencesAdapter{Payload: payload}, payload.MarkCompleted)
}

// UpdateStep moves the user to a payload-free step (welcome, tour, done) or
// back to an earlier step for edits.
func (s *Service) UpdateStep(ctx context.Context, userID string, req domain.UpdateStepRequest) (*RecordView, error) {
	if !req.Step.Valid() {
		return nil, &ValidationError{Step: req.Step, Fields: map[string]string{"step": "unknown onboarding step"}}
	}
	return s.CompleteStep(ctx, userID, MarkerAdapter{Target: req.Step}, req.Completed)
}

func (s *Service) view(record *domain.OnboardingRecord) *RecordView {
	return &RecordView{Record: record, Progress: ComputeProgress(record)}
}

func (s *Service) publishStepCompleted(ctx context.Context, record *domain.OnboardingRecord, step domain.Step) {
	if s.publisher == nil {
		return
	}
	event := domain.StepCompletedEvent{
		EventID:         uuid.NewString(),
		UserID:          record.UserID,
		Step:            step.String(),
		PercentComplete: PercentComplete(record),
		Timestamp:       s.now(),
	}
	if err := s.publisher.Publish(ctx, EventExchange, routingKeyStepCompleted, event); err != nil {
		log.Printf("level=warn component=onboarding msg=\"step completed event publish failed\" user_id=%s step=%s err=%v", record.UserID, step, err)
	}
}

func (s *Service) publishOnboardingCompleted(ctx context.Context, record *domain.OnboardingRecord) {
	if s.publisher == nil || record.CompletedAt == nil {
		return
	}
	event := domain.OnboardingCompletedEvent{
		EventID:     uuid.NewString(),
		UserID:      record.UserID,
		CompletedAt: *record.CompletedAt,
	}
	if err := s.publisher.Publish(ctx, EventExchange, routingKeyOnboardingCompleted, event); err != nil {
		log.Printf("level=warn component=onboarding msg=\"onboarding completed event publish failed\" user_id=%s err=%v", record.UserID, err)
	}
}
