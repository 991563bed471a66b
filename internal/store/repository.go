/**
 * @description
 * This file defines the `Repository` interface for onboarding record
 * persistence. The interface decouples the application's state-machine logic
 * from the PostgreSQL implementation so that the service and handlers can be
 * tested against hand-rolled stubs.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - internal/domain: The onboarding record aggregate.
 */

package store

import (
	"context"
	"errors"

	"github.com/quantrail/onboarding-service/internal/domain"
)

var (
	// ErrRecordNotFound is returned when no onboarding record exists for the
	// user; callers must initialize first.
	ErrRecordNotFound = errors.New("onboarding record not found")
	// ErrRecordExists is returned by CreateRecord when the user already has a
	// record; initialize treats it as the idempotent fetch path.
	ErrRecordExists = errors.New("onboarding record already exists")
	// ErrRecordConflict is returned when the optimistic version check fails,
	// meaning a concurrent writer committed between our read and write.
	ErrRecordConflict = errors.New("onboarding record was modified concurrently")
)

// Repository defines the persistence contract for onboarding records.
// UpdateRecord must apply the whole record atomically against the version it
// was read at; a lost update is never acceptable.
type Repository interface {
	CreateRecord(ctx context.Context, record *domain.OnboardingRecord) error
	GetRecord(ctx context.Context, userID string) (*domain.OnboardingRecord, error)
	UpdateRecord(ctx context.Context, record *domain.OnboardingRecord) error
}
