/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. Each user has exactly one row in `onboarding_records`; the
 * per-step sub-records are stored as JSONB columns and the `version` column
 * backs the optimistic-concurrency check on every update.
 *
 * @dependencies
 * - context, encoding/json, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the onboarding record model.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quantrail/onboarding-service/internal/domain"
)

// PostgresRepository is the PostgreSQL implementation of the Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the onboarding_records table if it does not exist.
// Idempotent; mirrors how sibling services bootstrap their tables at startup.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS onboarding_records (
            user_id          TEXT PRIMARY KEY,
            email            TEXT NOT NULL,
            locale           TEXT NOT NULL DEFAULT 'en',
            current_step     TEXT NOT NULL,
            completed_steps  JSONB NOT NULL DEFAULT '[]',
            completed        BOOLEAN NOT NULL DEFAULT FALSE,
            completed_at     TIMESTAMPTZ,
            started_at       TIMESTAMPTZ NOT NULL,
            last_activity_at TIMESTAMPTZ NOT NULL,
            consents         JSONB,
            profile          JSONB,
            kyc              JSONB,
            wallet           JSONB,
            broker           JSONB,
            security         JSONB,
            preferences      JSONB,
            version          BIGINT NOT NULL DEFAULT 1
        );
    `)
	return err
}

// CreateRecord inserts a fresh onboarding record. Returns ErrRecordExists on
// a duplicate user_id so initialize can fall back to the fetch path.
func (r *PostgresRepository) CreateRecord(ctx context.Context, record *domain.OnboardingRecord) error {
	completedSteps, err := json.Marshal(record.CompletedSteps)
	if err != nil {
		return fmt.Errorf("failed to encode completed steps: %w", err)
	}

	query := `
        INSERT INTO onboarding_records
            (user_id, email, locale, current_step, completed_steps, completed, started_at, last_activity_at, version)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
    `
	_, err = r.db.Exec(ctx, query,
		record.UserID,
		record.Email,
		record.Locale,
		record.CurrentStep.String(),
		completedSteps,
		record.Completed,
		record.StartedAt,
		record.LastActivityAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrRecordExists
		}
		return fmt.Errorf("failed to insert onboarding record: %w", err)
	}
	record.Version = 1
	return nil
}

// GetRecord retrieves the onboarding record for a user.
func (r *PostgresRepository) GetRecord(ctx context.Context, userID string) (*domain.OnboardingRecord, error) {
	query := `
        SELECT user_id, email, locale, current_step, completed_steps, completed, completed_at,
               started_at, last_activity_at,
               consents, profile, kyc, wallet, broker, security, preferences, version
        FROM onboarding_records
        WHERE user_id = $1
    `

	var (
		record         domain.OnboardingRecord
		currentStep    string
		completedSteps []byte
		completedAt    *time.Time
		subRecords     [7][]byte
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&record.UserID,
		&record.Email,
		&record.Locale,
		&currentStep,
		&completedSteps,
		&record.Completed,
		&completedAt,
		&record.StartedAt,
		&record.LastActivityAt,
		&subRecords[0], &subRecords[1], &subRecords[2], &subRecords[3],
		&subRecords[4], &subRecords[5], &subRecords[6],
		&record.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to query onboarding record: %w", err)
	}

	step, err := domain.ParseStep(currentStep)
	if err != nil {
		return nil, fmt.Errorf("stored record has invalid current step: %w", err)
	}
	record.CurrentStep = step
	record.CompletedAt = completedAt

	if err := json.Unmarshal(completedSteps, &record.CompletedSteps); err != nil {
		return nil, fmt.Errorf("failed to decode completed steps: %w", err)
	}
	if record.CompletedSteps == nil {
		record.CompletedSteps = make(domain.StepSet)
	}

	if err := decodeSubRecords(&record, subRecords); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateRecord persists the full record, guarded by the version it was read
// at. Returns ErrRecordConflict when a concurrent writer got there first.
func (r *PostgresRepository) UpdateRecord(ctx context.Context, record *domain.OnboardingRecord) error {
	completedSteps, err := json.Marshal(record.CompletedSteps)
	if err != nil {
		return fmt.Errorf("failed to encode completed steps: %w", err)
	}
	subRecords, err := encodeSubRecords(record)
	if err != nil {
		return err
	}

	query := `
        UPDATE onboarding_records
        SET email = $2, locale = $3, current_step = $4, completed_steps = $5,
            completed = $6, completed_at = $7, last_activity_at = $8,
            consents = $9, profile = $10, kyc = $11, wallet = $12,
            broker = $13, security = $14, preferences = $15,
            version = version + 1
        WHERE user_id = $1 AND version = $16
    `
	tag, err := r.db.Exec(ctx, query,
		record.UserID,
		record.Email,
		record.Locale,
		record.CurrentStep.String(),
		completedSteps,
		record.Completed,
		record.CompletedAt,
		record.LastActivityAt,
		subRecords[0], subRecords[1], subRecords[2], subRecords[3],
		subRecords[4], subRecords[5], subRecords[6],
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update onboarding record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row vanished or the version moved on; distinguish so the
		// caller gets the right sentinel.
		var exists bool
		checkErr := r.db.QueryRow(ctx, "SELECT TRUE FROM onboarding_records WHERE user_id = $1", record.UserID).Scan(&exists)
		if errors.Is(checkErr, pgx.ErrNoRows) {
			return ErrRecordNotFound
		}
		return ErrRecordConflict
	}
	record.Version++
	return nil
}

// encodeSubRecords marshals the optional sub-records in column order
// (consents, profile, kyc, wallet, broker, security, preferences). A nil
// sub-record stays a SQL NULL.
func encodeSubRecords(record *domain.OnboardingRecord) ([7][]byte, error) {
	var out [7][]byte
	fields := []struct {
		name  string
		value interface{}
		set   bool
	}{
		{"consents", record.Consents, record.Consents != nil},
		{"profile", record.Profile, record.Profile != nil},
		{"kyc", record.KYC, record.KYC != nil},
		{"wallet", record.Wallet, record.Wallet != nil},
		{"broker", record.Broker, record.Broker != nil},
		{"security", record.Security, record.Security != nil},
		{"preferences", record.Preferences, record.Preferences != nil},
	}
	for i, f := range fields {
		if !f.set {
			continue
		}
		data, err := json.Marshal(f.value)
		if err != nil {
			return out, fmt.Errorf("failed to encode %s sub-record: %w", f.name, err)
		}
		out[i] = data
	}
	return out, nil
}

// decodeSubRecords unmarshals the JSONB columns back onto the record.
func decodeSubRecords(record *domain.OnboardingRecord, raw [7][]byte) error {
	if raw[0] != nil {
		record.Consents = &domain.ConsentsRecord{}
		if err := json.Unmarshal(raw[0], record.Consents); err != nil {
			return fmt.Errorf("failed to decode consents sub-record: %w", err)
		}
	}
	if raw[1] != nil {
		record.Profile = &domain.ProfileRecord{}
		if err := json.Unmarshal(raw[1], record.Profile); err != nil {
			return fmt.Errorf("failed to decode profile sub-record: %w", err)
		}
	}
	if raw[2] != nil {
		record.KYC = &domain.KYCRecord{}
		if err := json.Unmarshal(raw[2], record.KYC); err != nil {
			return fmt.Errorf("failed to decode kyc sub-record: %w", err)
		}
	}
	if raw[3] != nil {
		record.Wallet = &domain.WalletRecord{}
		if err := json.Unmarshal(raw[3], record.Wallet); err != nil {
			return fmt.Errorf("failed to decode wallet sub-record: %w", err)
		}
	}
	if raw[4] != nil {
		record.Broker = &domain.BrokerRecord{}
		if err := json.Unmarshal(raw[4], record.Broker); err != nil {
			return fmt.Errorf("failed to decode broker sub-record: %w", err)
		}
	}
	if raw[5] != nil {
		record.Security = &domain.SecurityRecord{}
		if err := json.Unmarshal(raw[5], record.Security); err != nil {
			return fmt.Errorf("failed to decode security sub-record: %w", err)
		}
	}
	if raw[6] != nil {
		record.Preferences = &domain.PreferencesRecord{}
		if err := json.Unmarshal(raw[6], record.Preferences); err != nil {
			return fmt.Errorf("failed to decode preferences sub-record: %w", err)
		}
	}
	return nil
}
