/**
 * @description
 * This file implements the step transition engine: the state machine that
 * applies an advance event to an onboarding record. The engine trusts that
 * accessibility was already checked at the API boundary and performs no
 * gating of its own; its job is to keep the completion bookkeeping
 * consistent — union-idempotent completed steps, a monotonic activity
 * timestamp, and a completion time that is set exactly once.
 *
 * @dependencies
 * - fmt, time: Standard Go libraries.
 * - internal/domain: The onboarding record and step types.
 */

package app

import (
	"fmt"
	"time"

	"github.com/quantrail/onboarding-service/internal/domain"
)

// Advance moves the record to target. When completed is true, target is also
// added to the completed set (re-adding is a no-op). The terminal transition
// (target == done, completed) flips the record to its completed state; the
// completion timestamp is first-completion-wins and never overwritten.
//
// There is no rollback operation: a wrong transition is corrected by issuing
// a new transition to the desired step.
func Advance(record *domain.OnboardingRecord, target domain.Step, completed bool, now time.Time) error {
	if !target.Valid() {
		return fmt.Errorf("cannot advance to invalid step %d", int(target))
	}

	record.CurrentStep = target
	if completed {
		record.CompletedSteps.Add(target)
	}
	touch(record, now)

	if target == domain.StepDone && completed && !record.Completed {
		record.Completed = true
		completedAt := now
		record.CompletedAt = &completedAt
	}
	return nil
}

// MarkStepCompleted adds step to the completed set without moving the
// current position. Used when a payload is saved for an already-visited step.
func MarkStepCompleted(record *domain.OnboardingRecord, step domain.Step, now time.Time) {
	record.CompletedSteps.Add(step)
	touch(record, now)
}

// touch bumps the activity timestamp, keeping it monotonically non-decreasing
// even if the caller's clock skews backwards.
func touch(record *domain.OnboardingRecord, now time.Time) {
	if now.After(record.LastActivityAt) {
		record.LastActivityAt = now
	}
}
