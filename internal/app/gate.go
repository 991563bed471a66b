/**
 * @description
 * This file implements the step accessibility rule: which onboarding step a
 * user may currently enter. The rule is a read-time advisory check applied at
 * the API boundary before any persistence happens; the transition engine
 * itself never re-checks it, so back-navigation for edits stays possible.
 *
 * @dependencies
 * - errors: Standard Go library.
 * - internal/domain: The onboarding record and step types.
 */

package app

import (
	"errors"

	"github.com/quantrail/onboarding-service/internal/domain"
)

// ErrStepNotAccessible is returned when the target step cannot currently be
// entered. It usually indicates stale client state; the caller should
// re-fetch the record and redirect to the current step.
var ErrStepNotAccessible = errors.New("onboarding step is not accessible from the current position")

// IsStepAccessible reports whether target may be entered given the record's
// current position. Precedence:
//  1. The current step and any earlier step are always revisitable.
//  2. The immediate next step opens once the current step is marked complete.
//  3. Everything further ahead is closed, even if marked complete out of order.
func IsStepAccessible(record *domain.OnboardingRecord, target domain.Step) bool {
	if !target.Valid() {
		return false
	}
	if target.Index() <= record.CurrentStep.Index() {
		return true
	}
	if target.Index() == record.CurrentStep.Index()+1 {
		return record.CompletedSteps.Contains(record.CurrentStep)
	}
	return false
}
