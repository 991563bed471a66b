/**
 * @description
 * This file derives the progress projection from an onboarding record:
 * percent complete over all substantive steps, the stricter required-only
 * percentage, the ordered list of remaining steps, and a fixed-table time
 * estimate. All functions are pure; progress is recomputed on every read and
 * never stored.
 *
 * @dependencies
 * - math: Standard Go library.
 * - internal/domain: The onboarding record and step tables.
 */

package app

import (
	"math"

	"github.com/quantrail/onboarding-service/internal/domain"
)

// Progress is the computed projection attached to record responses.
type Progress struct {
	PercentComplete           int           `json:"percent_complete"`
	RequiredPercentComplete   int           `json:"required_percent_complete"`
	RemainingSteps            []domain.Step `json:"remaining_steps"`
	EstimatedMinutesRemaining int           `json:"estimated_minutes_remaining"`
}

// PercentComplete returns the share of substantive steps completed, 0..100.
// The terminal step is excluded from the denominator: 100% is reached by
// completing the last substantive step, not by entering done.
func PercentComplete(record *domain.OnboardingRecord) int {
	total := len(domain.StepOrder) - 1
	completed := 0
	for _, s := range domain.StepOrder {
		if s != domain.StepDone && record.CompletedSteps.Contains(s) {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// RequiredPercentComplete returns the completion share over the required
// subset only, independent of the full-step percentage.
func RequiredPercentComplete(record *domain.OnboardingRecord) int {
	total := 0
	completed := 0
	for _, s := range domain.StepOrder {
		if !s.Required() {
			continue
		}
		total++
		if record.CompletedSteps.Contains(s) {
			completed++
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// RemainingSteps returns all steps strictly after the current one, in order.
func RemainingSteps(record *domain.OnboardingRecord) []domain.Step {
	out := make([]domain.Step, 0, len(domain.StepOrder))
	for _, s := range domain.StepOrder {
		if s.Index() > record.CurrentStep.Index() {
			out = append(out, s)
		}
	}
	return out
}

// EstimatedMinutesRemaining sums the fixed per-step estimates over the
// remaining steps. It is a function of the current step only and ignores how
// long the user actually spent so far.
func EstimatedMinutesRemaining(record *domain.OnboardingRecord) int {
	minutes := 0
	for _, s := range RemainingSteps(record) {
		minutes += s.Minutes()
	}
	return minutes
}

// ComputeProgress assembles the full projection for a record.
func ComputeProgress(record *domain.OnboardingRecord) Progress {
	return Progress{
		PercentComplete:           PercentComplete(record),
		RequiredPercentComplete:   RequiredPercentComplete(record),
		RemainingSteps:            RemainingSteps(record),
		EstimatedMinutesRemaining: EstimatedMinutesRemaining(record),
	}
}
