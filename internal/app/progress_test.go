package app

import (
	"testing"

	"github.com/quantrail/onboarding-service/internal/domain"
)

func TestPercentCompleteExcludesDoneFromDenominator(t *testing.T) {
	record := recordAt(domain.StepWelcome)
	if got := PercentComplete(record); got != 0 {
		t.Fatalf("fresh record percent = %d, want 0", got)
	}

	// Completing all nine substantive steps reaches 100 without done.
	for _, s := range domain.StepOrder {
		if s != domain.StepDone {
			record.CompletedSteps.Add(s)
		}
	}
	if got := PercentComplete(record); got != 100 {
		t.Fatalf("all substantive steps percent = %d, want 100", got)
	}
}

func TestPercentCompleteIsMonotonic(t *testing.T) {
	record := recordAt(domain.StepWelcome)
	last := PercentComplete(record)
	for _, s := range domain.StepOrder {
		if s == domain.StepDone {
			continue
		}
		record.CompletedSteps.Add(s)
		current := PercentComplete(record)
		if current < last {
			t.Fatalf("percent decreased from %d to %d after completing %s", last, current, s)
		}
		last = current
	}
	if last != 100 {
		t.Fatalf("final percent = %d, want 100", last)
	}
}

func TestPercentCompleteRounding(t *testing.T) {
	record := recordAt(domain.StepWelcome, domain.StepWelcome)
	// 1 of 9 substantive steps: round(11.11) = 11.
	if got := PercentComplete(record); got != 11 {
		t.Fatalf("percent = %d, want 11", got)
	}
	record.CompletedSteps.Add(domain.StepConsents)
	// 2 of 9: round(22.22) = 22.
	if got := PercentComplete(record); got != 22 {
		t.Fatalf("percent = %d, want 22", got)
	}
}

func TestRequiredPercentCompleteIsIndependent(t *testing.T) {
	record := recordAt(domain.StepWallet,
		domain.StepWelcome, domain.StepConsents, domain.StepProfile, domain.StepKYC)

	if got := RequiredPercentComplete(record); got != 100 {
		t.Fatalf("required percent = %d, want 100", got)
	}
	// 4 of 9 substantive steps overall: round(44.44) = 44.
	if got := PercentComplete(record); got != 44 {
		t.Fatalf("overall percent = %d, want 44", got)
	}
}

func TestRemainingSteps(t *testing.T) {
	record := recordAt(domain.StepKYC)
	got := RemainingSteps(record)
	want := []domain.Step{domain.StepWallet, domain.StepBroker, domain.StepSecurity, domain.StepPreferences, domain.StepTour, domain.StepDone}

	if len(got) != len(want) {
		t.Fatalf("remaining steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("remaining[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRemainingStepsEmptyAtDone(t *testing.T) {
	record := recordAt(domain.StepDone)
	if got := RemainingSteps(record); len(got) != 0 {
		t.Fatalf("remaining steps at done = %v, want none", got)
	}
}

func TestEstimatedMinutesRemaining(t *testing.T) {
	tests := []struct {
		current domain.Step
		want    int
	}{
		// wallet + broker + security + preferences + tour = 2+3+3+2+5
		{current: domain.StepKYC, want: 15},
		{current: domain.StepWelcome, want: 2 + 3 + 5 + 2 + 3 + 3 + 2 + 5},
		{current: domain.StepTour, want: 0},
		{current: domain.StepDone, want: 0},
	}

	for _, tc := range tests {
		record := recordAt(tc.current)
		if got := EstimatedMinutesRemaining(record); got != tc.want {
			t.Fatalf("estimated minutes at %s = %d, want %d", tc.current, got, tc.want)
		}
	}
}

func TestComputeProgressAssemblesAllProjections(t *testing.T) {
	record := recordAt(domain.StepKYC, domain.StepWelcome, domain.StepConsents, domain.StepProfile)
	progress := ComputeProgress(record)

	if progress.PercentComplete != 33 {
		t.Fatalf("percent = %d, want 33", progress.PercentComplete)
	}
	if progress.RequiredPercentComplete != 75 {
		t.Fatalf("required percent = %d, want 75", progress.RequiredPercentComplete)
	}
	if progress.EstimatedMinutesRemaining != 15 {
		t.Fatalf("estimated minutes = %d, want 15", progress.EstimatedMinutesRemaining)
	}
	if len(progress.RemainingSteps) != 6 {
		t.Fatalf("remaining steps = %d, want 6", len(progress.RemainingSteps))
	}
}
