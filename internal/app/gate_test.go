package app

import (
	"testing"
	"time"

	"github.com/quantrail/onboarding-service/internal/domain"
)

func recordAt(current domain.Step, completed ...domain.Step) *domain.OnboardingRecord {
	record := domain.NewOnboardingRecord("u1", "u1@x.com", "en", time.Now().UTC())
	record.CurrentStep = current
	for _, s := range completed {
		record.CompletedSteps.Add(s)
	}
	return record
}

func TestIsStepAccessible(t *testing.T) {
	tests := []struct {
		name   string
		record *domain.OnboardingRecord
		target domain.Step
		want   bool
	}{
		{
			name:   "current step is accessible",
			record: recordAt(domain.StepProfile),
			target: domain.StepProfile,
			want:   true,
		},
		{
			name:   "earlier step is always revisitable",
			record: recordAt(domain.StepSecurity),
			target: domain.StepWelcome,
			want:   true,
		},
		{
			name:   "next step closed until current completed",
			record: recordAt(domain.StepConsents),
			target: domain.StepProfile,
			want:   false,
		},
		{
			name:   "next step opens once current completed",
			record: recordAt(domain.StepConsents, domain.StepWelcome, domain.StepConsents),
			target: domain.StepProfile,
			want:   true,
		},
		{
			name:   "skipping two ahead is never allowed",
			record: recordAt(domain.StepConsents, domain.StepWelcome, domain.StepConsents),
			target: domain.StepKYC,
			want:   false,
		},
		{
			name:   "completed-ahead steps do not open skips",
			record: recordAt(domain.StepProfile, domain.StepWelcome, domain.StepConsents, domain.StepKYC),
			target: domain.StepWallet,
			want:   false,
		},
		{
			name:   "invalid step is never accessible",
			record: recordAt(domain.StepProfile),
			target: domain.Step(42),
			want:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsStepAccessible(tc.record, tc.target); got != tc.want {
				t.Fatalf("IsStepAccessible(current=%s, target=%s) = %t, want %t", tc.record.CurrentStep, tc.target, got, tc.want)
			}
		})
	}
}

func TestEarlierStepsAlwaysAccessible(t *testing.T) {
	for _, current := range domain.StepOrder {
		record := recordAt(current)
		for _, target := range domain.StepOrder {
			if target.Index() > current.Index() {
				continue
			}
			if !IsStepAccessible(record, target) {
				t.Fatalf("step %s must be accessible when current is %s", target, current)
			}
		}
	}
}

func TestNextStepAccessibleIffCurrentCompleted(t *testing.T) {
	for _, current := range domain.StepOrder {
		next, ok := current.Next()
		if !ok {
			continue
		}

		incomplete := recordAt(current)
		if IsStepAccessible(incomplete, next) {
			t.Fatalf("next step %s must be closed while %s incomplete", next, current)
		}

		complete := recordAt(current, current)
		if !IsStepAccessible(complete, next) {
			t.Fatalf("next step %s must be open once %s completed", next, current)
		}
	}
}
