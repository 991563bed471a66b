package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantrail/onboarding-service/internal/app"
	"github.com/quantrail/onboarding-service/internal/domain"
	"github.com/quantrail/onboarding-service/internal/store"
)

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	h := NewOnboardingHandlers(nil)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &app.ValidationError{Fields: map[string]string{"first_name": "required"}}, want: 422},
		{name: "not accessible", err: fmt.Errorf("wrapped: %w", app.ErrStepNotAccessible), want: 409},
		{name: "not found", err: store.ErrRecordNotFound, want: 404},
		{name: "conflict", err: store.ErrRecordConflict, want: 409},
		{name: "kyc not submitted", err: app.ErrKYCNotSubmitted, want: 412},
		{name: "poll limited", err: fmt.Errorf("retry after 30s: %w", app.ErrKYCPollLimited), want: 429},
		{name: "unknown", err: errors.New("boom"), want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, tt.err)
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestWriteServiceErrorIncludesValidationFields(t *testing.T) {
	h := NewOnboardingHandlers(nil)
	rec := httptest.NewRecorder()
	h.writeServiceError(rec, &app.ValidationError{Fields: map[string]string{"country": "must be a two-letter uppercase ISO-3166 code"}})

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Fields["country"] == "" {
		t.Fatal("expected field detail for country in response body")
	}
}

func TestBuildRecordResponseListsStepsInOrder(t *testing.T) {
	record := domain.NewOnboardingRecord("u1", "u1@x.com", "en", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	view := &app.RecordView{Record: record, Progress: app.ComputeProgress(record)}

	resp := buildRecordResponse(view)
	if len(resp.Steps) != len(domain.StepOrder) {
		t.Fatalf("expected %d steps, got %d", len(domain.StepOrder), len(resp.Steps))
	}
	for i, meta := range resp.Steps {
		if meta.Step != domain.StepOrder[i] {
			t.Fatalf("step %d: expected %s, got %s", i, domain.StepOrder[i], meta.Step)
		}
		if meta.Title == "" {
			t.Fatalf("step %s is missing a title", meta.Step)
		}
	}
}
