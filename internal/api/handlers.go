/**
 * @description
 * This file contains the HTTP handlers for the onboarding API. Handlers
 * parse incoming requests, resolve the authenticated user id from the
 * request context, call the onboarding service, and translate service
 * errors onto HTTP statuses: validation failures to 422 with field detail,
 * inaccessible steps to 409, missing records to 404, version conflicts to
 * 409, and poll limiting to 429.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/quantrail/onboarding-service/internal/app"
	"github.com/quantrail/onboarding-service/internal/domain"
	"github.com/quantrail/onboarding-service/internal/store"
)

// OnboardingHandlers holds the application service that handlers use.
type OnboardingHandlers struct {
	service *app.Service
}

// NewOnboardingHandlers creates a new instance of OnboardingHandlers.
func NewOnboardingHandlers(service *app.Service) *OnboardingHandlers {
	return &OnboardingHandlers{service: service}
}

// stepMeta is the static per-step display metadata included in responses.
type stepMeta struct {
	Step        domain.Step `json:"step"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Minutes     int         `json:"estimated_minutes"`
	Required    bool        `json:"required"`
}

// recordResponse is the envelope returned by every onboarding endpoint.
type recordResponse struct {
	Record   *domain.OnboardingRecord `json:"record"`
	Progress app.Progress             `json:"progress"`
	Steps    []stepMeta               `json:"steps"`
}

func buildRecordResponse(view *app.RecordView) recordResponse {
	steps := make([]stepMeta, 0, len(domain.StepOrder))
	for _, s := range domain.StepOrder {
		steps = append(steps, stepMeta{
			Step:        s,
			Title:       s.Title(),
			Description: s.Description(),
			Minutes:     s.Minutes(),
			Required:    s.Required(),
		})
	}
	return recordResponse{Record: view.Record, Progress: view.Progress, Steps: steps}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *OnboardingHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

func (h *OnboardingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service-layer failures onto HTTP responses.
func (h *OnboardingHandlers) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *app.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "validation failed",
			Fields: validationErr.Fields,
		})
	case errors.Is(err, app.ErrStepNotAccessible):
		h.writeError(w, http.StatusConflict, "Step is not accessible from the current position. Refresh the onboarding record.")
	case errors.Is(err, store.ErrRecordNotFound):
		h.writeError(w, http.StatusNotFound, "Onboarding has not been initialized for this user.")
	case errors.Is(err, store.ErrRecordConflict):
		h.writeError(w, http.StatusConflict, "Onboarding record changed concurrently. Refresh and retry.")
	case errors.Is(err, app.ErrKYCNotSubmitted):
		h.writeError(w, http.StatusPreconditionFailed, "Save your identity documents before starting verification.")
	case errors.Is(err, app.ErrKYCPollLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many status checks. Please wait before polling again.")
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// userID resolves the authenticated user id; writes 500 when the middleware
// did not run.
func (h *OnboardingHandlers) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok || userID == "" {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return "", false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// InitializeHandler creates or idempotently fetches the onboarding record.
func (h *OnboardingHandlers) InitializeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req domain.InitializeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	view, err := h.service.Initialize(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// GetRecordHandler re-reads the record with fresh progress fields.
func (h *OnboardingHandlers) GetRecordHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetRecord(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// SaveConsentsHandler stores the agreement acceptances.
func (h *OnboardingHandlers) SaveConsentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload domain.ConsentsPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	view, err := h.service.SaveConsents(r.Context(), userID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// SaveProfileHandler stores the user's personal details.
func (h *OnboardingHandlers) SaveProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload domain.ProfilePayload
	if !decodeBody(w, r, &payload) {
		return
	}
	view, err := h.service.SaveProfile(r.Context(), userID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// SaveKYCHandler stores the identity document details.
func (h *OnboardingHandlers) SaveKYCHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload domain.KYCPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	view, err := h.service.SaveKYC(r.Context(), userID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// StartKYCHandler submits the saved documents to the verification provider.
func (h *OnboardingHandlers) StartKYCHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	view, err := h.service.StartKYC(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// CheckKYCStatusHandler polls the provider for the verification status.
func (h *OnboardingHandlers) CheckKYCStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	view, err := h.service.CheckKYCStatus(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// LinkWalletHandler stores the funding wallet link.
func (h *OnboardingHandlers) LinkWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload domain.WalletPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	view, err := h.service.LinkWallet(r.Context(), userID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// CreateBrokerAccountHandler opens the brokerage sub-account.
func (h *OnboardingHandlers) CreateBrokerAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload domain.BrokerPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	view, err := h.service.CreateBrokerAccount(r.Context(), userID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, buildRecordResponse(view))
}

// SetupTwoFactorHandler enrolls two-factor authentication.
func (h *OnboardingHandlers) SetupTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload domain.SecurityPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	view, err := h.service.SetupTwoFactor(r.Context(), userID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// SkipTwoFactorHandler records a 2FA opt-out and completes the step.
func (h *OnboardingHandlers) SkipTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	view, err := h.service.SkipTwoFactor(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// SavePreferencesHandler stores notification preferences.
func (h *OnboardingHandlers) SavePreferencesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var payload domain.PreferencesPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	view, err := h.service.SavePreferences(r.Context(), userID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}

// UpdateStepHandler moves the user to a payload-free step or back to an
// earlier one.
func (h *OnboardingHandlers) UpdateStepHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateStepRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.service.UpdateStep(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildRecordResponse(view))
}
