/**
 * @description
 * This package provides a client for the third-party KYC verification
 * provider. It encapsulates authenticated HTTP requests, request/response
 * bodies, and error surfacing. The onboarding core treats the provider's
 * status values as opaque strings to store verbatim; no interpretation
 * happens here.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 *
 * @notes
 * - The client ships a default HTTP client with a timeout so a slow provider
 *   cannot hang a request indefinitely.
 * - Error responses are returned with the status code and body included for
 *   easier debugging.
 */
package kycclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the KYC provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
}

// NewClient creates a new KYC provider client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// VerificationRequest is the document submission sent to the provider.
type VerificationRequest struct {
	UserID          string `json:"user_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	DateOfBirth     string `json:"date_of_birth"`
	Country         string `json:"country"`
	DocumentType    string `json:"document_type"`
	DocumentNumber  string `json:"document_number"`
	DocumentCountry string `json:"document_country"`
}

// VerificationSubmission is the provider's acknowledgment of a submission.
type VerificationSubmission struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// VerificationStatus is the provider's current view of a verification.
type VerificationStatus struct {
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
	Reason    *string `json:"reason,omitempty"`
}

// SubmitVerification submits identity documents for verification.
func (c *Client) SubmitVerification(ctx context.Context, req VerificationRequest) (*VerificationSubmission, error) {
	url := fmt.Sprintf("%s/v1/verifications", c.BaseURL)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verification request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send verification request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.handleErrorResponse(resp)
	}

	var submission VerificationSubmission
	if err := json.NewDecoder(resp.Body).Decode(&submission); err != nil {
		return nil, fmt.Errorf("failed to decode verification response: %w", err)
	}
	return &submission, nil
}

// GetVerificationStatus fetches the current status of a submitted
// verification by its provider reference.
func (c *Client) GetVerificationStatus(ctx context.Context, reference string) (*VerificationStatus, error) {
	url := fmt.Sprintf("%s/v1/verifications/%s", c.BaseURL, reference)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch verification status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp)
	}

	var status VerificationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &status, nil
}

// setHeaders applies the auth and content headers to outbound requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// handleErrorResponse reads and formats a non-2xx response body.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kyc provider returned status %d (failed to read body: %v)", resp.StatusCode, err)
	}
	return fmt.Errorf("kyc provider returned status %d: %s", resp.StatusCode, string(body))
}
