package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultResendBaseURL is the production Resend API endpoint.
const DefaultResendBaseURL = "https://api.resend.com"

// ResendProvider delivers email through the Resend HTTP API.
type ResendProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// ResendOption customizes a ResendProvider.
type ResendOption func(*ResendProvider)

// WithResendBaseURL overrides the API endpoint. Used by tests.
func WithResendBaseURL(url string) ResendOption {
	return func(p *ResendProvider) { p.baseURL = url }
}

// WithResendHTTPClient overrides the HTTP client.
func WithResendHTTPClient(c *http.Client) ResendOption {
	return func(p *ResendProvider) { p.client = c }
}

// NewResendProvider creates a provider that sends via the Resend API.
func NewResendProvider(apiKey string, opts ...ResendOption) *ResendProvider {
	p := &ResendProvider{
		apiKey:  apiKey,
		baseURL: DefaultResendBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *ResendProvider) Name() string { return "resend" }

type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendEmailResponse struct {
	ID string `json:"id"`
}

type resendErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send posts the message to POST /emails and returns the Resend email id.
func (p *ResendProvider) Send(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(resendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("encoding resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &SendError{Provider: p.Name(), Transient: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &SendError{Provider: p.Name(), Transient: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr resendErrorResponse
		reason := fmt.Errorf("%s", string(respBody))
		if jsonErr := json.Unmarshal(respBody, &apiErr); jsonErr == nil && apiErr.Message != "" {
			reason = fmt.Errorf("%s: %s", apiErr.Name, apiErr.Message)
		}
		return "", &SendError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Transient:  transientStatus(resp.StatusCode),
			Err:        reason,
		}
	}

	var sent resendEmailResponse
	if err := json.Unmarshal(respBody, &sent); err != nil {
		return "", fmt.Errorf("decoding resend response: %w", err)
	}
	return sent.ID, nil
}

// transientStatus classifies an HTTP status: rate limits and server errors
// are retriable, everything else in the error range is permanent.
func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= 500
}
