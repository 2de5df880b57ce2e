// Package transport wraps the outbound message provider. The engine only
// depends on the Transport interface; the HTTP client here is one provider
// binding.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Transport delivers one message and returns the provider's message id.
// correlationID is the dedupe key; providers that honor idempotency keys will
// collapse provider-side retries under it.
type Transport interface {
	Send(ctx context.Context, from, to, subject, html, correlationID string) (string, error)
}

type HTTPTransport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPTransport(baseURL, apiKey string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

func (t *HTTPTransport) Send(ctx context.Context, from, to, subject, html, correlationID string) (string, error) {
	b, err := json.Marshal(sendRequest{
		From:    from,
		To:      to,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/send", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Idempotency-Key", correlationID)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("transport 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("transport error: %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode transport response: %w", err)
	}
	return out.MessageID, nil
}
