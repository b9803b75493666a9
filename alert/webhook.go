package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookPublisher posts alerts as JSON to a notification endpoint.
type WebhookPublisher struct {
	url    string
	client *http.Client
}

// NewWebhookPublisher builds a publisher for url. A nil client uses a
// 10-second-timeout default.
func NewWebhookPublisher(url string, client *http.Client) *WebhookPublisher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookPublisher{url: url, client: client}
}

type webhookEnvelope struct {
	Subject    string            `json:"subject"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (p *WebhookPublisher) Publish(ctx context.Context, subject, message string, attrs map[string]string) error {
	body, err := json.Marshal(webhookEnvelope{Subject: subject, Message: message, Attributes: attrs})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("publish alert: http status %d", resp.StatusCode)
	}
	return nil
}
