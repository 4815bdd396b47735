// Package notify forwards component events to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/escrow-marketplace/backend/internal/events"
	"go.uber.org/zap"
)

// Notification is the webhook request body.
type Notification struct {
	Stream  string         `json:"stream"`
	Type    string         `json:"type"`
	Parties []string       `json:"parties"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

// WebhookClient posts events as JSON to a single URL. When types is non-empty
// only those event types are forwarded.
type WebhookClient struct {
	url        string
	types      map[string]bool
	httpClient *http.Client
	log        *zap.Logger
}

func NewWebhookClient(url string, timeout time.Duration, types []string, log *zap.Logger) *WebhookClient {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return &WebhookClient{
		url:        url,
		types:      allowed,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Forward sends event unless it is filtered out.
func (c *WebhookClient) Forward(ctx context.Context, stream string, event events.Event) error {
	if len(c.types) > 0 && !c.types[event.Type] {
		return nil
	}

	n := Notification{
		Stream:  stream,
		Type:    event.Type,
		Parties: []string{},
		Payload: event.Payload,
		SentAt:  time.Now().UTC(),
	}
	for _, p := range events.Parties(event) {
		n.Parties = append(n.Parties, p.Hex())
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	c.log.Debug("event forwarded", zap.String("stream", stream), zap.String("type", event.Type))
	return nil
}
