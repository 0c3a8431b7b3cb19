package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
	"alertflow/internal/permanent"
)

// WebhookSender posts raw alert JSON to every configured endpoint.
// Params: target URLs, extra headers, and timeout from config.
// Returns: webhook channel sender.
type WebhookSender struct {
	cfg     config.WebhookNotifier
	client  *http.Client
	initErr error
}

// webhookPayload is the generic delivery envelope.
type webhookPayload struct {
	Alert      domain.Alert `json:"alert"`
	Escalation bool         `json:"escalation"`
	SentAt     string       `json:"sent_at"`
}

// NewWebhookSender creates generic webhook sender.
// Params: webhook notifier config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookNotifier) *WebhookSender {
	sender := &WebhookSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
	if len(cfg.URLs) == 0 {
		sender.initErr = permanent.Mark(errors.New("webhook urls is required"))
	}
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *WebhookSender) Channel() string {
	return config.ChannelWebhook
}

// Send posts the alert envelope to each endpoint in order.
// Params: context, alert snapshot, and escalation marker.
// Returns: first transport or HTTP error.
func (s *WebhookSender) Send(ctx context.Context, alert domain.Alert, escalation bool) error {
	if s.initErr != nil {
		return s.initErr
	}

	body, err := json.Marshal(webhookPayload{
		Alert:      alert,
		Escalation: escalation,
		SentAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	for _, url := range s.cfg.URLs {
		if err := s.post(ctx, url, body); err != nil {
			return err
		}
	}
	return nil
}

// post delivers one JSON body to one endpoint.
// Params: context, target URL, and encoded payload.
// Returns: transport or HTTP error.
func (s *WebhookSender) post(ctx context.Context, url string, body []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request %q: %w", url, err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("webhook send %q: %w", url, err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return unexpectedHTTPStatusError("webhook", response)
	}
	return nil
}
