package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
	"alertflow/internal/permanent"
)

// SlackSender posts alert attachments to an incoming-webhook URL.
// Params: webhook URL and timeout from config.
// Returns: slack channel sender.
type SlackSender struct {
	cfg     config.SlackNotifier
	client  *http.Client
	initErr error
}

// slackField is one short attachment field.
type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// slackAttachment is one colored alert block.
type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
}

// slackPayload is the webhook request body.
type slackPayload struct {
	Text        string            `json:"text"`
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji"`
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

// NewSlackSender creates Slack webhook sender.
// Params: slack notifier config.
// Returns: initialized sender.
func NewSlackSender(cfg config.SlackNotifier) *SlackSender {
	sender := &SlackSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		sender.initErr = permanent.Mark(errors.New("slack webhook_url is required"))
	}
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *SlackSender) Channel() string {
	return config.ChannelSlack
}

// Send posts one alert attachment to the webhook.
// Params: context, alert snapshot, and escalation marker.
// Returns: transport or HTTP error.
func (s *SlackSender) Send(ctx context.Context, alert domain.Alert, escalation bool) error {
	if s.initErr != nil {
		return s.initErr
	}

	title := alert.Title
	if escalation {
		title = "Escalated alert - " + alert.Title
	}
	payload := slackPayload{
		Text:      "Monitoring system alert",
		Username:  "alertflow",
		IconEmoji: ":warning:",
		Channel:   strings.TrimSpace(s.cfg.Channel),
		Attachments: []slackAttachment{
			{
				Color: slackColor(alert.Severity),
				Title: title,
				Text:  alert.Message,
				Fields: []slackField{
					{Title: "Severity", Value: strings.ToUpper(string(alert.Severity)), Short: true},
					{Title: "Category", Value: alert.Category, Short: true},
					{Title: "Source", Value: alert.Source, Short: true},
					{Title: "Time", Value: alert.CreatedAt.Format("2006-01-02 15:04:05"), Short: true},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return unexpectedHTTPStatusError("slack", response)
	}
	return nil
}

// slackColor maps severity to Slack attachment color names.
// Params: alert severity.
// Returns: good, warning, or danger.
func slackColor(severity domain.Severity) string {
	switch severity {
	case domain.SeverityMedium, domain.SeverityHigh:
		return "warning"
	case domain.SeverityCritical, domain.SeverityEmergency:
		return "danger"
	default:
		return "good"
	}
}
