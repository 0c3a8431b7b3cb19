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

// DiscordSender posts alert embeds to a Discord webhook.
// Params: webhook URL and timeout from config.
// Returns: discord channel sender.
type DiscordSender struct {
	cfg     config.DiscordNotifier
	client  *http.Client
	initErr error
}

// discordEmbedField is one inline embed field.
type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// discordEmbed is one colored alert embed.
type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields"`
	Timestamp   string              `json:"timestamp"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

// NewDiscordSender creates Discord webhook sender.
// Params: discord notifier config.
// Returns: initialized sender.
func NewDiscordSender(cfg config.DiscordNotifier) *DiscordSender {
	sender := &DiscordSender{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		sender.initErr = permanent.Mark(errors.New("discord webhook_url is required"))
	}
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *DiscordSender) Channel() string {
	return config.ChannelDiscord
}

// Send posts one alert embed to the webhook.
// Params: context, alert snapshot, and escalation marker.
// Returns: transport or HTTP error.
func (s *DiscordSender) Send(ctx context.Context, alert domain.Alert, escalation bool) error {
	if s.initErr != nil {
		return s.initErr
	}

	embed := discordEmbed{
		Title:       "Monitoring system alert - " + alert.Title,
		Description: alert.Message,
		Color:       discordColor(alert.Severity),
		Fields: []discordEmbedField{
			{Name: "Severity", Value: strings.ToUpper(string(alert.Severity)), Inline: true},
			{Name: "Category", Value: alert.Category, Inline: true},
			{Name: "Source", Value: alert.Source, Inline: true},
			{Name: "Time", Value: alert.CreatedAt.Format("2006-01-02 15:04:05"), Inline: true},
		},
		Timestamp: alert.CreatedAt.Format(time.RFC3339),
	}
	embed.Footer.Text = "alertflow"
	if escalation {
		embed.Title = "Escalated alert - " + alert.Title
	}

	body, err := json.Marshal(struct {
		Embeds []discordEmbed `json:"embeds"`
	}{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("encode discord payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return unexpectedHTTPStatusError("discord", response)
	}
	return nil
}

// discordColor maps severity to embed hex colors.
// Params: alert severity.
// Returns: green, yellow, orange, or red.
func discordColor(severity domain.Severity) int {
	switch severity {
	case domain.SeverityMedium:
		return 0xFFFF00
	case domain.SeverityHigh:
		return 0xFF8000
	case domain.SeverityCritical, domain.SeverityEmergency:
		return 0xFF0000
	default:
		return 0x00FF00
	}
}
