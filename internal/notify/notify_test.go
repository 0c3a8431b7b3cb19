package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
	"alertflow/internal/permanent"
)

func testAlert() domain.Alert {
	return domain.Alert{
		ID:        "a1",
		Title:     "disk usage high",
		Message:   "disk usage above 90%",
		Severity:  domain.SeverityCritical,
		Category:  "infrastructure",
		Source:    "node-1",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:    domain.StatusNew,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherBuildsOnlyEnabledChannels(t *testing.T) {
	cfg := config.NotifyConfig{SendTimeoutSec: 5}
	cfg.Slack.Enabled = true
	cfg.Slack.WebhookURL = "https://hooks.example.com/x"
	cfg.SMS.Enabled = true

	dispatcher := NewDispatcher(cfg, discardLogger())
	channels := dispatcher.Channels()
	if len(channels) != 2 || channels[0] != config.ChannelSlack || channels[1] != config.ChannelSMS {
		t.Fatalf("channels = %v, want [slack sms]", channels)
	}

	err := dispatcher.Send(context.Background(), config.ChannelEmail, testAlert(), false)
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("disabled channel error = %v", err)
	}
}

func TestSlackSenderPayload(t *testing.T) {
	var captured struct {
		Text        string `json:"text"`
		Attachments []struct {
			Color  string `json:"color"`
			Title  string `json:"title"`
			Fields []struct {
				Title string `json:"title"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"attachments"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if err := json.NewDecoder(request.Body).Decode(&captured); err != nil {
			t.Errorf("decode slack payload: %v", err)
		}
		writer.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	sender := NewSlackSender(config.SlackNotifier{Enabled: true, WebhookURL: server.URL, TimeoutSec: 5})
	if err := sender.Send(context.Background(), testAlert(), false); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(captured.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(captured.Attachments))
	}
	attachment := captured.Attachments[0]
	if attachment.Color != "danger" {
		t.Fatalf("critical color = %q, want danger", attachment.Color)
	}
	if attachment.Title != "disk usage high" {
		t.Fatalf("title = %q", attachment.Title)
	}
	if len(attachment.Fields) != 4 || attachment.Fields[0].Value != "CRITICAL" {
		t.Fatalf("fields = %+v", attachment.Fields)
	}
}

func TestSlackEscalationMarksTitle(t *testing.T) {
	var title string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		var payload struct {
			Attachments []struct {
				Title string `json:"title"`
			} `json:"attachments"`
		}
		_ = json.NewDecoder(request.Body).Decode(&payload)
		if len(payload.Attachments) == 1 {
			title = payload.Attachments[0].Title
		}
		writer.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	sender := NewSlackSender(config.SlackNotifier{Enabled: true, WebhookURL: server.URL, TimeoutSec: 5})
	if err := sender.Send(context.Background(), testAlert(), true); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.HasPrefix(title, "Escalated alert") {
		t.Fatalf("escalation title = %q", title)
	}
}

func TestDiscordColorBySeverity(t *testing.T) {
	var color int
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		var payload struct {
			Embeds []struct {
				Color int `json:"color"`
			} `json:"embeds"`
		}
		_ = json.NewDecoder(request.Body).Decode(&payload)
		if len(payload.Embeds) == 1 {
			color = payload.Embeds[0].Color
		}
		writer.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	sender := NewDiscordSender(config.DiscordNotifier{Enabled: true, WebhookURL: server.URL, TimeoutSec: 5})

	alert := testAlert()
	alert.Severity = domain.SeverityHigh
	if err := sender.Send(context.Background(), alert, false); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if color != 0xFF8000 {
		t.Fatalf("high color = %#x, want 0xFF8000", color)
	}
}

func TestWebhookEnvelopeAndHeaders(t *testing.T) {
	var payload webhookPayload
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotHeader = request.Header.Get("X-Team")
		_ = json.NewDecoder(request.Body).Decode(&payload)
		writer.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	sender := NewWebhookSender(config.WebhookNotifier{
		Enabled:    true,
		URLs:       []string{server.URL},
		Headers:    map[string]string{"X-Team": "ops"},
		TimeoutSec: 5,
	})
	if err := sender.Send(context.Background(), testAlert(), true); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if payload.Alert.ID != "a1" || !payload.Escalation {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.SentAt == "" {
		t.Fatal("sent_at missing")
	}
	if gotHeader != "ops" {
		t.Fatalf("X-Team header = %q", gotHeader)
	}
}

func TestClientErrorsAreMarkedPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	sender := NewSlackSender(config.SlackNotifier{Enabled: true, WebhookURL: server.URL, TimeoutSec: 5})
	err := sender.Send(context.Background(), testAlert(), false)
	if err == nil {
		t.Fatal("expected send error")
	}
	if !permanent.Is(err) {
		t.Fatalf("4xx error not marked permanent: %v", err)
	}

	server5xx := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server5xx.Close)

	sender = NewSlackSender(config.SlackNotifier{Enabled: true, WebhookURL: server5xx.URL, TimeoutSec: 5})
	err = sender.Send(context.Background(), testAlert(), false)
	if err == nil || permanent.Is(err) {
		t.Fatalf("5xx error must stay retryable: %v", err)
	}
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}
		writer.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cfg := config.NotifyConfig{SendTimeoutSec: 5}
	cfg.Webhook.Enabled = true
	cfg.Webhook.URLs = []string{server.URL}
	cfg.Webhook.TimeoutSec = 5
	cfg.Webhook.Retry = config.NotifyRetry{Enabled: true, MaxAttempts: 5, Backoff: "fixed", InitialMS: 1, MaxMS: 5}

	dispatcher := NewDispatcher(cfg, discardLogger())
	if err := dispatcher.Send(context.Background(), config.ChannelWebhook, testAlert(), false); err != nil {
		t.Fatalf("Send after retries: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestDispatcherStopsOnPermanentError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writer.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	cfg := config.NotifyConfig{SendTimeoutSec: 5}
	cfg.Webhook.Enabled = true
	cfg.Webhook.URLs = []string{server.URL}
	cfg.Webhook.TimeoutSec = 5
	cfg.Webhook.Retry = config.NotifyRetry{Enabled: true, MaxAttempts: 5, Backoff: "fixed", InitialMS: 1, MaxMS: 5}

	dispatcher := NewDispatcher(cfg, discardLogger())
	err := dispatcher.Send(context.Background(), config.ChannelWebhook, testAlert(), false)
	if err == nil {
		t.Fatal("expected send error")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want 1 (permanent error must stop retries)", got)
	}
}

func TestDispatcherExhaustsAttempts(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writer.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cfg := config.NotifyConfig{SendTimeoutSec: 5}
	cfg.Webhook.Enabled = true
	cfg.Webhook.URLs = []string{server.URL}
	cfg.Webhook.TimeoutSec = 5
	cfg.Webhook.Retry = config.NotifyRetry{Enabled: true, MaxAttempts: 3, Backoff: "exponential", InitialMS: 1, MaxMS: 4}

	dispatcher := NewDispatcher(cfg, discardLogger())
	err := dispatcher.Send(context.Background(), config.ChannelWebhook, testAlert(), false)
	if err == nil || !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("exhaustion error = %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestStubSenderAlwaysSucceeds(t *testing.T) {
	sender := NewStubSender(config.ChannelSMS, discardLogger())
	if sender.Channel() != config.ChannelSMS {
		t.Fatalf("channel = %q", sender.Channel())
	}
	if err := sender.Send(context.Background(), testAlert(), true); err != nil {
		t.Fatalf("stub send: %v", err)
	}
}

func TestEmailSubjectFormat(t *testing.T) {
	alert := testAlert()
	if got := emailSubject(alert, false); got != "ALERT - CRITICAL - disk usage high" {
		t.Fatalf("subject = %q", got)
	}
	if got := emailSubject(alert, true); got != "[ESCALATION] ALERT - CRITICAL - disk usage high" {
		t.Fatalf("escalation subject = %q", got)
	}
}

func TestEmailSenderRequiresConfig(t *testing.T) {
	sender := NewEmailSender(config.EmailNotifier{Enabled: true})
	err := sender.Send(context.Background(), testAlert(), false)
	if err == nil || !permanent.Is(err) {
		t.Fatalf("missing config error = %v, want permanent", err)
	}
}
