package notify

import (
	"context"
	"log/slog"

	"alertflow/internal/domain"
)

// StubSender logs deliveries for transports without a wired provider.
// SMS and push keep their lifecycle records without external calls.
// Params: channel key and logger.
// Returns: log-only channel sender.
type StubSender struct {
	channel string
	logger  *slog.Logger
}

// NewStubSender creates a log-only sender for one channel key.
// Params: channel key and optional logger.
// Returns: initialized sender.
func NewStubSender(channel string, logger *slog.Logger) *StubSender {
	return &StubSender{channel: channel, logger: logger}
}

// Channel returns sender channel name.
// Params: none.
// Returns: configured channel key.
func (s *StubSender) Channel() string {
	return s.channel
}

// Send records the delivery in the log and reports success.
// Params: context, alert snapshot, and escalation marker.
// Returns: nil.
func (s *StubSender) Send(_ context.Context, alert domain.Alert, escalation bool) error {
	if s.logger != nil {
		s.logger.Info("stub notification delivered",
			"channel", s.channel,
			"alert_id", alert.ID,
			"severity", string(alert.Severity),
			"escalation", escalation,
		)
	}
	return nil
}
