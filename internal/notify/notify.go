package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"alertflow/internal/config"
	"alertflow/internal/domain"
	"alertflow/internal/permanent"
)

// ChannelSender sends one outbound alert notification to one channel.
// Params: context, alert snapshot, and escalation marker.
// Returns: transport error when delivery fails.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, alert domain.Alert, escalation bool) error
}

// Dispatcher delivers alert notifications with configured retries/backoff.
// Params: sender list, retry policies, and per-attempt timeout.
// Returns: send helper for manager layer.
type Dispatcher struct {
	senders  map[string]ChannelSender
	channels []string
	retries  map[string]config.NotifyRetry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher builds notification dispatcher from enabled channels.
// Params: global notify config and optional logger.
// Returns: configured dispatcher with available senders.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	senders := make(map[string]ChannelSender)
	retries := make(map[string]config.NotifyRetry)
	for _, channel := range config.ChannelNames() {
		if !config.ChannelEnabled(cfg, channel) {
			continue
		}
		sender := newSenderForChannel(channel, cfg, logger)
		if sender == nil {
			continue
		}
		senders[channel] = sender
		retries[channel] = config.ChannelRetry(cfg, channel)
	}
	channels := make([]string, 0, len(senders))
	for channel := range senders {
		channels = append(channels, channel)
	}
	sort.Strings(channels)
	return &Dispatcher{
		senders:  senders,
		channels: channels,
		retries:  retries,
		timeout:  config.SendTimeout(cfg),
		logger:   logger,
	}
}

// newSenderForChannel builds transport sender implementation for one channel key.
// Params: normalized channel key, full notify config, and logger for stubs.
// Returns: channel sender or nil when channel is unknown.
func newSenderForChannel(channel string, cfg config.NotifyConfig, logger *slog.Logger) ChannelSender {
	switch channel {
	case config.ChannelEmail:
		return NewEmailSender(cfg.Email)
	case config.ChannelSlack:
		return NewSlackSender(cfg.Slack)
	case config.ChannelDiscord:
		return NewDiscordSender(cfg.Discord)
	case config.ChannelTelegram:
		return NewTelegramSender(cfg.Telegram)
	case config.ChannelWebhook:
		return NewWebhookSender(cfg.Webhook)
	case config.ChannelSMS:
		return NewStubSender(config.ChannelSMS, logger)
	case config.ChannelPush:
		return NewStubSender(config.ChannelPush, logger)
	default:
		return nil
	}
}

// Send delivers one alert to one channel with retry policy.
// Params: destination channel, alert snapshot, and escalation marker.
// Returns: final error after retries.
func (d *Dispatcher) Send(ctx context.Context, channel string, alert domain.Alert, escalation bool) error {
	sender, ok := d.senders[channel]
	if !ok {
		return fmt.Errorf("notify channel %q is not configured", channel)
	}
	return d.sendWithRetry(ctx, sender, alert, escalation, d.retries[channel])
}

// sendOnce runs one delivery attempt under the per-attempt timeout.
// Params: sender, alert snapshot, and escalation marker.
// Returns: attempt error.
func (d *Dispatcher) sendOnce(ctx context.Context, sender ChannelSender, alert domain.Alert, escalation bool) error {
	if d.timeout <= 0 {
		return sender.Send(ctx, alert, escalation)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return sender.Send(attemptCtx, alert, escalation)
}

// sendWithRetry sends one notification with channel-specific retry policy.
// Params: sender, payload, escalation marker, and retry policy.
// Returns: final error after retries; permanent errors stop retrying early.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender ChannelSender, alert domain.Alert, escalation bool, retry config.NotifyRetry) error {
	if !retry.Enabled {
		return d.sendOnce(ctx, sender, alert, escalation)
	}

	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	var timer *time.Timer

	for {
		attempt++
		err := d.sendOnce(ctx, sender, alert, escalation)
		if err == nil {
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			if retry.LogEachAttempt && attempt > 1 && d.logger != nil {
				d.logger.Info("notify send recovered after retries", "channel", sender.Channel(), "attempt", attempt)
			}
			return nil
		}
		if retry.LogEachAttempt && d.logger != nil {
			d.logger.Warn("notify send attempt failed", "channel", sender.Channel(), "attempt", attempt, "error", err.Error())
		}

		done := permanent.Is(err) || (retry.MaxAttempts > 0 && attempt >= retry.MaxAttempts)
		if done {
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			return fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			return ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// Channels returns configured channel list.
// Params: none.
// Returns: deterministic sender keys.
func (d *Dispatcher) Channels() []string {
	return d.channels
}

// unexpectedHTTPStatusError formats non-2xx HTTP response with optional body.
// Client-class statuses get the permanent marker so retries stop.
// Params: sender prefix label and HTTP response pointer.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return permanent.MarkIfClientStatus(
			fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr),
			response.StatusCode,
		)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	var err error
	if trimmedBody == "" {
		err = fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	} else {
		err = fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
	}
	return permanent.MarkIfClientStatus(err, response.StatusCode)
}
