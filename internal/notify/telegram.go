package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"alertflow/internal/config"
	"alertflow/internal/domain"
	"alertflow/internal/permanent"
)

// TelegramSender sends alerts to the Telegram Bot API.
// Params: bot token, chat id list, and API base override.
// Returns: telegram channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	chatIDs []any
	initErr error
}

// NewTelegramSender creates Telegram sender with HTTP client.
// Params: telegram notifier config.
// Returns: initialized sender.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{}
	for _, chatID := range cfg.ChatIDs {
		sender.chatIDs = append(sender.chatIDs, normalizeChatID(chatID))
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = permanent.Mark(errors.New("telegram bot_token is required"))
		return sender
	}
	if len(sender.chatIDs) == 0 {
		sender.initErr = permanent.Mark(errors.New("telegram chat_ids is required"))
		return sender
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"); base != "" {
		options = append(options, tgbot.WithServerURL(base))
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = permanent.Mark(fmt.Errorf("init telegram bot: %w", err))
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSender) Channel() string {
	return config.ChannelTelegram
}

// Send posts one alert message to every configured chat.
// Params: context, alert snapshot, and escalation marker.
// Returns: first transport error.
func (s *TelegramSender) Send(ctx context.Context, alert domain.Alert, escalation bool) error {
	if s.initErr != nil {
		return s.initErr
	}
	if s.client == nil {
		return errors.New("telegram client is not initialized")
	}

	text := telegramMessage(alert, escalation)
	for _, chatID := range s.chatIDs {
		request := &tgbot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: tgmodels.ParseModeHTML,
		}
		if _, err := s.client.SendMessage(ctx, request); err != nil {
			return fmt.Errorf("telegram send to %v: %w", chatID, err)
		}
	}
	return nil
}

// telegramMessage renders the HTML alert text.
// Params: alert snapshot and escalation marker.
// Returns: message body with optional escalation note.
func telegramMessage(alert domain.Alert, escalation bool) string {
	var text strings.Builder
	text.WriteString("🚨 <b>Monitoring system alert</b>\n\n")
	text.WriteString("📋 Title: " + alert.Title + "\n")
	text.WriteString("🔴 Severity: " + strings.ToUpper(string(alert.Severity)) + "\n")
	text.WriteString("📁 Category: " + alert.Category + "\n")
	text.WriteString("🌐 Source: " + alert.Source + "\n")
	text.WriteString("🕐 Time: " + alert.CreatedAt.Format("2006-01-02 15:04:05") + "\n\n")
	text.WriteString("📝 Details:\n" + alert.Message + "\n")
	if escalation {
		text.WriteString("\n⚠️ This alert was escalated from previous levels.\n")
	}
	text.WriteString("\nAlert id: " + alert.ID)
	return text.String()
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
