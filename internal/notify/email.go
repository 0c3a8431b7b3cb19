package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"alertflow/internal/config"
	"alertflow/internal/domain"
	"alertflow/internal/permanent"
)

// EmailSender delivers alerts over SMTP with STARTTLS.
// Params: server endpoint, credentials, and recipient list from config.
// Returns: email channel sender.
type EmailSender struct {
	cfg     config.EmailNotifier
	initErr error
}

// NewEmailSender creates SMTP sender.
// Params: email notifier config.
// Returns: initialized sender; config gaps surface on first send.
func NewEmailSender(cfg config.EmailNotifier) *EmailSender {
	sender := &EmailSender{cfg: cfg}
	if strings.TrimSpace(cfg.SMTPServer) == "" {
		sender.initErr = permanent.Mark(errors.New("email smtp_server is required"))
		return sender
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		sender.initErr = permanent.Mark(errors.New("email from_email is required"))
		return sender
	}
	if len(cfg.ToEmails) == 0 {
		sender.initErr = permanent.Mark(errors.New("email to_emails is required"))
		return sender
	}
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *EmailSender) Channel() string {
	return config.ChannelEmail
}

// Send delivers one alert email to all configured recipients.
// Params: context, alert snapshot, and escalation marker.
// Returns: dial, auth, or SMTP protocol error.
func (s *EmailSender) Send(ctx context.Context, alert domain.Alert, escalation bool) error {
	if s.initErr != nil {
		return s.initErr
	}

	addr := net.JoinHostPort(s.cfg.SMTPServer, strconv.Itoa(s.cfg.SMTPPort))
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("email dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPServer)
	if err != nil {
		conn.Close()
		return fmt.Errorf("email handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.cfg.SMTPServer}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("email starttls: %w", err)
		}
	}
	if strings.TrimSpace(s.cfg.Username) != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPServer)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("email auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.FromEmail); err != nil {
		return fmt.Errorf("email mail from: %w", err)
	}
	for _, recipient := range s.cfg.ToEmails {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("email rcpt %s: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("email data: %w", err)
	}
	if _, err := writer.Write(s.buildMessage(alert, escalation)); err != nil {
		writer.Close()
		return fmt.Errorf("email write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("email close body: %w", err)
	}
	return client.Quit()
}

// buildMessage renders RFC 5322 headers and the plain-text body.
// Params: alert snapshot and escalation marker.
// Returns: complete message bytes.
func (s *EmailSender) buildMessage(alert domain.Alert, escalation bool) []byte {
	subject := emailSubject(alert, escalation)

	var msg strings.Builder
	msg.WriteString("From: " + s.cfg.FromEmail + "\r\n")
	msg.WriteString("To: " + strings.Join(s.cfg.ToEmails, ", ") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(emailBody(alert, escalation))
	return []byte(msg.String())
}

// emailSubject builds the alert subject line.
// Params: alert snapshot and escalation marker.
// Returns: subject string with optional escalation prefix.
func emailSubject(alert domain.Alert, escalation bool) string {
	prefix := ""
	if escalation {
		prefix = "[ESCALATION] "
	}
	return fmt.Sprintf("%sALERT - %s - %s", prefix, strings.ToUpper(string(alert.Severity)), alert.Title)
}

// emailBody renders the plain-text alert description.
// Params: alert snapshot and escalation marker.
// Returns: body text.
func emailBody(alert domain.Alert, escalation bool) string {
	details, err := json.MarshalIndent(alert.Metadata, "", "  ")
	if err != nil {
		details = []byte("{}")
	}

	var body strings.Builder
	body.WriteString("Monitoring system alert\r\n\r\n")
	body.WriteString("Title: " + alert.Title + "\r\n")
	body.WriteString("Severity: " + strings.ToUpper(string(alert.Severity)) + "\r\n")
	body.WriteString("Category: " + alert.Category + "\r\n")
	body.WriteString("Source: " + alert.Source + "\r\n")
	body.WriteString("Time: " + alert.CreatedAt.Format("2006-01-02 15:04:05") + "\r\n")
	body.WriteString("Status: " + string(alert.Status) + "\r\n\r\n")
	body.WriteString("Message:\r\n" + alert.Message + "\r\n\r\n")
	body.WriteString("Details:\r\n" + string(details) + "\r\n")
	if escalation {
		body.WriteString("\r\nThis alert was escalated from previous levels.\r\n")
	}
	return body.String()
}
