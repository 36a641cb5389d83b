package push

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// EmailSender delivers digests over SMTP as plain-text mail. The recipient
// is the subscription owner's address.
type EmailSender struct {
	cfg  config.EmailConfig
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

var _ ports.NotificationDispatcher = (*EmailSender)(nil)

// NewEmailSender wires the SMTP configuration.
func NewEmailSender(cfg config.EmailConfig) *EmailSender {
	return &EmailSender{cfg: cfg, send: smtp.SendMail}
}

// Dispatch renders the digest and mails it to the recipient.
func (e *EmailSender) Dispatch(ctx context.Context, recipient string, digest domain.Digest) error {
	if e.cfg.Host == "" || e.cfg.From == "" {
		return fmt.Errorf("email dispatcher misconfigured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Daily paper digest: %s", digest.Topic)
	body := renderDigest(digest)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	if err := e.send(addr, auth, e.cfg.From, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send digest mail: %w", err)
	}
	return nil
}
