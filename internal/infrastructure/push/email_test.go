package push

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
)

func TestEmailSenderDispatch(t *testing.T) {
	t.Parallel()

	var sentAddr, sentFrom string
	var sentTo []string
	var sentMsg []byte

	e := NewEmailSender(config.EmailConfig{
		Host: "smtp.example.org",
		Port: 587,
		From: "digest@example.org",
	})
	e.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		sentAddr, sentFrom, sentTo, sentMsg = addr, from, to, msg
		return nil
	}

	digest := domain.Digest{
		Topic:    "robotics",
		NewCount: 1,
		Papers:   []domain.SummaryRecord{{Title: "A Paper", Digest: "- **Point:** finding"}},
	}

	if err := e.Dispatch(context.Background(), "alice@example.org", digest); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if sentAddr != "smtp.example.org:587" {
		t.Fatalf("unexpected addr: %s", sentAddr)
	}
	if sentFrom != "digest@example.org" || len(sentTo) != 1 || sentTo[0] != "alice@example.org" {
		t.Fatalf("unexpected envelope: from=%s to=%v", sentFrom, sentTo)
	}

	body := string(sentMsg)
	if !strings.Contains(body, "Subject: Daily paper digest: robotics\r\n") {
		t.Fatalf("missing subject header:\n%s", body)
	}
	if !strings.Contains(body, "Content-Type: text/plain; charset=UTF-8\r\n") {
		t.Fatalf("missing content type header:\n%s", body)
	}
	if !strings.Contains(body, "A Paper") {
		t.Fatalf("missing rendered digest:\n%s", body)
	}
}

func TestEmailSenderMisconfigured(t *testing.T) {
	t.Parallel()

	e := NewEmailSender(config.EmailConfig{})
	if err := e.Dispatch(context.Background(), "alice@example.org", domain.Digest{}); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}

func TestEmailSenderCancelledContext(t *testing.T) {
	t.Parallel()

	e := NewEmailSender(config.EmailConfig{Host: "smtp.example.org", Port: 587, From: "digest@example.org"})
	e.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatal("send must not run with a cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Dispatch(ctx, "alice@example.org", domain.Digest{}); err == nil {
		t.Fatal("expected context error")
	}
}
