// Package email delivers HTML mail over SMTP and renders the subscription
// notices.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"sports-tips-subscription/internal/config"
	"sports-tips-subscription/internal/domain/ports/adapter"
	"sports-tips-subscription/internal/infra/logging"
)

var (
	_ adapter.EmailSender = (*SMTPSender)(nil)
	_ adapter.EmailSender = (*LogSender)(nil)
)

// SMTPSender uses implicit TLS on port 465 and STARTTLS otherwise.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, bodyHTML string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(s.from, to, subject, bodyHTML)
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.port != 465 {
		if err := smtp.SendMail(addr, auth, s.from, []string{to}, msg); err != nil {
			return fmt.Errorf("send mail failed: %w", err)
		}
		return nil
	}

	d := tls.Dialer{Config: &tls.Config{ServerName: s.host}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tls dial failed: %w", err)
	}
	defer conn.Close()
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer client.Quit()
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth failed: %w", err)
		}
	}
	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return w.Close()
}

func buildMessage(from, to, subject, bodyHTML string) []byte {
	var b strings.Builder
	// header injection guard
	clean := func(s string) string { return strings.NewReplacer("\r", "", "\n", "").Replace(s) }
	fmt.Fprintf(&b, "From: %s\r\n", clean(from))
	fmt.Fprintf(&b, "To: %s\r\n", clean(to))
	fmt.Fprintf(&b, "Subject: %s\r\n", clean(subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(bodyHTML)
	return []byte(b.String())
}

// LogSender stands in when e-mail is disabled: messages are logged, not sent.
type LogSender struct {
	log *zerolog.Logger
	dev bool
}

func NewLogSender(logger *zerolog.Logger, dev bool) *LogSender {
	l := logger.With().Str("component", "LogSender").Logger()
	return &LogSender{log: &l, dev: dev}
}

func (s *LogSender) Send(ctx context.Context, to, subject, _ string) error {
	logging.With(ctx, s.log).Info().
		Str("to", logging.Redact(to, s.dev)).
		Str("subject", subject).
		Msg("email suppressed")
	return nil
}
