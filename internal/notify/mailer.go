package notify

import (
	"context"
	"crypto/tls"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Sender delivers a single plain-text email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends through an SMTP relay using STARTTLS when offered.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSender возвращает SMTP-отправителя. Если сервер не задан — Disabled (письма только в лог).
func NewSender(cfg SMTPConfig) Sender {
	if cfg.Server == "" {
		slog.Warn("mail: MAIL_SERVER not set, outbound email disabled")
		return Disabled{}
	}
	d := gomail.NewDialer(cfg.Server, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Server, MinVersion: tls.VersionTLS12}
	return &SMTPSender{dialer: d, from: cfg.From}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// Disabled отбрасывает все письма; используется без настроенного SMTP.
type Disabled struct{}

func (Disabled) Send(_ context.Context, to, subject, _ string) error {
	slog.Debug("mail: disabled, dropping message", "to", to, "subject", subject)
	return nil
}
