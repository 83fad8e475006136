package mailer

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"prepstock-system/config"
	"prepstock-system/internal/logger"
)

type Mailer interface {
	Send(to, subject, body string) error
}

// NewFromConfig returns an SMTP mailer, or a log-only mailer when no SMTP
// host is configured (local development).
func NewFromConfig(cfg config.SMTPConfig) Mailer {
	if cfg.Host == "" {
		return &logMailer{}
	}
	return &smtpMailer{cfg: cfg}
}

type smtpMailer struct {
	cfg config.SMTPConfig
}

func (m *smtpMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, body)

	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
}

type logMailer struct{}

func (m *logMailer) Send(to, subject, body string) error {
	logger.Info("SMTP not configured, logging mail instead",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
