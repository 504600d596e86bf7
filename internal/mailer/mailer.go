// Package mailer sends invitation notifications over SMTP.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/groupnotes/backend/internal/config"
	"github.com/groupnotes/backend/pkg/logger"
)

// Mailer is the notification dispatch used by the invitation flow. Tests
// substitute a recording implementation.
type Mailer interface {
	SendHTML(to, subject, htmlBody string) error
}

type SMTPMailer struct {
	cfg  config.SMTPConfig
	addr string
	auth smtp.Auth
}

func New(cfg config.SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPMailer{
		cfg:  cfg,
		addr: cfg.Host + ":" + cfg.Port,
		auth: auth,
	}
}

func (m *SMTPMailer) configured() bool {
	return m.cfg.Host != "" && m.cfg.From != ""
}

func (m *SMTPMailer) SendHTML(to, subject, htmlBody string) error {
	if !m.configured() {
		return fmt.Errorf("mailer not configured")
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=\"UTF-8\"\r\n")
	fmt.Fprintf(&msg, "\r\n%s\r\n", htmlBody)

	if err := smtp.SendMail(m.addr, m.auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		logger.Error("mail_send_failed", err, map[string]interface{}{
			"to":      to,
			"subject": subject,
		})
		return err
	}

	logger.Info("mail_sent", map[string]interface{}{
		"to":      to,
		"subject": subject,
	})
	return nil
}
