package platform

import (
	"net/smtp"

	"capstone/config"

	"github.com/jordan-wright/email"
	"github.com/pkg/errors"
)

// Mailer sends plain-text e-mail through the configured SMTP relay.
type Mailer struct {
	cfg config.SMTPConfig
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Send(to, subject, body string) error {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	if err := e.Send(m.cfg.Host+":"+m.cfg.Port, auth); err != nil {
		return errors.Wrapf(err, "failed to send mail to %s", to)
	}
	return nil
}
