package notify

import (
	"context"
	"errors"
	"html"
	"strings"

	"gopkg.in/gomail.v2"
)

// SMTPConfig holds outgoing mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends templated HTML email over SMTP.
type Mailer struct {
	from      string
	sender    mailSender
	templates *TemplateManager
}

// NewMailer builds a Mailer backed by a gomail dialer.
func NewMailer(cfg SMTPConfig, templates *TemplateManager) *Mailer {
	return &Mailer{
		from:      cfg.From,
		sender:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		templates: templates,
	}
}

// SendTemplateEmail renders template with vars and delivers it to to.
func (m *Mailer) SendTemplateEmail(ctx context.Context, to, template string, vars map[string]interface{}) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("email: empty recipient")
	}
	subject, body, err := m.templates.Render(template, vars)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", html.UnescapeString(subject))
	msg.SetBody("text/html", body)

	done := make(chan error, 1)
	go func() { done <- m.sender.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
