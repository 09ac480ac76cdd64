// Package mailer delivers account emails: verification and password reset links.
package mailer

import (
	"context"
	"fmt"
	"task-manager-api/config"
	"task-manager-api/logger"

	"github.com/matcornic/hermes/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type Message struct {
	To      string
	Subject string
	Content hermes.Email
}

// Mailer sends a Message. Callers treat failures as non-fatal.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer renders messages with hermes and delivers them over SMTP.
type SMTPMailer struct {
	from   string
	brand  hermes.Hermes
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		from: cfg.From,
		brand: hermes.Hermes{
			Theme: new(hermes.Default),
			Product: hermes.Product{
				Name: cfg.ProductName,
				Link: cfg.ProductLink,
			},
		},
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Render produces the HTML and plain-text bodies of msg.
func (m *SMTPMailer) Render(msg Message) (html, text string, err error) {
	html, err = m.brand.GenerateHTML(msg.Content)
	if err != nil {
		return "", "", fmt.Errorf("failed to render html body: %w", err)
	}
	text, err = m.brand.GeneratePlainText(msg.Content)
	if err != nil {
		return "", "", fmt.Errorf("failed to render text body: %w", err)
	}
	return html, text, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	html, text, err := m.Render(msg)
	if err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", text)
	gm.AddAlternative("text/html", html)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// NoopMailer is used when mail delivery is disabled. It only logs.
type NoopMailer struct{}

func (NoopMailer) Send(ctx context.Context, msg Message) error {
	logger.Log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Mail delivery disabled, message dropped")
	return nil
}
