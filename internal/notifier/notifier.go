// Package notifier delivers operational alerts, currently over SMTP.
package notifier

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// Notifier is implemented by anything that can deliver an alert.
type Notifier interface {
	Send(subject, body string) error
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type Email struct {
	cfg EmailConfig
}

func NewEmail(cfg EmailConfig) *Email {
	return &Email{cfg: cfg}
}

func (e *Email) Send(subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", e.cfg.From)
	msg.SetHeader("To", e.cfg.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(e.cfg.Host, e.cfg.Port, e.cfg.Username, e.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}
