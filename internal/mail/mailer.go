// Package mail delivers account verification emails over SMTP.
package mail

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/your-org/annotate/internal/config"
)

// Sender is the delivery boundary; the API degrades to log-only when mail is
// not configured.
type Sender interface {
	SendActivation(recipient, code string) error
	SendPasswordReset(recipient, code string) error
}

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg config.MailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *Mailer) send(recipient, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient, err)
	}
	return nil
}

func (m *Mailer) SendActivation(recipient, code string) error {
	return m.send(recipient,
		"Annotate: Activate Your Account",
		fmt.Sprintf("Your activation code is: %s. Please activate your account.", code))
}

func (m *Mailer) SendPasswordReset(recipient, code string) error {
	return m.send(recipient,
		"Annotate: Reset Your Password",
		fmt.Sprintf("Your reset password code is: %s. Please reset your password.", code))
}

var _ Sender = (*Mailer)(nil)
