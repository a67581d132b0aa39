// Package mailer sends transactional mail, currently only project invitations.
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/loomworks/loomspace/pkg/config"
)

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg *config.Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password),
		from:   cfg.SMTP.From,
	}
}

// SendInvitation mails the invitation code to the invitee. Callers treat a
// failure as non-fatal; the invitation row already exists.
func (m *Mailer) SendInvitation(email, inviterName, projectName, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", fmt.Sprintf("%s invited you to %s", inviterName, projectName))
	msg.SetBody("text/plain", fmt.Sprintf(
		"You have been invited to join the project %q.\n\nYour invitation code: %s\n", projectName, code))
	return m.dialer.DialAndSend(msg)
}
