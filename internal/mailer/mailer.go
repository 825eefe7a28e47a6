// Package mailer delivers password-reset codes over SMTP through a
// background job queue. Delivery confirmation is not required for a code
// to be valid; it is valid the moment it is persisted.
package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type Mailer struct {
	cfg Config
}

func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

// SendOTP mails the reset code to the account's address.
func (m *Mailer) SendOTP(to, code string, expiresAt time.Time) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your password reset code")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your one-time password reset code is %s.\nIt expires at %s.\nIf you did not request a reset, ignore this message.",
		code, expiresAt.Format(time.RFC1123)))
	d := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	return d.DialAndSend(msg)
}
