package mailer

import (
	"fmt"
	"net/smtp"
)

// Mailer sends plain-text mail. Handlers depend on this interface so tests
// can swap in a recorder.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer implements Mailer over a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
}

// NewSMTPMailer creates a new SMTPMailer.
func NewSMTPMailer(host, port, username, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password}
}

// Send delivers one message. The username doubles as the From address.
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.username, to, subject, body))
	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, auth, m.username, []string{to}, msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
