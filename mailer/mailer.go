// Package mailer is the outgoing-mail collaborator. The auth service only
// ever asks it to send a message; delivery guarantees and templating are
// out of scope.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer sends email. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	account  string
	password string
	from     string
}

func NewSMTPMailer(host, port, account, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		account:  account,
		password: password,
		from:     from,
	}
}

func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	body := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s",
		m.from, msg.To, msg.Subject, msg.HTML,
	)

	auth := smtp.PlainAuth("", m.account, m.password, m.host)
	if err := smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{msg.To}, []byte(body)); err != nil {
		return errors.Wrap(err, "[SMTPMailer.Send] send mail")
	}
	return nil
}

// LogMailer logs instead of sending; the dev/test collaborator.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("mail suppressed (log mailer)")
	return nil
}
