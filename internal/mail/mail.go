// Package mail delivers result reports over SMTP. Delivery failure is
// reported as a boolean, never as an error: a lost email does not undo
// a finished search.
package mail

import (
	"context"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewMailer(host string, port int, username, password, from string) *Mailer {
	if from == "" {
		from = username
	}
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send attempts delivery of one HTML message. Returns true when the
// server accepted it.
func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) bool {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		slog.Error("invalid sender address", "from", m.from, "error", err)
		return false
	}
	if err := msg.To(to); err != nil {
		slog.Error("invalid recipient address", "to", to, "error", err)
		return false
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	client, err := gomail.NewClient(m.host,
		gomail.WithPort(m.port),
		gomail.WithSSL(),
		gomail.WithSMTPAuth(gomail.SMTPAuthLogin),
		gomail.WithUsername(m.username),
		gomail.WithPassword(m.password),
	)
	if err != nil {
		slog.Error("failed to create mail client", "host", m.host, "error", err)
		return false
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("failed to send email", "to", to, "error", err)
		return false
	}

	slog.Info("email sent", "to", to, "subject", subject)
	return true
}
