package contact

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/lunasphere/lunasphere-core/internal/infrastructure/config"
	"github.com/lunasphere/lunasphere-core/internal/infrastructure/logging"
)

// SMTPMailer delivers contact messages through an SMTP relay.
type SMTPMailer struct {
	cfg       config.SMTPConfig
	recipient string
}

// NewSMTPMailer creates a mailer for the configured relay and recipient.
func NewSMTPMailer(cfg config.SMTPConfig, recipient string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, recipient: recipient}
}

// Send delivers the message. The context is checked before dialling; net/smtp
// itself does not support cancellation mid-send.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := msg.Subject
	if subject == "" {
		subject = "Contact form submission " + msg.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.recipient)
	fmt.Fprintf(&b, "Reply-To: %s <%s>\r\n", msg.Name, msg.Email)
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", msg.ID, subject)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Submission: %s\r\nName: %s\r\nEmail: %s\r\n\r\n%s\r\n",
		msg.ID, msg.Name, msg.Email, msg.Body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{m.recipient}, []byte(b.String())); err != nil {
		return fmt.Errorf("sending contact mail: %w", err)
	}
	return nil
}

// LogMailer logs contact messages instead of sending them.
// Used in development when no SMTP relay is configured.
type LogMailer struct {
	logger *logging.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "contact")}
}

// Send logs the message at info level.
func (m *LogMailer) Send(_ context.Context, msg *Message) error {
	m.logger.Info("contact message received (mail delivery disabled)",
		"submission_id", msg.ID,
		"name", msg.Name,
		"email", msg.Email,
		"subject", msg.Subject,
	)
	return nil
}
