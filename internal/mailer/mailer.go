// Package mailer sends HTML email with file attachments.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/wneessen/go-mail"

	"membership/internal/config"
	"membership/internal/logger"
)

// Attachment is a file on disk sent under Name.
type Attachment struct {
	Path string
	Name string
}

// Message is a single outgoing email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer dispatches messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer, or a Log mailer when no host is configured.
func New(cfg config.SMTP, log *logger.Logger) (Mailer, error) {
	if cfg.Host == "" {
		log.Warn("Mailer: EMAIL_HOST not set, messages will only be logged")
		return NewLog(log), nil
	}
	return NewSMTP(cfg, log)
}

// SMTP delivers messages through an SMTP relay.
type SMTP struct {
	client *mail.Client
	from   string
	log    *logger.Logger
}

// NewSMTP builds an SMTP mailer. Port 465 uses implicit TLS, anything else
// upgrades with STARTTLS when the server offers it.
func NewSMTP(cfg config.SMTP, log *logger.Logger) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Pass),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &SMTP{client: client, from: cfg.From, log: log}, nil
}

// Send builds the MIME message and delivers it.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.log.Info("Mailer: email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func buildMsg(from string, msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, errors.New("email recipient is required")
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	for _, a := range msg.Attachments {
		if _, err := os.Stat(a.Path); err != nil {
			return nil, fmt.Errorf("failed to read attachment: %w", err)
		}
		m.AttachFile(a.Path, mail.WithFileName(a.Name))
	}
	return m, nil
}

// Log writes messages to the application log instead of sending them.
type Log struct {
	log *logger.Logger
}

// NewLog creates a logging mailer.
func NewLog(log *logger.Logger) *Log {
	return &Log{log: log}
}

// Send validates attachments exist and logs the message.
func (l *Log) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		info, err := os.Stat(a.Path)
		if err != nil {
			return fmt.Errorf("failed to read attachment: %w", err)
		}
		names = append(names, fmt.Sprintf("%s (%d bytes)", a.Name, info.Size()))
	}
	l.log.Info("Mailer: email logged", "to", msg.To, "subject", msg.Subject, "attachments", names)
	return nil
}
