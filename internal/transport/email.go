// Package transport holds the outbound notification channels: mailgun email,
// OneSignal push and an HTTP SMS gateway.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunConfig holds the email transport settings
type MailgunConfig struct {
	Domain  string
	APIKey  string
	APIBase string
	From    string
	Timeout time.Duration
}

// Mailgun sends templated email through mailgun
type Mailgun struct {
	mg      *mailgun.MailgunImpl
	from    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMailgun creates a new Mailgun sender
func NewMailgun(cfg MailgunConfig, logger *slog.Logger) *Mailgun {
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Mailgun{
		mg:      mg,
		from:    cfg.From,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// SendEmail sends one templated message. data becomes the template variables.
func (m *Mailgun) SendEmail(ctx context.Context, to, name, subject, template string, data map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	recipient := to
	if name != "" {
		recipient = fmt.Sprintf("%s <%s>", name, to)
	}

	message := m.mg.NewMessage(m.from, subject, "")
	message.SetTemplate(template)
	if err := message.AddRecipient(recipient); err != nil {
		return fmt.Errorf("failed to add email recipient: %w", err)
	}
	for k, v := range data {
		if err := message.AddVariable(k, v); err != nil {
			return fmt.Errorf("failed to add email variable %q: %w", k, err)
		}
	}

	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Debug("Email queued",
		slog.String("id", id),
		slog.String("template", template),
	)
	return nil
}
