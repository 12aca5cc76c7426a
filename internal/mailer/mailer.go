package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer sends transactional email to candidates.
type Mailer interface {
	Send(ctx context.Context, to, toName, subject, plainText, htmlBody string) error
}

// Config holds sender identity and credentials.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridMailer delivers mail through the SendGrid API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
	logger *zap.Logger
}

// NewSendGridMailer builds a mailer. When no API key is configured it returns
// a log-only mailer so local development works without credentials.
func NewSendGridMailer(cfg Config, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		logger.Warn("no sendgrid api key configured, falling back to log-only mailer")
		return &logMailer{logger: logger}
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

// Send delivers one message to one recipient.
func (m *SendGridMailer) Send(ctx context.Context, to, toName, subject, plainText, htmlBody string) error {
	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail(toName, to), plainText, htmlBody)
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("send email: sendgrid returned status %d", resp.StatusCode)
	}
	m.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// logMailer records outgoing mail without delivering it.
type logMailer struct {
	logger *zap.Logger
}

func (m *logMailer) Send(_ context.Context, to, _, subject, plainText, _ string) error {
	m.logger.Info("email (log only)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", plainText),
	)
	return nil
}
