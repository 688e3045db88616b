package notify

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

// Providers accepted by NewEmailSender.
const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
	ProviderStub     = "stub"
)

// Config selects and configures the email provider.
type Config struct {
	Provider       string
	FromEmail      string
	FromName       string
	SMTP           SMTPConfig
	SendGridAPIKey string
}

// NewEmailSender builds the configured sender. A provider missing its
// credentials, or SES without an AWS config, falls back to the stub with
// a warning. An unknown provider is an error.
func NewEmailSender(cfg Config, awsCfg *aws.Config, logger *logging.Logger) (EmailSender, error) {
	if logger == nil {
		logger = logging.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderSMTP:
		smtp := cfg.SMTP
		smtp.FromEmail, smtp.FromName = cfg.FromEmail, cfg.FromName
		if s := NewSMTPSender(smtp, logger); s != nil {
			return s, nil
		}
	case ProviderSendGrid:
		if s := NewSendGridSender(SendGridConfig{APIKey: cfg.SendGridAPIKey, FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
			return s, nil
		}
	case ProviderSES:
		if awsCfg == nil {
			break
		}
		if s := NewSESSender(sesv2.NewFromConfig(*awsCfg), SESConfig{FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger); s != nil {
			return s, nil
		}
	case ProviderStub, "":
		return NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("notify: unknown email provider %q", cfg.Provider)
	}
	logger.Warn("email provider not configured; using stub sender", "provider", provider)
	return NewStubEmailSender(logger), nil
}
