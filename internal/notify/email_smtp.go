package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/wolfman30/homevisit-scheduler/pkg/logging"
)

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig holds relay credentials. Port 587 uses STARTTLS.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// SMTPSender relays mail through an SMTP server.
type SMTPSender struct {
	dialer    smtpDialer
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// NewSMTPSender returns nil when no host is configured.
func NewSMTPSender(cfg SMTPConfig, logger *logging.Logger) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return newSMTPSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, logger)
}

func newSMTPSender(d smtpDialer, cfg SMTPConfig, logger *logging.Logger) *SMTPSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SMTPSender{dialer: d, fromEmail: cfg.FromEmail, fromName: cfg.FromName, logger: logger}
}

// Send builds a multipart message; gomail has no context support, so ctx
// is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.dialer == nil {
		return fmt.Errorf("notify: smtp dialer not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("smtp send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: smtp send failed: %w", err)
	}
	s.logger.Info("email sent via smtp", "to", msg.To, "subject", msg.Subject)
	return nil
}

var _ EmailSender = (*SMTPSender)(nil)
