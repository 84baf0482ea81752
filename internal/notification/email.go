package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrEmailDisabled is returned for every send when no SMTP host is configured.
var ErrEmailDisabled = errors.New("email notifications disabled")

// EmailConfig holds configuration for the SMTP mailer
type EmailConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	FromName      string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Mailer sends a single plain-text email.
type Mailer interface {
	SendEmail(ctx context.Context, to EmailRecipient, subject, body string) error
	Enabled() bool
}

// SMTPMailer delivers email through an SMTP relay with retries.
type SMTPMailer struct {
	config EmailConfig
	send   func(ctx context.Context, msg *mail.Msg) error
	logger *log.Logger
}

// NewSMTPMailer creates a mailer. An empty host yields a disabled mailer.
func NewSMTPMailer(config EmailConfig, logger *log.Logger) *SMTPMailer {
	if logger == nil {
		logger = log.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}

	m := &SMTPMailer{config: config, logger: logger}
	m.send = m.dialAndSend
	return m
}

func (m *SMTPMailer) Enabled() bool { return m.config.Host != "" }

// SendEmail sends one message, retrying transient failures with a linear
// backoff. Invalid addresses and permanent SMTP rejections are not retried.
func (m *SMTPMailer) SendEmail(ctx context.Context, to EmailRecipient, subject, body string) error {
	if !m.Enabled() {
		return ErrEmailDisabled
	}

	msg, err := m.buildMessage(to, subject, body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= m.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.config.RetryDelay * time.Duration(attempt)):
			}
			m.logger.Printf("Retrying email to %s (attempt %d/%d)", to.Address, attempt+1, m.config.RetryAttempts+1)
		}

		if err := m.send(ctx, msg); err != nil {
			lastErr = err
			m.logger.Printf("Email send attempt %d to %s failed: %v", attempt+1, to.Address, err)

			var sendErr *mail.SendError
			if errors.As(err, &sendErr) && !sendErr.IsTemp() {
				return err
			}
			continue
		}

		return nil
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", m.config.RetryAttempts+1, lastErr)
}

func (m *SMTPMailer) buildMessage(to EmailRecipient, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	var err error
	if m.config.FromName != "" {
		err = msg.FromFormat(m.config.FromName, m.config.From)
	} else {
		err = msg.From(m.config.From)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", m.config.From, err)
	}

	if to.Name != "" {
		err = msg.AddToFormat(to.Name, to.Address)
	} else {
		err = msg.AddTo(to.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", to.Address, err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTimeout(m.config.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}

	client, err := mail.NewClient(m.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}
