// Package mailer sends plain text plus sanitized HTML emails over SMTP and
// reports failures as one of a small set of kinds.
package mailer

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"

	logx "github.com/voice-agent-core/server/pkg/logger"
)

const (
	notConfiguredMessage = "Email service not configured. Set GMAIL_ADDRESS and GMAIL_APP_PASSWORD in .env"
	authFailureMessage   = "Gmail authentication failed. Check your GMAIL_ADDRESS and GMAIL_APP_PASSWORD. Use an App Password, not your regular password."
	protocolErrorMessage = "SMTP error: the mail server rejected the message"
)

type Config struct {
	Address     string        `envconfig:"GMAIL_ADDRESS"`
	AppPassword string        `envconfig:"GMAIL_APP_PASSWORD"`
	Server      string        `envconfig:"SMTP_SERVER" default:"smtp.gmail.com"`
	Port        int           `envconfig:"SMTP_PORT" default:"587"`
	MaxAttempts int           `envconfig:"SMTP_MAX_ATTEMPTS" default:"2"`
	Timeout     time.Duration `envconfig:"SMTP_TIMEOUT" default:"15s"`
	BackoffBase time.Duration `envconfig:"SMTP_BACKOFF_BASE" default:"2s"`
}

// FailureKind classifies why a send failed.
type FailureKind string

const (
	KindNone              FailureKind = ""
	KindNotConfigured     FailureKind = "not_configured"
	KindAuthFailure       FailureKind = "auth_failure"
	KindConnectionFailure FailureKind = "connection_failure"
	KindInvalidRecipient  FailureKind = "invalid_recipient"
	KindProtocolError     FailureKind = "protocol_error"
	KindUnknown           FailureKind = "unknown"
)

// Outcome is the result of one Send call. Error holds text that is safe to
// show to the user.
type Outcome struct {
	Success bool
	Message string
	Details map[string]any
	Error   string
	Kind    FailureKind
}

// Transport delivers a fully built message.
type Transport interface {
	Deliver(ctx context.Context, msg *mail.Msg) error
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Mailer)

// WithTransport replaces the SMTP transport.
func WithTransport(t Transport) Option {
	return func(m *Mailer) { m.transport = t }
}

// WithSleeper replaces the backoff sleeper used between connection retries.
func WithSleeper(s Sleeper) Option {
	return func(m *Mailer) { m.sleep = s }
}

type Mailer struct {
	cfg       Config
	transport Transport
	sleep     Sleeper
}

func New(cfg Config, opts ...Option) *Mailer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.Server == "" {
		cfg.Server = "smtp.gmail.com"
	}
	m := &Mailer{cfg: cfg, sleep: sleepContext}
	m.transport = &smtpTransport{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	if m.Configured() {
		logx.Info().Str("sender", cfg.Address).Str("server", cfg.Server).Int("port", cfg.Port).Msg("email service configured")
	} else {
		logx.Warn().Msg("email service NOT configured, set GMAIL_ADDRESS and GMAIL_APP_PASSWORD")
	}
	return m
}

// Configured reports whether sender credentials are present.
func (m *Mailer) Configured() bool {
	return m.cfg.Address != "" && m.cfg.AppPassword != ""
}

var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateAddress reports whether addr looks like a deliverable address.
func ValidateAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Send delivers one message. Connection failures are retried up to
// MaxAttempts times with exponential backoff; every other failure returns
// immediately.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) Outcome {
	if !m.Configured() {
		return failure(KindNotConfigured, notConfiguredMessage)
	}
	if !ValidateAddress(to) {
		return failure(KindInvalidRecipient, fmt.Sprintf("Invalid email address: %s", to))
	}

	msg, err := m.buildMessage(to, subject, body)
	if err != nil {
		logx.Error().Err(err).Str("to", to).Msg("failed to build email message")
		return failure(KindUnknown, fmt.Sprintf("Failed to send email: %v", err))
	}

	backoff := retry.NewExponential(m.cfg.BackoffBase)
	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		logx.Info().Str("to", to).Int("attempt", attempt).Int("max_attempts", m.cfg.MaxAttempts).Msg("sending email")

		err := m.transport.Deliver(ctx, msg)
		if err == nil {
			logx.Info().Str("to", to).Msg("email sent")
			return Outcome{
				Success: true,
				Message: fmt.Sprintf("Email sent successfully to %s", to),
				Details: map[string]any{
					"to":      to,
					"subject": subject,
					"from":    m.cfg.Address,
				},
			}
		}

		kind := Classify(err)
		switch kind {
		case KindAuthFailure:
			logx.Error().Str("sender", m.cfg.Address).Msg("SMTP authentication failed")
			return failure(kind, authFailureMessage)
		case KindInvalidRecipient:
			logx.Error().Err(err).Str("to", to).Msg("recipient rejected by SMTP server")
			return failure(kind, fmt.Sprintf("The mail server rejected the recipient address %s", to))
		case KindProtocolError:
			logx.Error().Err(err).Msg("SMTP error")
			return failure(kind, protocolErrorMessage)
		case KindUnknown:
			logx.Error().Err(err).Msg("unexpected email error")
			return failure(kind, fmt.Sprintf("Failed to send email: %v", err))
		}

		lastErr = err
		if attempt == m.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		delay, _ := backoff.Next()
		logx.Warn().Int("attempt", attempt).Dur("retry_in", delay).
			Str("error", logx.Truncate(err.Error())).Msg("SMTP connection error, retrying")
		if err := m.sleep(ctx, delay); err != nil {
			break
		}
	}

	logx.Error().Int("attempts", m.cfg.MaxAttempts).Str("error", logx.Truncate(fmt.Sprint(lastErr))).Msg("SMTP connection failed")
	return failure(KindConnectionFailure, fmt.Sprintf("Failed to connect to email server after %d attempts", m.cfg.MaxAttempts))
}

func failure(kind FailureKind, message string) Outcome {
	return Outcome{Success: false, Error: message, Kind: kind, Details: map[string]any{}}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type smtpTransport struct {
	cfg Config
}

func (t *smtpTransport) Deliver(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(t.cfg.Server,
		mail.WithPort(t.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.cfg.Address),
		mail.WithPassword(t.cfg.AppPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(t.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
