package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strings"
	"time"
)

// Delivery failures are classified so callers can surface distinguishable
// error codes: provider limits and configuration problems are actionable in
// ways a generic send failure is not.
var (
	// ErrDisabled signals that SMTP delivery is disabled via configuration.
	ErrDisabled = errors.New("mail: delivery disabled")
	// ErrDeliveryLimit marks provider-side sending limit errors.
	ErrDeliveryLimit = errors.New("mail: sending limit exceeded")
	// ErrDeliveryConfig marks authentication or envelope rejections caused by misconfiguration.
	ErrDeliveryConfig = errors.New("mail: configuration error")
	// ErrDeliverySend covers any other delivery failure.
	ErrDeliverySend = errors.New("mail: send failed")
)

// Mailer delivers one-time passcodes to users. Implementations block until
// the delivery attempt completes or the context expires.
type Mailer interface {
	SendOTP(ctx context.Context, email, code, purpose, displayName string) error
}

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

type smtpMailer struct {
	cfg SMTPSettings
}

// NewSMTPMailer validates the settings and returns an SMTP-backed Mailer.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Host) == "" {
			return nil, errors.New("mail: host is required when enabled")
		}
		if cfg.Port == 0 {
			return nil, errors.New("mail: port is required when enabled")
		}
		if strings.TrimSpace(cfg.From) == "" {
			return nil, errors.New("mail: from address is required when enabled")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &smtpMailer{cfg: cfg}, nil
}

// SendOTP renders the purpose-specific template and delivers it over SMTP.
func (m *smtpMailer) SendOTP(ctx context.Context, email, code, purpose, displayName string) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: recipient is required", ErrDeliverySend)
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid recipient %q", ErrDeliverySend, email)
	}

	if displayName == "" {
		displayName = localPart(email)
	}

	msg := renderOTPMessage(m.cfg.From, email, code, purpose, displayName)
	if err := m.deliver(ctx, email, msg); err != nil {
		return classifyDeliveryError(err)
	}
	return nil
}

func (m *smtpMailer) deliver(ctx context.Context, rcpt, msg string) error {
	address := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	dialer := &net.Dialer{Timeout: m.cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.UseTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", address, &tls.Config{ServerName: m.cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.cfg.Timeout))
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer client.Close()

	if !m.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if strings.TrimSpace(m.cfg.Username) != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := client.Mail(senderAddress(m.cfg.From)); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(rcpt); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := io.WriteString(wc, msg); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return client.Quit()
}

// classifyDeliveryError maps raw SMTP failures onto the typed delivery errors.
func classifyDeliveryError(err error) error {
	if err == nil {
		return nil
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "sending limit exceeded"),
		strings.Contains(text, "quota exceeded"),
		strings.Contains(text, "rate limit"):
		return fmt.Errorf("%w: %v", ErrDeliveryLimit, err)
	case strings.Contains(text, "auth:"),
		strings.Contains(text, "authentication"),
		strings.Contains(text, "mail from:"),
		strings.Contains(text, "rcpt to:"):
		return fmt.Errorf("%w: %v", ErrDeliveryConfig, err)
	default:
		return fmt.Errorf("%w: %v", ErrDeliverySend, err)
	}
}

// senderAddress extracts the bare address from a possibly display-named From header.
func senderAddress(from string) string {
	if parsed, err := netmail.ParseAddress(from); err == nil {
		return parsed.Address
	}
	return strings.TrimSpace(from)
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// NopMailer discards messages. Used in tests and deployments without SMTP.
type NopMailer struct{}

// SendOTP implements Mailer.
func (NopMailer) SendOTP(context.Context, string, string, string, string) error { return nil }
