package dep

import (
	"context"
	"errors"
	"fmt"
	"phishsim/config"
	"phishsim/entity"
	"phishsim/pkg/secret"
	"time"
)

var (
	ErrUnsupportedTransport = errors.New("unsupported transport provider")
	ErrEmptyFromAddress     = errors.New("empty from address")
	ErrEmptyRecipient       = errors.New("empty recipient address")
	// ErrRejected marks a send the remote side refused for good. It is never retried.
	ErrRejected = errors.New("message rejected")
)

type MailMessage struct {
	CampaignID   uint64
	TargetUserID uint64
	From         *entity.Sender
	To           *entity.Sender
	Subject      string
	HtmlContent  string
}

func (m *MailMessage) validate() error {
	if m.From == nil || m.From.Email == "" {
		return ErrEmptyFromAddress
	}
	if m.To == nil || m.To.Email == "" {
		return ErrEmptyRecipient
	}
	return nil
}

type SendReceipt struct {
	// Transport identifies the server or provider that accepted the message.
	Transport string
	MessageID string
}

type MailTransport interface {
	Send(ctx context.Context, msg *MailMessage) (*SendReceipt, error)
}

func rejected(err error) error {
	return fmt.Errorf("%w: %w", ErrRejected, err)
}

// NewMailTransport builds the configured provider wrapped with retries.
func NewMailTransport(ctx context.Context, cfg config.Transport, settings SettingsResolver, box secret.Box) (MailTransport, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	var transport MailTransport
	switch cfg.Provider {
	case config.TransportSMTP, "":
		transport = NewSmtpTransport(ctx, settings, box, timeout)
	case config.TransportBrevo:
		transport = NewBrevoTransport(ctx, cfg.BrevoAPIKey, timeout)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, cfg.Provider)
	}

	return NewRetryTransport(transport, cfg.RetryAttempts), nil
}
