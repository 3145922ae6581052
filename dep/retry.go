package dep

import (
	"context"
	"errors"
	"phishsim/pkg/logutil"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	defaultRetryInitialInterval = 500 * time.Millisecond
	defaultRetryMaxInterval     = 10 * time.Second
)

type retryTransport struct {
	next            MailTransport
	maxAttempts     uint64
	initialInterval time.Duration
}

// NewRetryTransport retries transient failures of next with exponential backoff.
// maxAttempts counts the first try; zero means a single attempt.
func NewRetryTransport(next MailTransport, maxAttempts uint64) MailTransport {
	return &retryTransport{
		next:            next,
		maxAttempts:     maxAttempts,
		initialInterval: defaultRetryInitialInterval,
	}
}

func (t *retryTransport) Send(ctx context.Context, msg *MailMessage) (*SendReceipt, error) {
	var (
		receipt *SendReceipt
		attempt int
	)

	op := func() error {
		attempt++

		r, err := t.next.Send(ctx, msg)
		if err != nil {
			if errors.Is(err, ErrRejected) {
				return backoff.Permanent(err)
			}
			return err
		}

		receipt = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Ctx(ctx).Warn().Msgf("send failed, retrying in %v, attempt: %d, to: %s, err: %v",
			wait, attempt, logutil.MaskEmail(msg.To.Email), err)
	}

	if err := backoff.RetryNotify(op, t.newBackOff(ctx), notify); err != nil {
		return nil, err
	}

	return receipt, nil
}

func (t *retryTransport) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.initialInterval
	eb.MaxInterval = defaultRetryMaxInterval
	eb.MaxElapsedTime = 0
	eb.Reset()

	var b backoff.BackOff = eb
	if t.maxAttempts > 0 {
		b = backoff.WithMaxRetries(b, t.maxAttempts-1)
	} else {
		b = backoff.WithMaxRetries(b, 0)
	}

	return backoff.WithContext(b, ctx)
}
