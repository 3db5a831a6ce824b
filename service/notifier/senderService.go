package notifier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"booklend/repository/mailer"

	"github.com/sethvargo/go-retry"
)

// errors used by callers

type ErrCode string

const (
	ErrDeliveryFailed ErrCode = "DELIVERY_FAILED"
)

type codedError struct {
	code  ErrCode
	cause error
}

func (e codedError) Error() string { return string(e.code) + ": " + e.cause.Error() }
func (e codedError) Code() ErrCode { return e.code }
func (e codedError) Unwrap() error { return e.cause }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// Sender delivers a single notification with bounded retry. It has no
// rental-specific knowledge.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type sender struct {
	t           mailer.Transport
	log         *slog.Logger
	maxAttempts int
	base        time.Duration
}

func New(t mailer.Transport, log *slog.Logger, maxAttempts int, base time.Duration) Sender {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &sender{t: t, log: log, maxAttempts: maxAttempts, base: base}
}

// Send attempts delivery up to maxAttempts times, sleeping base×1,
// base×2, ... between attempts. The last transport error is wrapped in
// a DELIVERY_FAILED coded error once attempts are exhausted.
func (s *sender) Send(ctx context.Context, msg mailer.Message) error {
	attempt := 0
	b := retry.WithMaxRetries(uint64(s.maxAttempts-1), linearBackoff(s.base))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := s.t.Send(ctx, msg); err != nil {
			s.log.Warn("notification attempt failed",
				"to", msg.To, "key", msg.Key, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		s.log.Info("notification delivered", "to", msg.To, "key", msg.Key, "attempt", attempt)
		return nil
	})
	if err != nil {
		return codedError{code: ErrDeliveryFailed, cause: err}
	}
	return nil
}

// linearBackoff grows the delay by one base unit per attempt.
func linearBackoff(base time.Duration) retry.Backoff {
	n := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * base, false
	})
}
