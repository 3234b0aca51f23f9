package reskit

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy re-invokes fallible network operations with capped
// exponential backoff. Only transport errors are retried; protocol and
// local I/O errors surface immediately.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the backoff growth.
	MaxInterval time.Duration
}

// DefaultRetryPolicy mirrors the documented defaults: 5 attempts, 500ms
// initial backoff, 10s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// WithAttempts returns a copy of the policy with a different total
// attempt count.
func (p RetryPolicy) WithAttempts(attempts int) RetryPolicy {
	p.Attempts = attempts
	return p
}

// Do runs op, retrying on retriable errors until the attempt budget or
// ctx is exhausted. The last error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	classified := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsRetriable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(classified,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}

// IsRetriable reports whether an error looks like a transient transport
// failure worth retrying: timeouts, refused or reset connections,
// unexpected EOF mid-body. Protocol errors (non-2xx statuses), context
// cancellation, and local I/O errors are not retriable.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrBadStatus) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// A dropped connection surfaces as a bare EOF from the HTTP client.
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	return false
}
