package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"

	"github.com/kehao95/rlmtrace/internal/llm/protocol"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1000 * time.Millisecond
	DefaultTimeout      = 30000 * time.Millisecond
)

// ErrAttemptTimeout marks an attempt abandoned at its deadline.
var ErrAttemptTimeout = errors.New("attempt timed out")

// RetryOptions tunes one GenerateCode call. Zero fields take the defaults.
type RetryOptions struct {
	MaxRetries   int
	InitialDelay time.Duration
	Timeout      time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// InvocationError is the terminal failure of a GenerateCode call, after
// retries ran out or a fatal error stopped them.
type InvocationError struct {
	Attempts int
	Err      error
}

func (e *InvocationError) Error() string {
	noun := "attempts"
	if e.Attempts == 1 {
		noun = "attempt"
	}
	return fmt.Sprintf("API call failed after %d %s: %v", e.Attempts, noun, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// RetryEvent describes one scheduled retry. It is diagnostic only.
type RetryEvent struct {
	Attempt int
	Max     int
	Delay   time.Duration
	Err     error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Retry state machine: attempt counter + geometric backoff, no jitter
// ---------------------------------------------------------------------------

type retryState struct {
	attempt int
	max     int
	delay   time.Duration
}

func newRetryState(o RetryOptions) *retryState {
	return &retryState{max: o.MaxRetries, delay: o.InitialDelay}
}

// next starts the following attempt, or reports that none remain.
func (s *retryState) next() bool {
	if s.attempt >= s.max {
		return false
	}
	s.attempt++
	return true
}

func (s *retryState) exhausted() bool {
	return s.attempt >= s.max
}

// backoff returns the current delay and doubles it for next time.
func (s *retryState) backoff() time.Duration {
	d := s.delay
	s.delay *= 2
	return d
}

type attemptResult[T any] struct {
	val T
	err error
}

// runAttempt runs fn under its own deadline. If the deadline passes first,
// the attempt is abandoned: fn's context is cancelled and whatever it
// eventually returns is dropped.
func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan attemptResult[T], 1)
	go func() {
		v, err := fn(actx)
		ch <- attemptResult[T]{v, err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-actx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %v", ErrAttemptTimeout, timeout)
	}
}

// IsRetriable reports whether err is a transient fault: a rate limit, a
// connection-level failure, a 429/500/502/503/504 response, or a garbled
// completion body. Everything else is fatal.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, protocol.ErrRateLimited) ||
		errors.Is(err, ErrAttemptTimeout) ||
		errors.Is(err, protocol.ErrMalformedResponse) {
		return true
	}

	var apiErr *protocol.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}
