//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryPolicy controls retries of a single HTTP call.
// Only transient server-side statuses are retried; transport errors are not,
// since on the management network they mean the device is genuinely gone.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts for one call, including the first.
	MaxAttempts int
	// Backoff is the linear backoff base: attempt n waits n*Backoff before retrying.
	Backoff time.Duration
	// RetryableStatus decides whether a response status is worth another attempt.
	// When nil, DefaultRetryableStatus is used.
	RetryableStatus func(statusCode int) bool
}

// PollPolicy controls fixed-delay online polling while a device reboots.
// Deliberately constant backoff with no jitter: devices sit on a local
// network with predictable reboot timing.
type PollPolicy struct {
	// InitialWait is slept once before the first poll.
	InitialWait time.Duration
	// Interval is the fixed delay between polls.
	Interval time.Duration
	// MaxAttempts caps the number of polls before giving up.
	MaxAttempts int
}

var (
	// ErrUnexpectedStatus is returned when a call ends with a non-success response.
	ErrUnexpectedStatus = errors.New("unexpected http status")
	// ErrAttemptsExhausted is returned when polling gives up on a device.
	ErrAttemptsExhausted = errors.New("poll attempts exhausted")
)

// DefaultRetryableStatus treats the server overloaded/unavailable class as transient.
func DefaultRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Do runs the call until it succeeds, fails permanently, or attempts run out.
// The call reports the response status; transport failures are returned as-is
// without further attempts.
func (p RetryPolicy) Do(ctx context.Context, call func(ctx context.Context) (int, error)) error {
	retryable := p.RetryableStatus
	if retryable == nil {
		retryable = DefaultRetryableStatus
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		statusCode, err := call(ctx)
		if err != nil {
			return err
		}

		if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
			return nil
		}

		if attempt >= maxAttempts || !retryable(statusCode) {
			return fmt.Errorf("%w: %s", ErrUnexpectedStatus, http.StatusText(statusCode))
		}

		if err = sleepContext(ctx, time.Duration(attempt)*p.Backoff); err != nil {
			return err
		}
	}
}

// sleepContext blocks for the provided duration or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
