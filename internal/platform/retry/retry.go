package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bestsellers/internal/logger"
)

const (
	DefaultAttempts     = 3
	DefaultInitialDelay = time.Second
)

// ErrExhausted is matched by the error returned when every attempt failed.
var ErrExhausted = errors.New("all retry attempts failed")

// Policy configures Do. Zero fields fall back to the defaults.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	// Sleep waits between attempts. Tests replace it to observe delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError carries the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns it unwrapped right away.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls op until it succeeds or the policy's attempts are used up, doubling the
// delay after every failure.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	log := logger.FromContext(ctx)

	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleep(ctx, delay); err != nil {
				return zero, err
			}
			delay *= 2
		}

		res, err := op(ctx)
		if err == nil {
			return res, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			log.Warn().Err(perm.err).Int("attempt", i+1).Msg("attempt failed permanently")
			return zero, perm.err
		}

		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Int("attempts", attempts).Msg("attempt failed")
	}
	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

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
