package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Unlimited disables the attempt cap. The operation is then bounded only by
// the context and the deadline.
const Unlimited = -1

// ErrDeadlineExceeded is returned when the retry deadline passes before the
// operation succeeds.
var ErrDeadlineExceeded = errors.New("retry deadline exceeded")

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Deadline stops retrying once reached. Zero means no deadline.
	Deadline time.Time

	// OnRetry is called after each failed, retryable attempt with the delay
	// before the next one.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// WithExponentialBackoff executes the operation with exponential backoff retry.
// It retries the operation up to MaxRetries times, with exponentially increasing
// delays between attempts. Context cancellation is respected throughout.
//
// Errors wrapped with Fatal() are not retried. When a deadline is set, no delay
// extends past it and the loop ends with ErrDeadlineExceeded once it passes.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; cfg.MaxRetries < 0 || attempt <= cfg.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("fatal error (not retrying): %w", err)
		}

		if cfg.MaxRetries >= 0 && attempt >= cfg.MaxRetries {
			break
		}

		wait := delay
		if !cfg.Deadline.IsZero() {
			remaining := time.Until(cfg.Deadline)
			if remaining <= 0 {
				return fmt.Errorf("%w after %d attempts: %w", ErrDeadlineExceeded, attempt+1, lastErr)
			}
			if wait > remaining {
				wait = remaining
			}
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, wait)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt+1, ctx.Err())
		case <-time.After(wait):
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries+1, lastErr)
}

// WithMaxRetries sets the maximum number of retries. Use Unlimited to retry
// until the context or deadline ends the loop.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithInitialDelay sets the initial delay between retries.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		c.Multiplier = m
	}
}

// WithDeadline stops retrying at t.
func WithDeadline(t time.Time) Option {
	return func(c *Config) {
		c.Deadline = t
	}
}

// WithOnRetry registers a callback invoked before each retry delay.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
