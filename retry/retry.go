// Package retry runs operations under bounded exponential backoff with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the number of retries after the first attempt. Zero means a single attempt.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps every delay, jitter included.
	MaxBackoff time.Duration
	// Multiplier grows the delay after each retry. Values below 1 are treated as 1.
	Multiplier float64
	// JitterFraction spreads each delay by up to +/- this fraction (0.0-1.0).
	JitterFraction float64
	// OnRetry, if set, is called before sleeping ahead of each retry.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultConfig returns the backoff used for YouTube calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Delay returns the wait before retry number attempt (1-based), without jitter.
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 || c.InitialBackoff <= 0 {
		return 0
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= mult
		if c.MaxBackoff > 0 && d >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}
	return c.cap(time.Duration(d))
}

// wait applies jitter to Delay(attempt) and caps the result.
func (c Config) wait(attempt int) time.Duration {
	d := c.Delay(attempt)
	if c.JitterFraction > 0 && d > 0 {
		spread := float64(d) * c.JitterFraction
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if d < 0 {
		d = 0
	}
	return c.cap(d)
}

func (c Config) cap(d time.Duration) time.Duration {
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

// ErrorClassifier reports whether an error is worth another attempt.
type ErrorClassifier func(error) bool

// permanent is implemented by errors that must never be retried.
type permanent interface {
	Permanent() bool
}

// IsRetryable is the default classifier. Context errors and errors
// reporting Permanent() == true are not retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var p permanent
	if errors.As(err, &p) && p.Permanent() {
		return false
	}
	return true
}

// Do calls fn until it succeeds, the classifier rejects its error, retries
// run out, or ctx is done. A nil classifier means IsRetryable. When retries
// run out the last error is returned wrapped in a *RetryableError.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classifier(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return &RetryableError{Err: err, Retries: cfg.MaxRetries}
		}

		sleep := cfg.wait(attempt + 1)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, sleep)
		}

		if timer == nil {
			timer = time.NewTimer(sleep)
		} else {
			timer.Reset(sleep)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RetryableError reports a retryable failure that persisted after all retries.
type RetryableError struct {
	Err     error
	Retries int
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("failed after %d retries: %v", e.Retries, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
