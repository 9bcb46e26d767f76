// Package retry provides a bounded exponential-backoff retryer used by the
// collaborator adapters.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy configures the retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter randomizes delays by ±25% to avoid synchronized retries.
	Jitter bool
	// Retryable decides whether an error warrants another attempt.
	// When nil every error is retried.
	Retryable func(error) bool
	// OnRetry is invoked before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy matches the bound the service guarantees for collaborator
// calls: three attempts with exponential backoff.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer executes functions with retries according to a Policy.
type Retryer struct {
	policy *Policy
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

// New creates a Retryer. A nil policy gets DefaultPolicy; a nil logger is
// replaced with a nop logger.
func New(policy *Policy, logger *zap.Logger) *Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 2 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{
		policy: policy,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// WithSleep replaces the sleep function. Tests use this to avoid real delays.
func (r *Retryer) WithSleep(fn func(context.Context, time.Duration) error) *Retryer {
	r.sleep = fn
	return r
}

// Do executes fn, retrying retryable failures up to the attempt bound.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.delay(attempt)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			if err := r.sleep(ctx, delay); err != nil {
				return fmt.Errorf("retry canceled: %w", err)
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		if !r.isRetryable(lastErr) {
			r.logger.Debug("error not retryable", zap.Error(lastErr))
			return lastErr
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr),
	)

	return fmt.Errorf("failed after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}

// delay computes the backoff before the given attempt (attempt >= 2).
func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-2))

	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}

	if r.policy.Jitter {
		jitter := d * 0.25
		d = d + (rand.Float64()*2-1)*jitter
	}

	if d < float64(r.policy.InitialDelay) {
		d = float64(r.policy.InitialDelay)
	}

	return time.Duration(d)
}

func (r *Retryer) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if r.policy.Retryable == nil {
		return true
	}
	return r.policy.Retryable(err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
