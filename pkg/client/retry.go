package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the backoff parameters for one error class.
type RetryConfig struct {
	// MaxAttempts includes the initial request.
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass returns the retry configuration for an error class.
func RetryConfigForErrorClass(class ErrorClass) RetryConfig {
	switch class {
	case ErrorClassServer:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassRateLimit:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassNetwork:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return DefaultRetryConfig()
	}
}

// backoff returns the jittered wait before the attempt following attempt
// (1-based). Jitter is ±20%.
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffMultiplier
		if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
			d = float64(c.MaxBackoff)
			break
		}
	}
	return time.Duration(d * (0.8 + rand.Float64()*0.4))
}

// retryPolicy picks the retry configuration for a failure class.
type retryPolicy func(ErrorClass) RetryConfig

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// class, or the attempts for the failing class run out. A Retry-After on an
// APIError raises the wait to at least that value.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, policy retryPolicy, fn func() error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if isContextError(err) || ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		class := classOf(err)
		if !shouldRetry(class) {
			return err
		}

		cfg := policy(class)
		if attempt >= cfg.MaxAttempts {
			retryExhaustedTotal.WithLabelValues(string(class)).Inc()
			logger.Warn().
				Str("error_class", string(class)).
				Int("max_attempts", cfg.MaxAttempts).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, lastErr)
		}

		wait := cfg.backoff(attempt)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > wait {
			wait = apiErr.RetryAfter
		}

		retriesTotal.WithLabelValues(string(class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())
		logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}
}
