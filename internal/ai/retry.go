package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// RetryConfig holds retry configuration for API calls
type RetryConfig struct {
	MaxRetries        int           // default: 3
	InitialBackoff    time.Duration // default: 1s
	MaxBackoff        time.Duration // default: 30s
	BackoffMultiplier float64       // default: 2.0
	Timeout           time.Duration // per-attempt, default: 120s

	CircuitBreakerEnabled bool          // default: true
	FailureThreshold      uint32        // consecutive failures before opening (default: 5)
	SuccessThreshold      uint32        // half-open probes before closing (default: 2)
	OpenTimeout           time.Duration // default: 30s

	// MaxConcurrentCalls limits in-flight API calls across all services (0 = unlimited)
	MaxConcurrentCalls int
}

// ErrCircuitOpen is returned when the circuit breaker rejects a call
var ErrCircuitOpen = errors.New("circuit breaker is open")

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            3,
		InitialBackoff:        1 * time.Second,
		MaxBackoff:            30 * time.Second,
		BackoffMultiplier:     2.0,
		Timeout:               120 * time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           30 * time.Second,
		MaxConcurrentCalls:    2,
	}
}

func newBreaker(cfg RetryConfig, log zerolog.Logger) *gobreaker.CircuitBreaker[*anthropic.Message] {
	return gobreaker.NewCircuitBreaker[*anthropic.Message](gobreaker.Settings{
		Name:        "anthropic",
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Auth and request errors say nothing about API health
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetriableError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retriable
// error, or exhausts MaxRetries
func (c *Client) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) (*anthropic.Message, error)) (*anthropic.Message, error) {
	if c.concurrencySem != nil {
		if err := c.concurrencySem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer c.concurrencySem.Release(1)
	}

	var lastErr error
	backoff := c.retry.InitialBackoff

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		msg, err := c.attempt(ctx, fn)
		if err == nil {
			if attempt > 0 {
				c.log.Info().Str("operation", operation).Int("retries", attempt).Msg("AI call succeeded after retries")
			}
			return msg, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			return nil, fmt.Errorf("%s failed: %w", operation, err)
		}

		lastErr = err
		if !isRetriableError(err) {
			c.log.Error().Err(err).Str("operation", operation).Msg("AI call failed with non-retriable error")
			return nil, err
		}
		if attempt == c.retry.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s failed: %w", operation, ctx.Err())
		}

		c.log.Warn().Err(err).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Int("max_attempts", c.retry.MaxRetries+1).
			Dur("backoff", backoff).
			Msg("AI call failed, retrying")

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * c.retry.BackoffMultiplier)
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%s failed during backoff: %w", operation, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", operation, c.retry.MaxRetries+1, lastErr)
}

// attempt makes one bounded call through the circuit breaker, if any
func (c *Client) attempt(ctx context.Context, fn func(context.Context) (*anthropic.Message, error)) (*anthropic.Message, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
	defer cancel()

	if c.circuitBreaker == nil {
		return fn(attemptCtx)
	}
	msg, err := c.circuitBreaker.Execute(func() (*anthropic.Message, error) {
		return fn(attemptCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return msg, err
}

// BreakerState reports the circuit breaker state for status output
func (c *Client) BreakerState() string {
	if c.circuitBreaker == nil {
		return "disabled"
	}
	return c.circuitBreaker.State().String()
}

// isRetriableError reports whether err looks transient
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode == 529 || apiErr.StatusCode >= 500
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "overloaded",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"connection refused", "connection reset", "timeout", "temporary failure",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
