// Package retry wraps remote calls with bounded, randomized exponential
// backoff and a per-endpoint circuit breaker.
//
// Classification follows the apiclient error taxonomy: rate limits always
// retry with a doubled delay, other client errors retry unless they carry
// a non-429 4xx status, authentication failures and unrecognized error
// kinds fail immediately.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/goalwatch/goalwatch/internal/apiclient"
)

// Policy controls the backoff schedule.
type Policy struct {
	MaxRetries    int // retries after the first attempt; N means N+1 attempts total
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultPolicy returns the standard schedule: 3 retries, 1s initial delay
// doubling up to 60s, with jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Do invokes fn under the policy, consulting the endpoint's breaker from
// the registry. A nil registry disables the breaker. Breaker success and
// failure are recorded on every attempt outcome, independent of whether
// the loop continues.
func Do[T any](ctx context.Context, endpoint string, reg *Registry, p Policy, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}

	var breaker *Breaker
	if reg != nil {
		breaker = reg.Breaker(endpoint)
		if !breaker.AllowRequest() {
			logger.Warn("Circuit breaker open", "endpoint", endpoint)
			return zero, &CircuitOpenError{Endpoint: endpoint}
		}
	}

	retries := 0
	delay := p.InitialDelay

	for {
		result, err := fn(ctx)
		if err == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			return result, nil
		}
		if breaker != nil {
			breaker.RecordFailure()
		}

		var currentDelay time.Duration
		switch classify(err) {
		case kindRateLimit:
			if retries >= p.MaxRetries {
				logger.Error("Max retries exceeded for rate limit",
					"endpoint", endpoint, "retries", p.MaxRetries)
				return zero, err
			}
			// Rate limits get a doubled delay, still capped.
			currentDelay = min(p.MaxDelay, delay*2)

		case kindRetryable:
			if retries >= p.MaxRetries {
				logger.Error("Max retries exceeded",
					"endpoint", endpoint, "retries", p.MaxRetries, "error", err)
				return zero, err
			}
			currentDelay = min(p.MaxDelay, delay)

		default:
			logger.Error("Non-retryable error", "endpoint", endpoint, "error", err)
			return zero, err
		}

		if p.Jitter {
			currentDelay = time.Duration(float64(currentDelay) * (0.5 + rand.Float64()))
		}

		logger.Info("Retrying request",
			"endpoint", endpoint,
			"delay", currentDelay.Round(time.Millisecond),
			"attempt", retries+1,
			"max_retries", p.MaxRetries)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(currentDelay):
		}

		delay = min(p.MaxDelay, time.Duration(float64(delay)*p.BackoffFactor))
		retries++
	}
}

// --------------------------------------------------------------------------
// Error classification
// --------------------------------------------------------------------------

type errorKind int

const (
	kindFatal errorKind = iota
	kindRetryable
	kindRateLimit
)

func classify(err error) errorKind {
	var rateLimit *apiclient.RateLimitError
	if errors.As(err, &rateLimit) {
		return kindRateLimit
	}

	var auth *apiclient.AuthError
	if errors.As(err, &auth) {
		return kindFatal
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		// Client errors other than 429 are not transient.
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != 429 {
			return kindFatal
		}
		return kindRetryable
	}

	return kindFatal
}
