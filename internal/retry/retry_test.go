package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/goalwatch/goalwatch/internal/apiclient"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fastPolicy keeps backoff delays negligible so tests run quickly.
func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), "fixtures", nil, fastPolicy(3), testLogger,
		func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 1 {
		t.Errorf("result = %q, calls = %d", result, calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), "fixtures", nil, fastPolicy(3), testLogger,
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &apiclient.APIError{Endpoint: "fixtures", StatusCode: 503, Message: "unavailable"}
			}
			return "recovered", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "recovered" || calls != 3 {
		t.Errorf("result = %q, calls = %d, want 3 attempts", result, calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	upstream := &apiclient.APIError{Endpoint: "fixtures", StatusCode: 500, Message: "boom"}
	_, err := Do(context.Background(), "fixtures", nil, fastPolicy(2), testLogger,
		func(context.Context) (string, error) {
			calls++
			return "", upstream
		})
	if !errors.Is(err, upstream) {
		t.Fatalf("error = %v, want the upstream error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestDoRetriesRateLimit(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), "fixtures", nil, fastPolicy(3), testLogger,
		func(context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", &apiclient.RateLimitError{Endpoint: "fixtures"}
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 2 {
		t.Errorf("result = %q, calls = %d", result, calls)
	}
}

func TestDoFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"auth", &apiclient.AuthError{Endpoint: "fixtures"}},
		{"not found", &apiclient.APIError{Endpoint: "fixtures", StatusCode: 404, Message: "no such fixture"}},
		{"bad request", &apiclient.APIError{Endpoint: "fixtures", StatusCode: 400, Message: "bad params"}},
		{"unclassified", errors.New("plain error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), "fixtures", nil, fastPolicy(3), testLogger,
				func(context.Context) (string, error) {
					calls++
					return "", tt.err
				})
			if !errors.Is(err, tt.err) {
				t.Fatalf("error = %v, want %v", err, tt.err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want exactly 1 (no retries)", calls)
			}
		})
	}
}

func TestDoOpenBreakerFailsFast(t *testing.T) {
	reg := NewRegistry(1, time.Minute)
	reg.Breaker("fixtures").RecordFailure()

	calls := 0
	_, err := Do(context.Background(), "fixtures", reg, fastPolicy(3), testLogger,
		func(context.Context) (string, error) {
			calls++
			return "", nil
		})

	var open *CircuitOpenError
	if !errors.As(err, &open) {
		t.Fatalf("error = %v, want CircuitOpenError", err)
	}
	if open.Endpoint != "fixtures" {
		t.Errorf("endpoint = %q, want %q", open.Endpoint, "fixtures")
	}
	if calls != 0 {
		t.Errorf("fn invoked %d times behind an open breaker, want 0", calls)
	}
}

func TestDoRecordsBreakerOutcomes(t *testing.T) {
	reg := NewRegistry(3, time.Minute)

	// Three fatal failures open the breaker even though none was retried.
	for i := 0; i < 3; i++ {
		_, _ = Do(context.Background(), "fixtures", reg, fastPolicy(3), testLogger,
			func(context.Context) (string, error) {
				return "", &apiclient.AuthError{Endpoint: "fixtures"}
			})
	}
	if state := reg.Breaker("fixtures").State(); state != StateOpen {
		t.Fatalf("breaker state = %s, want %s", state, StateOpen)
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, "fixtures", nil, Policy{
		MaxRetries:    5,
		InitialDelay:  time.Hour, // would stall without cancellation
		MaxDelay:      time.Hour,
		BackoffFactor: 2.0,
	}, testLogger,
		func(context.Context) (string, error) {
			calls++
			cancel()
			return "", &apiclient.APIError{Endpoint: "fixtures", StatusCode: 500, Message: "boom"}
		})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errorKind
	}{
		{"rate limit", &apiclient.RateLimitError{Endpoint: "fixtures"}, kindRateLimit},
		{"auth", &apiclient.AuthError{Endpoint: "fixtures"}, kindFatal},
		{"server error", &apiclient.APIError{StatusCode: 500}, kindRetryable},
		{"transport error", &apiclient.APIError{StatusCode: 0}, kindRetryable},
		{"not found", &apiclient.APIError{StatusCode: 404}, kindFatal},
		{"wrapped rate limit", &apiclient.APIError{StatusCode: 0, Err: &apiclient.RateLimitError{}}, kindRateLimit},
		{"plain", errors.New("boom"), kindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
