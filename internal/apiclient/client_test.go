package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	// Generous limiter so tests never wait on the token bucket.
	return NewClient(srv.URL, "test-key", 5*time.Second, 6000, testLogger)
}

func TestClientSendsAPIKey(t *testing.T) {
	var gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-apisports-key")
		w.Write([]byte(`{"errors": [], "response": []}`))
	})

	if _, err := c.LiveMatches(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("x-apisports-key = %q, want %q", gotKey, "test-key")
	}
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Errorf("error = %v, want AuthError", err)
				}
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				if !errors.As(err, &authErr) {
					t.Errorf("error = %v, want AuthError", err)
				}
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rlErr *RateLimitError
				if !errors.As(err, &rlErr) {
					t.Errorf("error = %v, want RateLimitError", err)
				}
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "upstream exploded",
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want APIError", err)
				}
				if apiErr.StatusCode != http.StatusInternalServerError {
					t.Errorf("StatusCode = %d", apiErr.StatusCode)
				}
			},
		},
		{
			name:   "error in ok body",
			status: http.StatusOK,
			body:   `{"errors": {"requests": "Too many requests"}, "response": []}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error = %v, want APIError", err)
				}
				if apiErr.StatusCode != 0 {
					t.Errorf("StatusCode = %d, want 0 for body-level error", apiErr.StatusCode)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.MatchByID(context.Background(), "1001")
			if err == nil {
				t.Fatal("expected an error")
			}
			tt.check(t, err)
		})
	}
}

func TestClientQueryParameters(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"errors": [], "response": []}`))
	})

	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 3)
	if _, err := c.MatchesForTeam(context.Background(), "42", from, to); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "from=2026-03-14&team=42&timezone=UTC&to=2026-03-17"
	if gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
}
