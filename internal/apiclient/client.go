// Package apiclient provides the HTTP client and response parser for the
// API-Football v3 API, plus the error taxonomy the retry layer classifies.
//
// The client returns raw response bodies; Parser turns them into model
// values. Rate limiting is handled via a token bucket limiter.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const dateFormat = "2006-01-02"

// Client is the HTTP client for API-Football endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an API-Football client with rate limiting.
func NewClient(baseURL, apiKey string, timeout time.Duration, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// MatchesForTeam returns fixtures for one team within a date range.
func (c *Client) MatchesForTeam(ctx context.Context, teamID string, from, to time.Time) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("team", teamID)
	params.Set("from", from.Format(dateFormat))
	params.Set("to", to.Format(dateFormat))
	params.Set("timezone", "UTC")
	return c.get(ctx, "fixtures", params)
}

// MatchByID returns the current state of a single fixture.
func (c *Client) MatchByID(ctx context.Context, matchID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("id", matchID)
	return c.get(ctx, "fixtures", params)
}

// LiveMatches returns all fixtures currently in play.
func (c *Client) LiveMatches(ctx context.Context) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("live", "all")
	return c.get(ctx, "fixtures", params)
}

// MatchEvents returns the event list (goals, cards, substitutions) for a
// fixture.
func (c *Client) MatchEvents(ctx context.Context, matchID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("fixture", matchID)
	return c.get(ctx, "fixtures/events", params)
}

// get performs a rate-limited GET request and classifies failures into the
// package error taxonomy.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "rate limit wait", Err: err}
	}

	u := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "create request", Err: err}
	}
	req.Header.Set("x-apisports-key", c.apiKey)

	c.logger.Debug("API request", "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "http request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: "read response body", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Endpoint: endpoint}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{Endpoint: endpoint}
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    truncate(body, 200),
		}
	}

	// API-Football reports some errors in a 200 body.
	if msg := apiErrorMessage(body); msg != "" {
		return nil, &APIError{Endpoint: endpoint, Message: msg}
	}

	return body, nil
}

// apiErrorMessage extracts error text from an API-Football response body.
// The errors field is an empty array on success and an object of messages
// on failure.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return ""
	}

	var asMap map[string]string
	if err := json.Unmarshal(envelope.Errors, &asMap); err != nil || len(asMap) == 0 {
		return ""
	}
	msg := ""
	for key, val := range asMap {
		if msg != "" {
			msg += "; "
		}
		msg += fmt.Sprintf("%s: %s", key, val)
	}
	return msg
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
