package apiclient

import "fmt"

// APIError is the generic upstream failure: transport errors, unexpected
// status codes, and error payloads in an otherwise-OK response. StatusCode
// is zero when no HTTP response was received.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api %s: %s", e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// AuthError reports rejected credentials. Never retried; the polling cycle
// for that credential should abort loudly.
type AuthError struct {
	Endpoint string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("api %s: authentication failed", e.Endpoint)
}

// RateLimitError reports an upstream 429. Retried with extended backoff.
type RateLimitError struct {
	Endpoint string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("api %s: rate limit exceeded", e.Endpoint)
}

// ParseError reports a malformed upstream payload. Fatal for a single
// item; batch parsing skips the item and continues.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse: %s: %v", e.Reason, e.Err)
	}
	return "parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
