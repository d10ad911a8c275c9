package upstream

import "fmt"

// Error is a client-side rejection from the provider (4xx-equivalent).
// It is never retried and does not count as an upstream health failure.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.HTTPStatus)
}

// UnavailableError signals the provider could not be reached: server
// errors, timeouts or an open circuit. The caller may retry after
// RetryAfter seconds (0 when no hint is available).
type UnavailableError struct {
	Message    string
	RetryAfter int64
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// mapClientError translates a provider 4xx status into a stable local
// error code.
func mapClientError(status int, message string) *Error {
	code := "UPSTREAM_ERROR"
	msg := "tracking provider request failed"

	switch status {
	case 400:
		code = "VALIDATION_ERROR"
		msg = "invalid request to tracking provider"
	case 401:
		code = "UPSTREAM_AUTH_ERROR"
		msg = "tracking provider authentication failed"
	case 404:
		code = "TRACKING_NOT_FOUND"
		msg = "tracking not found in upstream provider"
	case 429:
		code = "UPSTREAM_RATE_LIMIT"
		msg = "tracking provider rate limit exceeded"
	}

	if message != "" {
		msg = msg + ": " + message
	}

	return &Error{Code: code, Message: msg, HTTPStatus: status}
}
