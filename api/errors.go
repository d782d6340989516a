package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kaifufi/wyvern-sdk-go/internal/retry"
)

// ErrOrderNotFound is returned by GetOrder when the query matches nothing.
var ErrOrderNotFound = errors.New("Not found: no matching order found")

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
	// RetryAfter is the wait a 429 response asked for, zero if none.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("API Error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again.
func (e *Error) Retryable() bool {
	return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func isRetryable(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

func retryAfter(err error) time.Duration {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// statusPolicy retries 503 and 429 responses, waiting as long as a 429 asks.
func statusPolicy(retries int, delay time.Duration) retry.Policy {
	return retry.FlatPolicy(retries, delay).WithRetryable(isRetryable).WithDelayFor(retryAfter)
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(strings.TrimSpace(v) + "s")
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ParseError reports a response that does not have the shape of the record it
// should describe.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid API response: %s %s", e.Field, e.Reason)
}

// renderBody returns body as compact JSON when it is JSON, or as trimmed text.
func renderBody(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err == nil && buf.Len() > 0 {
		return buf.String()
	}
	return strings.TrimSpace(string(body))
}

func errorFromResponse(status int, body []byte) *Error {
	full := renderBody(body)
	var msg string
	switch status {
	case http.StatusBadRequest:
		var payload struct {
			Errors []string `json:"errors"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
			msg = strings.Join(payload.Errors, ", ")
		} else {
			msg = "Invalid request: " + full
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		msg = fmt.Sprintf("Unauthorized. Full message was '%s'", full)
	case http.StatusNotFound:
		msg = fmt.Sprintf("Not found. Full message was '%s'", full)
	case http.StatusInternalServerError:
		msg = "Internal server error. If the problem persists please contact OpenSea - full message was " + full
	case http.StatusServiceUnavailable:
		msg = "Service unavailable. Please try again in a few minutes - full message was " + full
	default:
		msg = "Message: " + full
	}
	return &Error{StatusCode: status, Message: msg}
}
