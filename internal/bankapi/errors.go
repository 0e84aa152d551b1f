package bankapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// APIError is the single error shape callers see for any transport failure.
// Status is the HTTP status code when the server responded, 0 otherwise.
type APIError struct {
	Message string
	Status  int
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

// IsAPIError reports whether err is a normalized transport error.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// noResponse covers every round-trip failure: refused connection, DNS,
// timeout, cancelled context. The user can't act on the distinction, so the
// underlying error is logged by the client and not surfaced.
func noResponse() *APIError {
	return &APIError{Message: "No response from server. Check your connection."}
}

// normalizeStatus converts a non-2xx response into an APIError, preferring
// the backend's own message field when the body carries one.
func normalizeStatus(resp *http.Response) *APIError {
	msg := "Server error occurred"
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(body) > 0 {
		var payload struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		}
		if json.Unmarshal(body, &payload) == nil {
			if payload.Message != "" {
				msg = payload.Message
			} else if payload.Detail != "" {
				msg = payload.Detail
			}
		}
	}
	return &APIError{Message: msg, Status: resp.StatusCode}
}
