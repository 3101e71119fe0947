package search

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BackendError is a non-2xx answer from the search backend.
type BackendError struct {
	Index      string
	StatusCode int
	Type       string
	Reason     string
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("search %s: %d %s", e.Index, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Type != "" {
		msg += ": " + e.Type
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// IsRetryable marks overload and gateway errors as transient; query errors are not.
func (e *BackendError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	switch e.Type {
	case "es_rejected_execution_exception", "circuit_breaking_exception", "no_shard_available_action_exception":
		return true
	}
	return false
}

// decodeBackendError reads an error body of the form
// {"error": {"type": ..., "reason": ...}, "status": N}.
func decodeBackendError(index string, status int, body io.Reader) *BackendError {
	be := &BackendError{Index: index, StatusCode: status}

	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&payload); err != nil {
		return be
	}

	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(payload.Error, &detail); err == nil {
		be.Type, be.Reason = detail.Type, detail.Reason
		return be
	}

	var plain string
	if err := json.Unmarshal(payload.Error, &plain); err == nil {
		be.Reason = plain
	}
	return be
}

// timeoutError marks a per-call deadline as transient while the caller's
// context is still alive.
type timeoutError struct {
	err error
}

func (e timeoutError) Error() string     { return "search call timed out: " + e.err.Error() }
func (e timeoutError) IsRetryable() bool { return true }
