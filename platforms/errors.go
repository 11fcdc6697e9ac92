package platforms

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnsupported is returned by operations a platform API does not offer.
	// No request is made.
	ErrUnsupported = errors.New("operation not supported by this platform")

	// ErrNotConfigured is returned when no adapter exists for a platform
	ErrNotConfigured = errors.New("platform is not configured")

	// ErrMediaRequired is returned when a platform cannot publish text only
	ErrMediaRequired = errors.New("an image is required to post on this platform")
)

// APIError is a non-2xx answer from the backend, or a 2xx answer that
// explicitly reported success=false
type APIError struct {
	Endpoint   string
	StatusCode int
	Detail     string // message extracted from the payload, if any
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: backend returned %d: %s", e.Endpoint, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: backend returned %d", e.Endpoint, e.StatusCode)
}

// NetworkError wraps transport failures, including per-request timeouts
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ShapeError means a response did not match the endpoint's schema
type ShapeError struct {
	Endpoint string
	Reason   string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %s", e.Endpoint, e.Reason)
}

// Markers the backend leaves in its body when the platform answered a
// delete with something that was not JSON
var jsonParseMarkers = []string{
	"jsondecodeerror",
	"expecting value",
	"json parse error",
	"unexpected end of json input",
	"unexpected token",
}

// IsAmbiguousSuccess reports whether err is a 500 whose body is empty or
// only complains about parsing JSON. The Graph API sometimes answers a
// successful delete with a non-JSON body that the backend then fails to
// parse, so callers treat this as a probable success. It can mask a real
// failure and must only be applied to delete operations.
func IsAmbiguousSuccess(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		return false
	}

	body := strings.TrimSpace(apiErr.Body)
	if body == "" {
		return true
	}

	lower := strings.ToLower(body)
	for _, marker := range jsonParseMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// ErrorMessage returns the backend's own message when it sent one,
// otherwise fallback
func ErrorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrMediaRequired) {
		return err.Error()
	}
	return fallback
}

// extractDetail pulls a human readable message out of an error payload.
// It understands {"detail": "..."}, {"error": "..."},
// {"error": {"message": "..."}} and {"message": "..."}.
func extractDetail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if s := rawString(payload.Detail); s != "" {
		return s
	}
	if s := rawString(payload.Error); s != "" {
		return s
	}
	if len(payload.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return payload.Message
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
