package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Error wraps a gateway API failure with classification metadata.
type Error struct {
	// Op is the gateway operation that failed: "send" or "upload".
	Op string
	// StatusCode is the HTTP status code from the gateway API.
	StatusCode int
	// Body is the error response body from the gateway API.
	Body string
	// Permanent indicates the error will not succeed on retry.
	Permanent bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsUploadError reports whether err came from the media upload endpoint.
// Upload failures are recovered by falling back to a text-only send.
func IsUploadError(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Op == "upload"
	}
	return false
}

// IsPermanent returns true if the error is a permanent failure that should
// not be retried.
func IsPermanent(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Permanent
	}
	return false
}

// IsTransient returns true if the error is a temporary failure that may
// succeed on retry.
func IsTransient(err error) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return !ge.Permanent
	}
	// Unknown errors (network failures, timeouts) are treated as transient.
	return true
}

// classifyHTTPError creates an Error from a non-2xx gateway response,
// classifying it as permanent or transient.
func classifyHTTPError(op string, statusCode int, body string) *Error {
	ge := &Error{
		Op:         op,
		StatusCode: statusCode,
		Body:       body,
	}

	switch {
	case statusCode == 400:
		ge.Permanent = containsPermanentIndicator(body)

	case statusCode == 401, statusCode == 403:
		// Expired or revoked access token. Retrying with the same
		// credential cannot succeed.
		ge.Permanent = true

	case statusCode == 404:
		ge.Permanent = true

	case statusCode == 429:
		// Rate limited - always transient.
		ge.Permanent = false

	case statusCode >= 500:
		ge.Permanent = false

	default:
		// Other 4xx codes are treated as permanent.
		ge.Permanent = statusCode >= 400 && statusCode < 500
	}

	return ge
}

// containsPermanentIndicator checks if a 400 response body indicates a
// failure that will not change on retry (unknown recipient, malformed
// payload, unsupported media).
func containsPermanentIndicator(body string) bool {
	lower := strings.ToLower(body)
	permanentPatterns := []string{
		"invalid parameter",
		"recipient phone number not in allowed list",
		"unsupported message type",
		"invalid whatsapp number",
		"media upload error",
		"param is missing",
		"unexpected value",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
