// internal/llmclient/errors.go
package llmclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredential is returned when the endpoint requires an API key and none is configured.
var ErrMissingCredential = errors.New("reasoning service credential is required for this endpoint")

// ServiceError is returned when the reasoning service cannot produce a reply:
// a non-retryable HTTP status, or retries exhausted on a retryable status or
// transport failure.
type ServiceError struct {
	StatusCode int
	Body       string
	Attempts   int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("reasoning service error %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	}
	return fmt.Sprintf("reasoning service request failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt.
func (e *ServiceError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return isRetryableStatus(e.StatusCode)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}
