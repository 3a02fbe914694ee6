package zendesk

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned before any request when the base URL or the
// credentials a direct client needs are missing.
var ErrNotConfigured = errors.New("zendesk: client not configured")

// APIError is a non-2xx response from the ticketing API.
type APIError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zendesk %s: %s", e.Operation, e.Status)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
