package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrCanceled marks a call that stopped because its context was canceled or
// timed out. Callers usually drop these silently.
var ErrCanceled = errors.New("apiclient: request canceled")

// HTTPError is a non-2xx answer from the remote API.
type HTTPError struct {
	URL        string
	Status     int
	StatusText string
	// Details is the decoded JSON error body, or the raw text when it is not JSON.
	Details any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("apiclient: %s returned %d %s", e.URL, e.Status, e.StatusText)
}

// Retryable reports whether the status is a transient class (429 or 5xx).
func (e *HTTPError) Retryable() bool {
	return isRetryableStatus(e.Status)
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// AsHTTPError unwraps err into an *HTTPError.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsCanceled reports whether err comes from a canceled call.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
}
