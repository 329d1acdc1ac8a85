package crawler

import (
	"errors"
	"fmt"
)

// ErrInvalidProxyFormat marks a proxy connection string that could not be
// parsed. The identity manager falls back to a direct connection for that
// session instead of aborting the run.
var ErrInvalidProxyFormat = errors.New("invalid proxy format")

// ErrShuttingDown is the control signal that unwinds the traversal once the
// shutdown flag is observed. It is terminal and never retried.
var ErrShuttingDown = errors.New("crawler is shutting down")

// FetchError reports that the retry budget for one URL was exhausted. It
// carries the last classification so callers can diagnose the blocking.
type FetchError struct {
	URL      string
	Class    Classification
	Attempts int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %s", e.URL, e.Attempts, e.Class)
}

// MissingFieldError reports that a required extraction field was absent.
// The caller logs it and skips the product; the run continues.
type MissingFieldError struct {
	Field string
	Cause error
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field %q missing: %v", e.Field, e.Cause)
}

func (e *MissingFieldError) Unwrap() error {
	return e.Cause
}
