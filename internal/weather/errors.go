// In file: internal/weather/errors.go
package weather

import (
	"errors"
	"fmt"
)

// ErrLocationNotFound means geocoding produced no usable match. Callers
// should ask the user to clarify the place name.
var ErrLocationNotFound = errors.New("location not found")

// ProviderError is an upstream weather failure: a non-2xx status, a network
// error, or an open circuit breaker.
type ProviderError struct {
	Upstream   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Upstream, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Upstream, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
