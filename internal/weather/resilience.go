// In file: internal/weather/resilience.go
package weather

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/metrics"

	"github.com/sony/gobreaker"
)

const (
	upstreamGeocoding = "open-meteo-geocoding"
	upstreamForecast  = "open-meteo-forecast"
)

var errUnexpectedStatus = errors.New("unexpected status code")

// newBreaker trips after five consecutive failures and probes again after a
// minute. Calls are never retried here; a failure reaches the caller at once.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     1 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d: %s", errUnexpectedStatus, e.code, e.body)
}

func (e *statusError) Unwrap() error { return errUnexpectedStatus }

// doRequest executes req through the breaker and returns the body of a 2xx
// response. Anything else comes back as a *ProviderError.
func doRequest(client *http.Client, cb *gobreaker.CircuitBreaker, upstream string, req *http.Request) ([]byte, error) {
	start := time.Now()
	result, err := cb.Execute(func() (interface{}, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}
		}
		return body, nil
	})
	metrics.UpstreamLatency.WithLabelValues(upstream).Observe(time.Since(start).Seconds())

	if err != nil {
		pe := &ProviderError{Upstream: upstream, Err: err}
		var se *statusError
		if errors.As(err, &se) {
			pe.StatusCode = se.code
		}
		status := "error"
		switch {
		case pe.StatusCode != 0:
			status = strconv.Itoa(pe.StatusCode)
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			status = "circuit_open"
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(upstream, status).Inc()
		return nil, pe
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(upstream, "200").Inc()
	body, ok := result.([]byte)
	if !ok {
		return nil, &ProviderError{Upstream: upstream, Err: errors.New("unexpected result type from circuit breaker")}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
