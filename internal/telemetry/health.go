// In file: internal/telemetry/health.go
package telemetry

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/llm"
)

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"

	// DefaultHealthTTL is how long a verdict is served before probing again.
	DefaultHealthTTL = 5 * time.Minute
)

// HealthReport is the cached result of the last probe.
type HealthReport struct {
	Status           HealthStatus `json:"status"`
	ResponseTime     float64      `json:"response_time"`
	LastCheck        time.Time    `json:"last_check"`
	APIKeyConfigured bool         `json:"api_key_configured"`
	// ErrorKind names the failure class; the error text stays in the logs.
	ErrorKind string `json:"error_kind,omitempty"`
}

// ProbeFunc makes one small LLM call.
type ProbeFunc func(ctx context.Context) error

type HealthChecker struct {
	probe            ProbeFunc
	apiKeyConfigured bool
	ttl              time.Duration
	now              func() time.Time

	mu   sync.Mutex
	last *HealthReport
}

func NewHealthChecker(probe ProbeFunc, apiKeyConfigured bool) *HealthChecker {
	return &HealthChecker{
		probe:            probe,
		apiKeyConfigured: apiKeyConfigured,
		ttl:              DefaultHealthTTL,
		now:              time.Now,
	}
}

// Check returns the cached report while it is fresh, and probes otherwise.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	h.mu.Lock()
	if h.last != nil && h.now().Sub(h.last.LastCheck) < h.ttl {
		report := *h.last
		h.mu.Unlock()
		return report
	}
	h.mu.Unlock()
	return h.Refresh(ctx)
}

// Refresh always probes and replaces the cached report.
func (h *HealthChecker) Refresh(ctx context.Context) HealthReport {
	start := h.now()
	err := h.probe(ctx)
	report := HealthReport{
		Status:           Classify(err),
		ResponseTime:     millis(h.now().Sub(start)),
		LastCheck:        h.now(),
		APIKeyConfigured: h.apiKeyConfigured,
	}
	if err != nil {
		report.ErrorKind = ErrorKind(err)
		log.Printf("⚠️ Gemini health probe %s: %v", report.Status, err)
	}

	h.mu.Lock()
	h.last = &report
	h.mu.Unlock()
	return report
}

const (
	KindAPIError        = "api_error"
	KindInvalidResponse = "invalid_response"
	KindTimeout         = "timeout"
	KindUnreachable     = "unreachable"
)

// ErrorKind reduces a probe error to a label that is safe to publish.
func ErrorKind(err error) string {
	var apiErr *llm.APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return KindAPIError
	case errors.Is(err, llm.ErrInvalidResponseFormat):
		return KindInvalidResponse
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindUnreachable
	}
}

// Classify maps a probe error to a status. The API answering with an error
// or an unusable body is degraded; not reaching it at all is unhealthy.
func Classify(err error) HealthStatus {
	if err == nil {
		return StatusHealthy
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) || errors.Is(err, llm.ErrInvalidResponseFormat) {
		return StatusDegraded
	}
	return StatusUnhealthy
}
