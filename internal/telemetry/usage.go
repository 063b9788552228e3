// In file: internal/telemetry/usage.go

// Package telemetry keeps running usage counters for LLM calls, a cached
// health verdict for the Gemini API, and the cron jobs that refresh it.
package telemetry

import (
	"context"
	"sync"
	"time"
)

// UsageStats is the snapshot reported by /api/v1/usage.
type UsageStats struct {
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	// AverageResponseTime is in milliseconds, averaged over every request.
	AverageResponseTime float64   `json:"average_response_time"`
	LastRequestTime     time.Time `json:"last_request_time"`
}

// UsageRecorder counts LLM calls. Implementations must be safe for
// concurrent use and keep the average exact.
type UsageRecorder interface {
	Record(ctx context.Context, success bool, latency time.Duration)
	Stats(ctx context.Context) (UsageStats, error)
}

// movingAverage folds the n-th sample into the mean of the previous n-1.
func movingAverage(old float64, n int64, latest float64) float64 {
	if n <= 1 {
		return latest
	}
	return (old*float64(n-1) + latest) / float64(n)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// MemoryUsage is the in-process recorder.
type MemoryUsage struct {
	mu    sync.Mutex
	stats UsageStats
	now   func() time.Time
}

var _ UsageRecorder = (*MemoryUsage)(nil)

func NewMemoryUsage() *MemoryUsage {
	return &MemoryUsage{now: time.Now}
}

func (m *MemoryUsage) Record(_ context.Context, success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.TotalRequests++
	if success {
		m.stats.SuccessfulRequests++
	} else {
		m.stats.FailedRequests++
	}
	m.stats.AverageResponseTime = movingAverage(m.stats.AverageResponseTime, m.stats.TotalRequests, millis(latency))
	m.stats.LastRequestTime = m.now()
}

func (m *MemoryUsage) Stats(_ context.Context) (UsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats, nil
}
