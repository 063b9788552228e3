// In file: internal/cache/memory.go

// Package cache provides the weather record store and the geocode cache in
// three flavours: in-process, SQLite and Redis.
package cache

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/weather"
)

// Store is the weather cache contract. Location substring matches are
// case-insensitive in every backend.
type Store = weather.Cache

// entry is immutable once stored.
type entry struct {
	Key       string          `json:"key"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Record    *weather.Record `json:"record"`
	ExpiresAt time.Time       `json:"expires_at"`
	Seq       int64           `json:"seq"`
}

func (e *entry) valid(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

func (e *entry) near(lat, lon, tolerance float64) bool {
	return math.Abs(e.Latitude-lat) <= tolerance && math.Abs(e.Longitude-lon) <= tolerance
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*entry
	seq     int64
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*weather.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Key == key && e.valid(now) {
			return e.Record, nil
		}
	}
	return nil, nil
}

// GetByCoordinates scans newest first so the most recent match wins.
func (m *MemoryStore) GetByCoordinates(_ context.Context, lat, lon, tolerance float64) (*weather.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.near(lat, lon, tolerance) && e.valid(now) && !weather.IsForecastKey(e.Key) {
			return e.Record, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, lat, lon float64, rec *weather.Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.entries = append(m.entries, &entry{
		Key:       key,
		Latitude:  lat,
		Longitude: lon,
		Record:    rec,
		ExpiresAt: m.now().Add(ttl),
		Seq:       m.seq,
	})
	return nil
}

func (m *MemoryStore) ClearAll(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = nil
	return n, nil
}

func (m *MemoryStore) ClearByLocationSubstring(_ context.Context, text string) (bool, error) {
	needle := strings.ToLower(text)
	return m.removeWhere(func(e *entry) bool {
		return strings.Contains(strings.ToLower(e.Key), needle)
	}) > 0, nil
}

func (m *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	now := m.now()
	return m.removeWhere(func(e *entry) bool { return !e.valid(now) }), nil
}

func (m *MemoryStore) removeWhere(match func(*entry) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if match(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(m.entries); i++ {
		m.entries[i] = nil
	}
	m.entries = kept
	return removed
}

func (m *MemoryStore) Stats(_ context.Context) (weather.CacheStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return summarize(m.entries, m.now()), nil
}

const topLocationsLimit = 10

// summarize counts entries and ranks location keys by frequency.
func summarize(entries []*entry, now time.Time) weather.CacheStats {
	stats := weather.CacheStats{Total: len(entries)}
	counts := make(map[string]int)
	for _, e := range entries {
		if e.valid(now) {
			stats.Valid++
		} else {
			stats.Expired++
		}
		counts[e.Key]++
	}
	stats.TopLocations = topKeys(counts, topLocationsLimit)
	return stats
}

func topKeys(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
