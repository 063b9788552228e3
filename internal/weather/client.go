// In file: internal/weather/client.go
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/metrics"

	"github.com/sony/gobreaker"
)

// =================================================================================
// Configuration
// =================================================================================

const (
	DefaultBaseURL      = "https://api.open-meteo.com/v1"
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1"

	DefaultWeatherTTL  = 900 * time.Second
	DefaultGeocodeTTL  = 86400 * time.Second
	DefaultForecastCap = 7
	DefaultForecastDay = 3

	// Open-Meteo serves at most 16 days.
	MaxProviderForecastDays = 16

	// CoordinateTolerance is the +/- window in degrees for cache hits.
	CoordinateTolerance = 0.01

	forecastTimeout  = 30 * time.Second
	geocodingTimeout = 10 * time.Second
	healthTimeout    = 10 * time.Second
	searchCount      = 10
)

// Config controls endpoints, cache lifetimes and the forecast horizon.
type Config struct {
	BaseURL        string
	GeocodingURL   string
	WeatherTTL     time.Duration
	GeocodeTTL     time.Duration
	ForecastDayCap int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.GeocodingURL == "" {
		c.GeocodingURL = DefaultGeocodingURL
	}
	if c.WeatherTTL == 0 {
		c.WeatherTTL = DefaultWeatherTTL
	}
	if c.GeocodeTTL == 0 {
		c.GeocodeTTL = DefaultGeocodeTTL
	}
	if c.ForecastDayCap <= 0 {
		c.ForecastDayCap = DefaultForecastCap
	}
	return c
}

// =================================================================================
// Cache contracts
// =================================================================================

// CacheStats summarizes the weather cache.
type CacheStats struct {
	Total        int      `json:"total_entries"`
	Valid        int      `json:"valid_entries"`
	Expired      int      `json:"expired_entries"`
	TopLocations []string `json:"most_requested_locations"`
}

// ForecastKeyPrefix marks GetForecast's entries. They hold daily data only,
// so GetByCoordinates never returns them.
const ForecastKeyPrefix = "forecast|"

// IsForecastKey reports whether key was written by GetForecast.
func IsForecastKey(key string) bool {
	return strings.HasPrefix(key, ForecastKeyPrefix)
}

// Cache stores weather records with an absolute expiry. Lookups return
// (nil, nil) on a miss. GetByCoordinates skips forecast-only entries.
type Cache interface {
	Get(ctx context.Context, key string) (*Record, error)
	GetByCoordinates(ctx context.Context, lat, lon, tolerance float64) (*Record, error)
	Put(ctx context.Context, key string, lat, lon float64, rec *Record, ttl time.Duration) error
	ClearAll(ctx context.Context) (int, error)
	ClearByLocationSubstring(ctx context.Context, text string) (bool, error)
	CleanupExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) (CacheStats, error)
}

// GeocodeCache stores successful geocodes keyed by normalized location.
type GeocodeCache interface {
	Get(ctx context.Context, key string) (*GeocodeResult, bool)
	Set(ctx context.Context, key string, res *GeocodeResult, ttl time.Duration)
}

// =================================================================================
// Client
// =================================================================================

// Client talks to Open-Meteo. It is safe for concurrent use.
type Client struct {
	cfg        Config
	cache      Cache
	geocache   GeocodeCache
	forecastHC *http.Client
	geocodeHC  *http.Client
	forecastCB *gobreaker.CircuitBreaker
	geocodeCB  *gobreaker.CircuitBreaker
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewClient wires a client to its caches.
func NewClient(cfg Config, cache Cache, geocache GeocodeCache) *Client {
	return &Client{
		cfg:        cfg.withDefaults(),
		cache:      cache,
		geocache:   geocache,
		forecastHC: &http.Client{Timeout: forecastTimeout},
		geocodeHC:  &http.Client{Timeout: geocodingTimeout},
		forecastCB: newBreaker(upstreamForecast),
		geocodeCB:  newBreaker(upstreamGeocoding),
		now:        time.Now,
	}
}

// NormalizeKey is the geocode cache key for a free-text location.
func NormalizeKey(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

// Geocode resolves a location to its best match. Transport failures are
// reported as ErrLocationNotFound; only successes are cached.
func (c *Client) Geocode(ctx context.Context, location string) (*GeocodeResult, error) {
	key := NormalizeKey(location)
	if key == "" {
		return nil, ErrLocationNotFound
	}
	if res, ok := c.geocache.Get(ctx, key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("geocode", "hit").Inc()
		return res, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("geocode", "miss").Inc()

	results, err := c.search(ctx, geocodeName(location), 1)
	if err != nil {
		log.Printf("⚠️ Geocoding request failed for '%s': %v", location, err)
		return nil, fmt.Errorf("%w: %v", ErrLocationNotFound, err)
	}
	if len(results) == 0 {
		log.Printf("Location not found in geocoding: '%s'", location)
		return nil, ErrLocationNotFound
	}

	res := results[0]
	if res.Name == "" {
		res.Name = strings.TrimSpace(location)
	}
	c.geocache.Set(ctx, key, &res, c.cfg.GeocodeTTL)
	return &res, nil
}

// geocodeName drops a ", Country" suffix; the geocoder matches bare names.
func geocodeName(location string) string {
	name, _, _ := strings.Cut(location, ",")
	return strings.TrimSpace(name)
}

func (c *Client) search(ctx context.Context, name string, count int) ([]GeocodeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, geocodingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geocodingURL(c.cfg.GeocodingURL, name, count), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding request: %w", err)
	}
	body, err := doRequest(c.geocodeHC, c.geocodeCB, upstreamGeocoding, req)
	if err != nil {
		return nil, err
	}

	var parsed geocodingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Upstream: upstreamGeocoding, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return parsed.toResults(), nil
}

// GetWeatherData resolves location, serves a cached record when one exists
// near the resolved coordinates, and otherwise fetches and caches a fresh one.
// forecastDays is clamped to [1, ForecastDayCap] when includeForecast is set.
func (c *Client) GetWeatherData(ctx context.Context, location string, includeForecast bool, forecastDays int) (*Result, error) {
	geo, err := c.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	days := 0
	if includeForecast {
		days = clamp(forecastDays, 1, c.cfg.ForecastDayCap)
		if forecastDays <= 0 {
			days = min(DefaultForecastDay, c.cfg.ForecastDayCap)
		}
	}

	cached, err := c.cache.GetByCoordinates(ctx, geo.Latitude, geo.Longitude, CoordinateTolerance)
	if err != nil {
		log.Printf("⚠️ Weather cache lookup failed: %v", err)
	}
	if usable(cached, days) {
		c.hits.Add(1)
		metrics.CacheLookupsTotal.WithLabelValues("weather", "hit").Inc()
		return &Result{Record: cached, Source: SourceCache, Location: geo.Name, Geocode: geo}, nil
	}
	c.misses.Add(1)
	metrics.CacheLookupsTotal.WithLabelValues("weather", "miss").Inc()

	var daily []string
	if days > 0 {
		daily = dailyFields
	}
	rec, err := c.fetch(ctx, geo, currentFields, daily, days)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(ctx, geo.Name, geo.Latitude, geo.Longitude, rec, c.cfg.WeatherTTL); err != nil {
		log.Printf("⚠️ Failed to cache weather for '%s': %v", geo.Name, err)
	}
	log.Printf("Fresh weather data fetched and cached for '%s' (%.4f, %.4f)", geo.Name, geo.Latitude, geo.Longitude)

	return &Result{Record: rec, Source: SourceAPI, Location: geo.Name, Geocode: geo}, nil
}

// usable reports whether a cached record answers a request for days of forecast.
func usable(rec *Record, days int) bool {
	return rec != nil && rec.Current != nil && len(rec.Daily) >= days
}

// GetCurrentWeather is GetWeatherData without a forecast.
func (c *Client) GetCurrentWeather(ctx context.Context, location string) (*Record, error) {
	res, err := c.GetWeatherData(ctx, location, false, 0)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// GetForecast returns up to 16 days of daily data. It is cached by location
// and horizon, separately from GetWeatherData's records.
func (c *Client) GetForecast(ctx context.Context, location string, days int) (*Forecast, error) {
	days = clamp(days, 1, MaxProviderForecastDays)

	geo, err := c.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	key := ForecastKeyPrefix + NormalizeKey(geo.Name) + "|" + strconv.Itoa(days)
	if rec, err := c.cache.Get(ctx, key); err == nil && rec != nil {
		c.hits.Add(1)
		metrics.CacheLookupsTotal.WithLabelValues("forecast", "hit").Inc()
		return &Forecast{Location: geo.Name, Coordinates: geo.Coordinates, Days: rec.Daily, Cached: true, RetrievedAt: rec.CapturedAt}, nil
	}
	c.misses.Add(1)
	metrics.CacheLookupsTotal.WithLabelValues("forecast", "miss").Inc()

	rec, err := c.fetch(ctx, geo, nil, slimDailyFields, days)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, key, geo.Latitude, geo.Longitude, rec, c.cfg.WeatherTTL); err != nil {
		log.Printf("⚠️ Failed to cache forecast for '%s': %v", geo.Name, err)
	}
	return &Forecast{Location: geo.Name, Coordinates: geo.Coordinates, Days: rec.Daily, RetrievedAt: rec.CapturedAt}, nil
}

// SearchLocations returns up to ten geocoding candidates for query.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]GeocodeResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []GeocodeResult{}, nil
	}
	return c.search(ctx, query, searchCount)
}

func (c *Client) fetch(ctx context.Context, geo *GeocodeResult, current, daily []string, days int) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, forecastTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, forecastURL(c.cfg.BaseURL, geo.Coordinates, current, daily, days), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create forecast request: %w", err)
	}
	body, err := doRequest(c.forecastHC, c.forecastCB, upstreamForecast, req)
	if err != nil {
		log.Printf("❌ Weather API fetch error (%.4f, %.4f): %v", geo.Latitude, geo.Longitude, err)
		return nil, err
	}

	var parsed forecastResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Upstream: upstreamForecast, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(current) > 0 && parsed.Current == nil {
		return nil, &ProviderError{Upstream: upstreamForecast, Err: errors.New("response has no current block")}
	}
	return parsed.toRecord(geo, c.now()), nil
}

// =================================================================================
// Maintenance, health and stats
// =================================================================================

// Health is the result of a live probe against the forecast endpoint.
type Health struct {
	Status         string      `json:"status"`
	Message        string      `json:"message"`
	ResponseTimeMs float64     `json:"response_time_ms,omitempty"`
	APIStatus      string      `json:"api_status"`
	StatusCode     int         `json:"status_code,omitempty"`
	Cache          *CacheStats `json:"cache_status,omitempty"`
	LastCheck      time.Time   `json:"last_check"`
}

var healthProbePoint = Coordinates{Latitude: 40.7128, Longitude: -74.0060}

// HealthCheck probes the forecast endpoint directly, bypassing the breaker so
// that an open circuit does not hide a recovered upstream.
func (c *Client) HealthCheck(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	h := Health{LastCheck: c.now()}
	if stats, err := c.cache.Stats(ctx); err == nil {
		h.Cache = &stats
	}

	start := time.Now()
	u := forecastURL(c.cfg.BaseURL, healthProbePoint, []string{"temperature_2m"}, nil, 0) + "&forecast_days=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err == nil {
		var resp *http.Response
		resp, err = c.forecastHC.Do(req)
		if err == nil {
			resp.Body.Close()
			h.ResponseTimeMs = float64(time.Since(start).Microseconds()) / 1000
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				h.Status, h.Message, h.APIStatus = "healthy", "Weather service is operational", "connected"
			} else {
				h.Status, h.Message, h.APIStatus = "degraded", "Weather API returned non-200 status", "error"
				h.StatusCode = resp.StatusCode
			}
			return h
		}
	}

	log.Printf("❌ Weather service health check failed: %v", err)
	h.Status, h.Message, h.APIStatus = "unhealthy", "Weather service is not accessible", "disconnected"
	return h
}

// Stats reports cache occupancy and the observed hit rate.
type Stats struct {
	CacheStats
	HitRate float64 `json:"cache_hit_rate"`
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	cs, err := c.cache.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{CacheStats: cs, HitRate: c.HitRate()}, nil
}

// HitRate is hits/(hits+misses) since start, or 0 before any lookup.
func (c *Client) HitRate() float64 {
	h, m := c.hits.Load(), c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

func (c *Client) CleanupExpiredCache(ctx context.Context) (int, error) {
	return c.cache.CleanupExpired(ctx)
}

func (c *Client) ClearAllCache(ctx context.Context) (int, error) {
	n, err := c.cache.ClearAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear weather cache: %w", err)
	}
	log.Printf("All weather cache cleared (%d entries)", n)
	return n, nil
}

func (c *Client) ClearLocationCache(ctx context.Context, location string) (bool, error) {
	ok, err := c.cache.ClearByLocationSubstring(ctx, location)
	if err != nil {
		return false, fmt.Errorf("failed to clear cache for '%s': %w", location, err)
	}
	log.Printf("Location cache cleared for '%s' (removed=%v)", location, ok)
	return ok, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
