// In file: cmd/weatherbot/config.go
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks a startup configuration problem. The server never
// starts when LoadConfig returns it.
var ErrConfiguration = errors.New("configuration error")

// AppConfig holds all configuration for the service, loaded from the
// environment and an optional config.yaml.
type AppConfig struct {
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	LLMTransport  string // "rest" or "sdk"

	OpenMeteoBaseURL      string
	OpenMeteoGeocodingURL string
	WeatherCacheTTL       time.Duration
	GeocodingCacheTTL     time.Duration
	ForecastDayCap        int

	CacheBackend string // "memory", "sqlite" or "redis"
	SQLitePath   string
	RedisAddr    string

	ExtractionMode string // "heuristic" or "ai"
	HistoryWindow  int
	Port           string

	File FileConfig
}

// FileConfig is the optional config.yaml overlay.
type FileConfig struct {
	// ExtraCities maps lower-case aliases to canonical names.
	ExtraCities map[string]string `yaml:"extra_cities"`
	Schedules   struct {
		HealthCheck  string `yaml:"health_check"`
		CacheCleanup string `yaml:"cache_cleanup"`
	} `yaml:"schedules"`
}

// LoadConfig loads configuration from a .env file, environment variables
// and config.yaml. A missing GEMINI_API_KEY is fatal.
func LoadConfig() (*AppConfig, error) {
	// In Docker (GIN_MODE=release) the environment is provided directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := &AppConfig{
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           envOr("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:         envOr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1/models"),
		LLMTransport:          strings.ToLower(envOr("LLM_TRANSPORT", "rest")),
		OpenMeteoBaseURL:      envOr("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1"),
		OpenMeteoGeocodingURL: envOr("OPENMETEO_GEOCODING_URL", "https://geocoding-api.open-meteo.com/v1"),
		CacheBackend:          strings.ToLower(envOr("CACHE_BACKEND", "memory")),
		SQLitePath:            envOr("SQLITE_PATH", "weatherbot.db"),
		RedisAddr:             envOr("REDIS_ADDR", "localhost:6379"),
		ExtractionMode:        strings.ToLower(envOr("EXTRACTION_MODE", "heuristic")),
		Port:                  envOr("PORT", "8080"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrConfiguration)
	}

	var err error
	if cfg.WeatherCacheTTL, err = envSeconds("WEATHER_CACHE_TTL", 900); err != nil {
		return nil, err
	}
	if cfg.GeocodingCacheTTL, err = envSeconds("GEOCODING_CACHE_TTL", 86400); err != nil {
		return nil, err
	}
	if cfg.ForecastDayCap, err = envInt("FORECAST_DAY_CAP", 7); err != nil {
		return nil, err
	}
	if cfg.HistoryWindow, err = envInt("HISTORY_WINDOW", 10); err != nil {
		return nil, err
	}

	switch cfg.CacheBackend {
	case "memory", "sqlite", "redis":
	default:
		return nil, fmt.Errorf("%w: unknown CACHE_BACKEND %q", ErrConfiguration, cfg.CacheBackend)
	}
	switch cfg.LLMTransport {
	case "rest", "sdk":
	default:
		return nil, fmt.Errorf("%w: unknown LLM_TRANSPORT %q", ErrConfiguration, cfg.LLMTransport)
	}

	if err := cfg.File.load(envOr("CONFIG_FILE", "config.yaml")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load reads the overlay. A missing file leaves the defaults in place.
func (f *FileConfig) load(path string) error {
	f.Schedules.HealthCheck = "@every 5m"
	f.Schedules.CacheCleanup = "@every 1h"

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", ErrConfiguration, path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrConfiguration, key, raw)
	}
	return n, nil
}

func envSeconds(key string, fallback int) (time.Duration, error) {
	n, err := envInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}
