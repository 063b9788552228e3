// In file: cmd/cachectl/main.go

// Package main implements cachectl, the offline maintenance tool for the
// WeatherBot weather cache. It talks to the same backend as the server
// (memory, SQLite or Redis) and is meant to be run from cron jobs or by hand:
//  1. cleanup removes expired entries.
//  2. clear drops one location or the whole cache.
//  3. stats prints the cache summary as JSON.
//  4. warm pre-fetches current conditions for every known city.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/cache"
	"github.com/dileep-u-k/weatherbot/internal/location"
	"github.com/dileep-u-k/weatherbot/internal/weather"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
)

// =================================================================================
// Configuration
// =================================================================================

const defaultWarmConcurrency = 4

// Config is the subset of the server configuration cachectl needs.
type Config struct {
	CacheBackend          string
	SQLitePath            string
	RedisAddr             string
	OpenMeteoBaseURL      string
	OpenMeteoGeocodingURL string
	WeatherCacheTTL       time.Duration
	GeocodingCacheTTL     time.Duration
	ForecastDayCap        int
}

func loadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found. Relying on environment variables.")
	}
	cfg := &Config{
		CacheBackend:          strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		SQLitePath:            getEnv("SQLITE_PATH", "weatherbot.db"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		OpenMeteoBaseURL:      getEnv("OPENMETEO_BASE_URL", weather.DefaultBaseURL),
		OpenMeteoGeocodingURL: getEnv("OPENMETEO_GEOCODING_URL", weather.DefaultGeocodingURL),
	}

	// Same variables and defaults as the server, so warm-up writes entries
	// the server will read back.
	weatherTTL, err := getEnvInt("WEATHER_CACHE_TTL", int(weather.DefaultWeatherTTL/time.Second))
	if err != nil {
		return nil, err
	}
	geocodeTTL, err := getEnvInt("GEOCODING_CACHE_TTL", int(weather.DefaultGeocodeTTL/time.Second))
	if err != nil {
		return nil, err
	}
	if cfg.ForecastDayCap, err = getEnvInt("FORECAST_DAY_CAP", weather.DefaultForecastCap); err != nil {
		return nil, err
	}
	cfg.WeatherCacheTTL = time.Duration(weatherTTL) * time.Second
	cfg.GeocodingCacheTTL = time.Duration(geocodeTTL) * time.Second

	if cfg.CacheBackend == "memory" {
		log.Println("⚠️ CACHE_BACKEND=memory: changes only live as long as this process.")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

// openClient builds a weather client over the configured backend. The
// returned func releases the backend connection.
func openClient(ctx context.Context, cfg *Config) (*weather.Client, func(), error) {
	var (
		store    weather.Cache
		geocache weather.GeocodeCache = cache.NewMemoryGeocodeCache()
		closeFn                       = func() {}
	)
	switch cfg.CacheBackend {
	case "sqlite":
		s, err := cache.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open sqlite cache: %w", err)
		}
		store, closeFn = s, func() { s.Close() }
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return nil, nil, fmt.Errorf("could not connect to Redis: %w", err)
		}
		store, geocache, closeFn = cache.NewRedisStore(rdb), cache.NewRedisGeocodeCache(rdb), func() { rdb.Close() }
	case "memory":
		store = cache.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}

	client := weather.NewClient(weather.Config{
		BaseURL:        cfg.OpenMeteoBaseURL,
		GeocodingURL:   cfg.OpenMeteoGeocodingURL,
		WeatherTTL:     cfg.WeatherCacheTTL,
		GeocodeTTL:     cfg.GeocodingCacheTTL,
		ForecastDayCap: cfg.ForecastDayCap,
	}, store, geocache)
	return client, closeFn, nil
}

// =================================================================================
// Entry point
// =================================================================================

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: cachectl <command> [options]

Commands:
  cleanup   Remove expired weather cache entries
  clear     Remove cached entries for one location, or all of them
  stats     Print cache statistics as JSON
  warm      Pre-fetch current weather for every known city

Run 'cachectl <command> --help' for command options.
`)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("❌ Configuration Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, closeFn, err := openClient(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer closeFn()

	err = run(ctx, client, os.Args[1], os.Args[2:], os.Stdout)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		log.Printf("❌ %s failed: %v", os.Args[1], err)
		closeFn()
		os.Exit(1)
	}
}

// run dispatches one subcommand.
func run(ctx context.Context, client *weather.Client, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "cleanup":
		return runCleanup(ctx, client, args, out)
	case "clear":
		return runClear(ctx, client, args, out)
	case "stats":
		return runStats(ctx, client, args, out)
	case "warm":
		return runWarm(ctx, client, args, out)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// =================================================================================
// Commands
// =================================================================================

func runCleanup(ctx context.Context, client *weather.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cachectl cleanup\n\nRemoves every weather cache entry whose expiry has passed.\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := client.CleanupExpiredCache(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "🧹 Removed %d expired entries\n", n)
	return nil
}

func runClear(ctx context.Context, client *weather.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	loc := fs.StringP("location", "l", "", "Only clear entries whose location contains this text (case-insensitive)")
	confirm := fs.Bool("yes", false, "Confirm clearing the whole cache (required without --location)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cachectl clear [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  cachectl clear --location Madrid   Drop every cached Madrid record
  cachectl clear --yes               Drop the whole weather cache
`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *loc != "" {
		removed, err := client.ClearLocationCache(ctx, *loc)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "🧹 Cleared '%s': %v\n", *loc, removed)
		return nil
	}
	if !*confirm {
		return errors.New("the --yes flag is required to clear the whole cache")
	}
	n, err := client.ClearAllCache(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "🧹 Cleared %d entries\n", n)
	return nil
}

func runStats(ctx context.Context, client *weather.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	compact := fs.Bool("compact", false, "Print JSON on a single line")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(stats)
}

// warmReport counts the outcome of a warm run.
type warmReport struct {
	Warmed int
	Failed []string
}

func runWarm(ctx context.Context, client *weather.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("warm", flag.ContinueOnError)
	concurrency := fs.IntP("concurrency", "c", defaultWarmConcurrency, "Number of cities fetched in parallel")
	only := fs.StringSlice("city", nil, "Warm only these locations (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", *concurrency)
	}

	cities := *only
	if len(cities) == 0 {
		cities = location.DefaultRules().Canonicals()
	}

	report := warm(ctx, client, cities, *concurrency)
	fmt.Fprintf(out, "✅ Warmed %d of %d locations\n", report.Warmed, len(cities))
	if len(report.Failed) > 0 {
		fmt.Fprintf(out, "⚠️ Failed: %s\n", strings.Join(report.Failed, "; "))
	}
	return ctx.Err()
}

// warm fetches current conditions for every city with at most limit
// requests in flight.
func warm(ctx context.Context, client *weather.Client, cities []string, limit int) warmReport {
	log.Printf("🚀 Warming weather cache for %d locations...", len(cities))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report warmReport
		sem    = make(chan struct{}, limit)
	)
	for _, city := range cities {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				report.Failed = append(report.Failed, c)
				mu.Unlock()
				return
			}
			defer func() { <-sem }()

			_, err := client.GetCurrentWeather(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("❌ Error warming '%s': %v", c, err)
				report.Failed = append(report.Failed, c)
				return
			}
			report.Warmed++
		}(city)
	}
	wg.Wait()
	log.Println("✅ Cache warm-up complete.")
	return report
}
