// In file: cmd/weatherbot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/assistant"
	"github.com/dileep-u-k/weatherbot/internal/cache"
	"github.com/dileep-u-k/weatherbot/internal/guard"
	"github.com/dileep-u-k/weatherbot/internal/llm"
	"github.com/dileep-u-k/weatherbot/internal/location"
	"github.com/dileep-u-k/weatherbot/internal/telemetry"
	"github.com/dileep-u-k/weatherbot/internal/tools"
	"github.com/dileep-u-k/weatherbot/internal/weather"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// main is the composition root: it loads configuration, builds every
// service, wires them together and runs the server until a signal arrives.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	buildInfo := GetBuildInfo()
	log.Printf("🚀 Starting WeatherBot | Version: %s | Commit: %s", buildInfo.Version, buildInfo.GitCommit)

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	log.Println("✅ Configuration loaded.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. INITIALIZE SERVICES
	store, geocache, usage, closeStores, err := initializeStores(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}
	defer closeStores()

	weatherClient := weather.NewClient(weather.Config{
		BaseURL:        cfg.OpenMeteoBaseURL,
		GeocodingURL:   cfg.OpenMeteoGeocodingURL,
		WeatherTTL:     cfg.WeatherCacheTTL,
		GeocodeTTL:     cfg.GeocodingCacheTTL,
		ForecastDayCap: cfg.ForecastDayCap,
	}, store, geocache)

	llmClient, closeLLM, err := initializeLLMClient(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}
	defer closeLLM()

	rules := location.DefaultRules()
	if len(cfg.File.ExtraCities) > 0 {
		rules.AddCities(cfg.File.ExtraCities)
		log.Printf("✅ Added %d cities from config file.", len(cfg.File.ExtraCities))
	}

	toolManager := tools.NewToolManager()
	toolManager.Register(tools.NewWeatherTool(weatherClient))
	log.Printf("✅ Tool Manager initialized with %d tools.", toolManager.ToolCount())

	bot := assistant.NewOrchestrator(llmClient, weatherClient, toolManager, location.NewExtractor(rules), guard.New(), usage, assistant.Config{
		HistoryWindow:  cfg.HistoryWindow,
		ExtractionMode: assistant.ExtractionMode(cfg.ExtractionMode),
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		BaseURL:        cfg.GeminiBaseURL,
	})
	health := telemetry.NewHealthChecker(bot.Probe, bot.ValidateConfiguration().APIKeyConfigured)
	log.Println("✅ All services initialized.")

	// 3. START BACKGROUND PROCESSES
	scheduler := telemetry.NewScheduler(
		telemetry.Job{Name: "gemini-health", Schedule: cfg.File.Schedules.HealthCheck, Run: func(ctx context.Context) error {
			report := health.Refresh(ctx)
			log.Printf("🩺 Gemini health: %s", report.Status)
			return nil
		}},
		telemetry.Job{Name: "cache-cleanup", Schedule: cfg.File.Schedules.CacheCleanup, Run: func(ctx context.Context) error {
			n, err := weatherClient.CleanupExpiredCache(ctx)
			if err != nil {
				return err
			}
			log.Printf("🧹 Removed %d expired weather cache entries", n)
			return nil
		}},
	)
	go func() {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("❌ Scheduler error: %v", err)
		}
	}()

	// 4. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	engine := NewRouter(NewHandler(bot, weatherClient, health))

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: engine}
	runServerWithGracefulShutdown(ctx, srv)
}

// initializeStores picks the cache backend. Redis also backs the geocode
// cache and the usage counters, so replicas share them.
func initializeStores(ctx context.Context, cfg *AppConfig) (weather.Cache, weather.GeocodeCache, telemetry.UsageRecorder, func(), error) {
	switch cfg.CacheBackend {
	case "sqlite":
		s, err := cache.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("could not open sqlite cache: %w", err)
		}
		log.Printf("✅ SQLite weather cache at %s", cfg.SQLitePath)
		return s, cache.NewMemoryGeocodeCache(), telemetry.NewMemoryUsage(), func() { s.Close() }, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("could not connect to Redis: %w", err)
		}
		log.Printf("✅ Redis cache at %s", cfg.RedisAddr)
		return cache.NewRedisStore(rdb), cache.NewRedisGeocodeCache(rdb), telemetry.NewRedisUsage(rdb, "gemini"), func() { rdb.Close() }, nil
	default:
		log.Println("✅ In-memory weather cache")
		return cache.NewMemoryStore(), cache.NewMemoryGeocodeCache(), telemetry.NewMemoryUsage(), func() {}, nil
	}
}

// initializeLLMClient builds the REST or SDK transport.
func initializeLLMClient(ctx context.Context, cfg *AppConfig) (llm.LLMClient, func(), error) {
	if cfg.LLMTransport == "sdk" {
		client, err := llm.NewGeminiSDKClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini SDK client: %w", err)
		}
		log.Printf("✅ Gemini SDK client initialized (%s).", cfg.GeminiModel)
		return client, func() { client.Close() }, nil
	}
	client, err := llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Printf("✅ Gemini REST client initialized (%s).", client.Model())
	return client, func() {}, nil
}

// runServerWithGracefulShutdown serves until ctx is cancelled, then drains
// in-flight requests for up to 10 seconds.
func runServerWithGracefulShutdown(ctx context.Context, srv *http.Server) {
	go func() {
		log.Printf("👂 WeatherBot is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	<-ctx.Done()

	log.Println("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}

	log.Println("👋 Server exited gracefully.")
}
