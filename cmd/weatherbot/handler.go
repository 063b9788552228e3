// In file: cmd/weatherbot/handler.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/dileep-u-k/weatherbot/internal/assistant"
	"github.com/dileep-u-k/weatherbot/internal/llm"
	"github.com/dileep-u-k/weatherbot/internal/telemetry"
	"github.com/dileep-u-k/weatherbot/internal/weather"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =================================================================================
// WeatherBot HTTP surface
// =================================================================================
// The chat route is a thin shell over assistant.ProcessTurn. The weather
// routes expose the data client directly for the frontend widgets and for
// operators inspecting the cache.
// =================================================================================

const requestIDHeader = "X-Request-ID"

var validate = validator.New()

// WeatherAPI is what the handler needs from the weather client.
type WeatherAPI interface {
	GetCurrentWeather(ctx context.Context, location string) (*weather.Record, error)
	GetForecast(ctx context.Context, location string, days int) (*weather.Forecast, error)
	SearchLocations(ctx context.Context, query string) ([]weather.GeocodeResult, error)
	HealthCheck(ctx context.Context) weather.Health
	Stats(ctx context.Context) (weather.Stats, error)
	ClearAllCache(ctx context.Context) (int, error)
	ClearLocationCache(ctx context.Context, location string) (bool, error)
}

type Handler struct {
	bot     *assistant.Orchestrator
	weather WeatherAPI
	health  *telemetry.HealthChecker
}

func NewHandler(bot *assistant.Orchestrator, weatherAPI WeatherAPI, health *telemetry.HealthChecker) *Handler {
	return &Handler{bot: bot, weather: weatherAPI, health: health}
}

// --- Request types ---

type chatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system function"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message            string     `json:"message" validate:"required"`
	History            []chatTurn `json:"history" validate:"dive"`
	UseFunctionCalling bool       `json:"use_function_calling"`
	UseForecast        bool       `json:"use_forecast"`
}

type locationQuery struct {
	Location string `form:"location" validate:"required,min=2,max=100"`
}

type forecastQuery struct {
	Location string `form:"location" validate:"required,min=2,max=100"`
	Days     int    `form:"days" validate:"omitempty,min=1,max=16"`
}

type searchQuery struct {
	Q string `form:"q" validate:"required,min=2,max=100"`
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), requestID())

	engine.GET("/health", h.HandleLiveness)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/health", h.HandleHealth)
		v1.POST("/chat", h.HandleChat)
		v1.GET("/usage", h.HandleUsage)

		w := v1.Group("/weather")
		w.GET("/current", h.HandleCurrentWeather)
		w.GET("/forecast", h.HandleForecast)
		w.GET("/search", h.HandleSearch)
		w.GET("/stats", h.HandleStats)
		w.DELETE("/cache", h.HandleClearCache)
	}
	return engine
}

// requestID propagates or assigns an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) HandleLiveness(c *gin.Context) {
	info := GetBuildInfo()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": info.Version, "commit": info.GitCommit})
}

func (h *Handler) HandleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	ai := h.health.Check(ctx)
	wx := h.weather.HealthCheck(ctx)

	status := http.StatusOK
	if ai.Status == telemetry.StatusUnhealthy || wx.Status == string(telemetry.StatusUnhealthy) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ai":            ai,
		"weather":       wx,
		"configuration": h.bot.ValidateConfiguration(),
	})
}

func (h *Handler) HandleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, llm.Message{Role: llm.Role(turn.Role), Content: turn.Content})
	}

	log.Printf("--- New Chat Turn (Request: %s, Message: '%.30s...') ---", c.GetString("request_id"), req.Message)
	res, err := h.bot.ProcessTurn(c.Request.Context(), req.Message, history, assistant.Options{
		UseFunctionCalling: req.UseFunctionCalling,
		UseForecast:        req.UseForecast,
	})
	if errors.Is(err, assistant.ErrEmptyMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: message is empty"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": c.GetString("request_id"), "response": res})
}

func (h *Handler) HandleUsage(c *gin.Context) {
	stats, err := h.bot.UsageStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) HandleCurrentWeather(c *gin.Context) {
	var q locationQuery
	if !bindQuery(c, &q) {
		return
	}
	rec, err := h.weather.GetCurrentWeather(c.Request.Context(), q.Location)
	if err != nil {
		writeWeatherError(c, q.Location, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) HandleForecast(c *gin.Context) {
	var q forecastQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Days == 0 {
		q.Days = weather.DefaultForecastDay
	}
	f, err := h.weather.GetForecast(c.Request.Context(), q.Location, q.Days)
	if err != nil {
		writeWeatherError(c, q.Location, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handler) HandleSearch(c *gin.Context) {
	var q searchQuery
	if !bindQuery(c, &q) {
		return
	}
	results, err := h.weather.SearchLocations(c.Request.Context(), q.Q)
	if err != nil {
		writeWeatherError(c, q.Q, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q.Q, "results": results})
}

func (h *Handler) HandleStats(c *gin.Context) {
	stats, err := h.weather.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) HandleClearCache(c *gin.Context) {
	ctx := c.Request.Context()
	if loc := c.Query("location"); loc != "" {
		cleared, err := h.weather.ClearLocationCache(ctx, loc)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		log.Printf("🧹 Cleared weather cache for '%s': %v", loc, cleared)
		c.JSON(http.StatusOK, gin.H{"location": loc, "cleared": cleared})
		return
	}

	n, err := h.weather.ClearAllCache(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Printf("🧹 Cleared %d weather cache entries", n)
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// --- Helpers ---

func bindQuery(c *gin.Context, q any) bool {
	if err := c.ShouldBindQuery(q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return false
	}
	if err := validate.Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return false
	}
	return true
}

func writeWeatherError(c *gin.Context, loc string, err error) {
	var provErr *weather.ProviderError
	switch {
	case errors.Is(err, weather.ErrLocationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "location not found", "location": loc})
	case errors.As(err, &provErr):
		log.Printf("❌ Weather provider error for '%s': %v", loc, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "weather provider unavailable"})
	default:
		log.Printf("❌ Weather request failed for '%s': %v", loc, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch weather data"})
	}
}
