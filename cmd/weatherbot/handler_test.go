package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/weatherbot/internal/assistant"
	"github.com/dileep-u-k/weatherbot/internal/llm"
	"github.com/dileep-u-k/weatherbot/internal/telemetry"
	"github.com/dileep-u-k/weatherbot/internal/tools"
	"github.com/dileep-u-k/weatherbot/internal/weather"
)

type cannedLLM struct {
	reply string
	err   error
}

func (c *cannedLLM) Generate(context.Context, []llm.Message, *llm.GenerationConfig, []tools.Tool) (*llm.GenerationResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.GenerationResult{Content: c.reply, FinishReason: "STOP", TokensUsed: llm.EstimateTokens(c.reply)}, nil
}

type fakeWeather struct {
	err         error
	forecastReq int
	cleared     string
	clearedAll  bool
}

func (f *fakeWeather) record(loc string) *weather.Record {
	return &weather.Record{
		Location:    loc,
		Coordinates: weather.Coordinates{Latitude: 40.4168, Longitude: -3.7038},
		Current:     &weather.Conditions{Temperature: 18.2, Description: weather.Describe(0)},
		CapturedAt:  time.Now(),
	}
}

func (f *fakeWeather) GetWeatherData(_ context.Context, loc string, _ bool, _ int) (*weather.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &weather.Result{Record: f.record(loc), Location: loc, Source: weather.SourceAPI}, nil
}

func (f *fakeWeather) GetCurrentWeather(_ context.Context, loc string) (*weather.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record(loc), nil
}

func (f *fakeWeather) GetForecast(_ context.Context, loc string, days int) (*weather.Forecast, error) {
	f.forecastReq = days
	if f.err != nil {
		return nil, f.err
	}
	return &weather.Forecast{Location: loc, Days: make([]weather.ForecastDay, days)}, nil
}

func (f *fakeWeather) SearchLocations(_ context.Context, q string) ([]weather.GeocodeResult, error) {
	return []weather.GeocodeResult{{Name: "Madrid", Country: "Spain"}}, nil
}

func (f *fakeWeather) HealthCheck(context.Context) weather.Health {
	return weather.Health{Status: "healthy", APIStatus: "connected"}
}

func (f *fakeWeather) Stats(context.Context) (weather.Stats, error) {
	return weather.Stats{CacheStats: weather.CacheStats{Total: 2, Valid: 1, Expired: 1}, HitRate: 0.5}, nil
}

func (f *fakeWeather) ClearAllCache(context.Context) (int, error) {
	f.clearedAll = true
	return 4, nil
}

func (f *fakeWeather) ClearLocationCache(_ context.Context, loc string) (bool, error) {
	f.cleared = loc
	return true, nil
}

func setupRouter(model llm.LLMClient, ws *fakeWeather) *gin.Engine {
	gin.SetMode(gin.TestMode)
	bot := assistant.NewOrchestrator(model, ws, nil, nil, nil, telemetry.NewMemoryUsage(), assistant.Config{
		APIKey: "test-key", Model: "gemini-1.5-flash", BaseURL: llm.DefaultGeminiBaseURL,
	})
	health := telemetry.NewHealthChecker(bot.Probe, true)
	return NewRouter(NewHandler(bot, ws, health))
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLivenessAndRequestID(t *testing.T) {
	r := setupRouter(&cannedLLM{reply: "ok"}, &fakeWeather{})

	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err)
	assert.Equal(t, "ok", decode(t, w)["status"])

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(requestIDHeader))
}

func TestChatValidation(t *testing.T) {
	r := setupRouter(&cannedLLM{reply: "ok"}, &fakeWeather{})

	tests := map[string]string{
		"malformed json":    `{"message":`,
		"missing message":   `{"history":[]}`,
		"bad role":          `{"message":"hola","history":[{"role":"robot","content":"x"}]}`,
		"empty after guard": `{"message":"<|im_end|>"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/chat", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w)["error"], "Invalid request")
		})
	}
}

func TestChatPlainTurn(t *testing.T) {
	r := setupRouter(&cannedLLM{reply: "¡Hola! ¿De qué ciudad quieres saber el clima?"}, &fakeWeather{})

	w := do(r, http.MethodPost, "/api/v1/chat", `{"message":"Hola, ¿cómo estás?","history":[{"role":"user","content":"hola"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.NotEmpty(t, body["request_id"])
	resp := body["response"].(map[string]any)
	assert.Equal(t, "¡Hola! ¿De qué ciudad quieres saber el clima?", resp["text"])
	assert.Equal(t, false, resp["used_weather"])

	w = do(r, http.MethodGet, "/api/v1/usage", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["total_requests"])
}

func TestChatWeatherTurn(t *testing.T) {
	r := setupRouter(&cannedLLM{reply: "En Madrid hace 18.2°C."}, &fakeWeather{})

	w := do(r, http.MethodPost, "/api/v1/chat", `{"message":"¿Cuál es el clima en Madrid?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)["response"].(map[string]any)
	assert.Equal(t, true, resp["used_weather"])
	assert.Equal(t, "Madrid, Spain", resp["location"])
}

func TestChatApologizesOnModelFailure(t *testing.T) {
	r := setupRouter(&cannedLLM{err: errors.New("connection reset")}, &fakeWeather{})

	w := do(r, http.MethodPost, "/api/v1/chat", `{"message":"Hola, ¿cómo estás?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	text := decode(t, w)["response"].(map[string]any)["text"].(string)
	assert.Contains(t, assistant.FallbackResponses, text)
	assert.NotContains(t, text, "connection reset")
}

func TestWeatherRoutes(t *testing.T) {
	ws := &fakeWeather{}
	r := setupRouter(&cannedLLM{reply: "ok"}, ws)

	w := do(r, http.MethodGet, "/api/v1/weather/current", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/weather/current?location=Madrid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Madrid", decode(t, w)["location"])

	w = do(r, http.MethodGet, "/api/v1/weather/forecast?location=Madrid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, weather.DefaultForecastDay, ws.forecastReq)

	w = do(r, http.MethodGet, "/api/v1/weather/forecast?location=Madrid&days=20", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/v1/weather/search?q=Ma", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["results"], 1)

	w = do(r, http.MethodGet, "/api/v1/weather/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.5, decode(t, w)["cache_hit_rate"])

	w = do(r, http.MethodDelete, "/api/v1/weather/cache?location=Madrid", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Madrid", ws.cleared)

	w = do(r, http.MethodDelete, "/api/v1/weather/cache", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ws.clearedAll)
	assert.Equal(t, 4.0, decode(t, w)["cleared"])
}

func TestWeatherRouteErrors(t *testing.T) {
	ws := &fakeWeather{err: weather.ErrLocationNotFound}
	r := setupRouter(&cannedLLM{reply: "ok"}, ws)

	w := do(r, http.MethodGet, "/api/v1/weather/current?location=Atlantis", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	ws.err = &weather.ProviderError{Upstream: "forecast", StatusCode: 503, Err: errors.New("down")}
	w = do(r, http.MethodGet, "/api/v1/weather/current?location=Madrid", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "503")
}

func TestHealthRoute(t *testing.T) {
	r := setupRouter(&cannedLLM{reply: "Sí."}, &fakeWeather{})
	w := do(r, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "healthy", body["ai"].(map[string]any)["status"])
	assert.Equal(t, "healthy", body["weather"].(map[string]any)["status"])
	assert.Equal(t, true, body["configuration"].(map[string]any)["api_key_configured"])

	down := setupRouter(&cannedLLM{err: errors.New("dial tcp: timeout")}, &fakeWeather{})
	w = do(down, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "dial tcp")
	assert.Equal(t, telemetry.KindUnreachable, decode(t, w)["ai"].(map[string]any)["error_kind"])
}

func TestMetricsRoute(t *testing.T) {
	r := setupRouter(&cannedLLM{reply: "ok"}, &fakeWeather{})
	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "weatherbot_llm_latency_seconds")
}
