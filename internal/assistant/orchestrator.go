// In file: internal/assistant/orchestrator.go

// Package assistant runs one conversation turn end to end: guard the input,
// decide whether weather data is needed, fetch it through the model's
// function call or directly, and phrase the answer with Gemini.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/guard"
	"github.com/dileep-u-k/weatherbot/internal/llm"
	"github.com/dileep-u-k/weatherbot/internal/location"
	"github.com/dileep-u-k/weatherbot/internal/metrics"
	"github.com/dileep-u-k/weatherbot/internal/telemetry"
	"github.com/dileep-u-k/weatherbot/internal/tools"
	"github.com/dileep-u-k/weatherbot/internal/weather"
)

// ErrEmptyMessage is returned by ProcessTurn when nothing is left after
// sanitizing the input.
var ErrEmptyMessage = errors.New("message is empty")

// WeatherService is the slice of the weather client the assistant uses.
type WeatherService interface {
	GetWeatherData(ctx context.Context, location string, includeForecast bool, forecastDays int) (*weather.Result, error)
	GetCurrentWeather(ctx context.Context, location string) (*weather.Record, error)
	GetForecast(ctx context.Context, location string, days int) (*weather.Forecast, error)
}

// ExtractionMode picks how the simple path finds the location.
type ExtractionMode string

const (
	ExtractionHeuristic ExtractionMode = "heuristic"
	ExtractionAI        ExtractionMode = "ai"

	DefaultHistoryWindow = 10
	simpleForecastDays   = 3
)

// Config carries the knobs and the connection details reported by
// ValidateConfiguration.
type Config struct {
	HistoryWindow  int
	ExtractionMode ExtractionMode
	APIKey         string
	Model          string
	BaseURL        string
}

// Exchange is the outcome of one or two model calls.
type Exchange struct {
	Success        bool               `json:"success"`
	Content        string             `json:"content"`
	Error          string             `json:"error,omitempty"`
	FunctionCall   *tools.ToolCall    `json:"function_call,omitempty"`
	FunctionResult *tools.Result      `json:"function_result,omitempty"`
	WeatherData    *weather.Result    `json:"weather_data,omitempty"`
	ProcessingTime float64            `json:"processing_time"`
	TokensUsed     int                `json:"tokens_used"`
	FinishReason   string             `json:"finish_reason,omitempty"`
	SafetyRatings  []llm.SafetyRating `json:"safety_ratings,omitempty"`
}

// Options select the pipeline for a turn.
type Options struct {
	UseFunctionCalling bool `json:"use_function_calling"`
	UseForecast        bool `json:"use_forecast"`
}

// TurnResult is what ProcessTurn hands back to the transport layer.
type TurnResult struct {
	Text             string  `json:"text"`
	UsedWeather      bool    `json:"used_weather"`
	Location         string  `json:"location,omitempty"`
	TokensUsed       int     `json:"tokens_used"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Flagged          bool    `json:"flagged"`
}

// ConfigReport mirrors the configuration checks exposed on the health route.
type ConfigReport struct {
	APIKeyConfigured  bool   `json:"api_key_configured"`
	ModelConfigured   bool   `json:"model_configured"`
	BaseURLConfigured bool   `json:"base_url_configured"`
	APIKeyLength      int    `json:"api_key_length"`
	Model             string `json:"model"`
	BaseURL           string `json:"base_url"`
}

// Orchestrator is safe for concurrent use; each turn is a sequential chain
// of calls and shares nothing but the collaborators.
type Orchestrator struct {
	llm       llm.LLMClient
	weather   WeatherService
	tools     *tools.ToolManager
	extractor *location.Extractor
	guard     *guard.Guard
	usage     telemetry.UsageRecorder
	cfg       Config
	pick      func(n int) int
}

// NewOrchestrator wires the collaborators. A nil tool manager gets the
// weather tool registered against weatherSvc; nil extractor, guard or
// usage recorder get their defaults.
func NewOrchestrator(client llm.LLMClient, weatherSvc WeatherService, toolManager *tools.ToolManager, extractor *location.Extractor, g *guard.Guard, usage telemetry.UsageRecorder, cfg Config) *Orchestrator {
	if toolManager == nil {
		toolManager = tools.NewToolManager()
		toolManager.Register(tools.NewWeatherTool(weatherSvc))
	}
	if extractor == nil {
		extractor = location.NewExtractor(nil)
	}
	if g == nil {
		g = guard.New()
	}
	if usage == nil {
		usage = telemetry.NewMemoryUsage()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.ExtractionMode == "" {
		cfg.ExtractionMode = ExtractionHeuristic
	}
	return &Orchestrator{
		llm:       client,
		weather:   weatherSvc,
		tools:     toolManager,
		extractor: extractor,
		guard:     g,
		usage:     usage,
		cfg:       cfg,
		pick:      rand.Intn,
	}
}

// =================================================================================
// Prompt assembly
// =================================================================================

// BuildContents lays out the persona prompt, the priming reply, the trailing
// history window without system turns, and the user message.
func (o *Orchestrator) BuildContents(history []llm.Message, userMessage string) []llm.Message {
	kept := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == llm.RoleSystem {
			continue
		}
		kept = append(kept, msg)
	}
	if len(kept) > o.cfg.HistoryWindow {
		kept = kept[len(kept)-o.cfg.HistoryWindow:]
	}

	contents := make([]llm.Message, 0, len(kept)+3)
	contents = append(contents,
		llm.Message{Role: llm.RoleUser, Content: SystemPrompt},
		llm.Message{Role: llm.RoleAssistant, Content: PrimingReply},
	)
	contents = append(contents, kept...)
	contents = append(contents, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return contents
}

// =================================================================================
// Model calls
// =================================================================================

// generate makes one model call and records it everywhere it is counted.
func (o *Orchestrator) generate(ctx context.Context, contents []llm.Message, availableTools []tools.Tool) (*llm.GenerationResult, time.Duration, error) {
	start := time.Now()
	res, err := o.llm.Generate(ctx, contents, nil, availableTools)
	elapsed := time.Since(start)

	metrics.LLMLatency.Observe(elapsed.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(outcome).Inc()
	o.usage.Record(ctx, err == nil, elapsed)
	return res, elapsed, err
}

// GenerateResponse runs a single call. Failures never surface as errors:
// the Exchange carries one of the canned apologies instead.
func (o *Orchestrator) GenerateResponse(ctx context.Context, message string, history []llm.Message, includeWeatherFunction bool) *Exchange {
	var defs []tools.Tool
	if includeWeatherFunction {
		defs = o.tools.GetDefinitions()
	}

	res, elapsed, err := o.generate(ctx, o.BuildContents(history, message), defs)
	if err != nil {
		log.Printf("❌ AI Service Error: %v", err)
		return &Exchange{
			Success:        false,
			Content:        o.fallback(),
			Error:          err.Error(),
			ProcessingTime: millis(elapsed),
		}
	}
	return &Exchange{
		Success:        true,
		Content:        res.Content,
		FunctionCall:   res.FunctionCall,
		ProcessingTime: millis(elapsed),
		TokensUsed:     res.TokensUsed,
		FinishReason:   res.FinishReason,
		SafetyRatings:  res.SafetyRatings,
	}
}

// ExecuteFunctionCall runs a model-requested call. The Result is always
// non-nil; the error keeps the cause for errors.Is/As.
func (o *Orchestrator) ExecuteFunctionCall(ctx context.Context, call *tools.ToolCall) (*tools.Result, error) {
	if call == nil {
		err := fmt.Errorf("%w: empty call", tools.ErrUnknownFunction)
		return tools.Failure("", err), err
	}
	return o.tools.Execute(ctx, call)
}

// GenerateResponseWithFunctions is the two-step protocol: offer the weather
// function, run what the model asks for, then ask it to phrase the data.
func (o *Orchestrator) GenerateResponseWithFunctions(ctx context.Context, message string, history []llm.Message) *Exchange {
	first := o.GenerateResponse(ctx, message, history, true)
	if !first.Success || first.FunctionCall == nil {
		return first
	}

	result, err := o.ExecuteFunctionCall(ctx, first.FunctionCall)
	first.FunctionResult = result
	if err != nil {
		if errors.Is(err, weather.ErrLocationNotFound) {
			first.Content = fmt.Sprintf(locationNotFoundFormat, requestedLocation(first.FunctionCall))
			return first
		}
		log.Printf("❌ Weather Function Error: %v", err)
		first.Success = false
		first.Error = err.Error()
		first.Content = o.fallback()
		return first
	}

	payload, err := json.Marshal(result)
	if err != nil {
		first.Success = false
		first.Error = err.Error()
		first.Content = o.fallback()
		return first
	}

	updated := make([]llm.Message, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated,
		llm.Message{Role: llm.RoleUser, Content: message},
		llm.Message{Role: llm.RoleFunction, Content: string(payload)},
	)

	final := o.GenerateResponse(ctx, SecondPassInstruction, updated, false)
	final.FunctionCall = first.FunctionCall
	final.FunctionResult = result
	final.WeatherData, _ = result.Data.(*weather.Result)
	final.ProcessingTime += first.ProcessingTime
	final.TokensUsed += first.TokensUsed
	return final
}

// Probe is the health check call: a fixed question without tools.
func (o *Orchestrator) Probe(ctx context.Context) error {
	_, _, err := o.generate(ctx, o.BuildContents(nil, HealthProbeMessage), nil)
	return err
}

// ValidateConfiguration reports which connection settings are present.
func (o *Orchestrator) ValidateConfiguration() ConfigReport {
	return ConfigReport{
		APIKeyConfigured:  o.cfg.APIKey != "" && o.cfg.APIKey != "your_gemini_api_key_here",
		ModelConfigured:   o.cfg.Model != "",
		BaseURLConfigured: o.cfg.BaseURL != "",
		APIKeyLength:      len(o.cfg.APIKey),
		Model:             o.cfg.Model,
		BaseURL:           o.cfg.BaseURL,
	}
}

// UsageStats exposes the recorder's counters.
func (o *Orchestrator) UsageStats(ctx context.Context) (telemetry.UsageStats, error) {
	return o.usage.Stats(ctx)
}

func (o *Orchestrator) fallback() string {
	return FallbackResponses[o.pick(len(FallbackResponses))]
}

func requestedLocation(call *tools.ToolCall) string {
	args, err := call.Args()
	if err != nil {
		return ""
	}
	loc, _ := args["location"].(string)
	return loc
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
