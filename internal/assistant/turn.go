// In file: internal/assistant/turn.go
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/llm"
	"github.com/dileep-u-k/weatherbot/internal/metrics"
	"github.com/dileep-u-k/weatherbot/internal/weather"
)

const (
	pathFunction = "function"
	pathSimple   = "simple"
	pathPlain    = "plain"
)

// ProcessTurn answers one user message. The only error is ErrEmptyMessage;
// every other failure ends up as a canned reply in the result.
func (o *Orchestrator) ProcessTurn(ctx context.Context, userText string, history []llm.Message, opts Options) (*TurnResult, error) {
	start := time.Now()

	message, flagged := o.guard.Check(userText)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	var (
		path string
		out  *TurnResult
		ok   bool
	)
	switch {
	case opts.UseFunctionCalling:
		path = pathFunction
		out, ok = o.functionTurn(ctx, message, history)
	default:
		heuristicLoc, found := o.extractor.ExtractLocation(message)
		if found || o.extractor.IsWeatherQuery(message) {
			path = pathSimple
			out, ok = o.simpleTurn(ctx, message, heuristicLoc, found, opts.UseForecast)
		} else {
			path = pathPlain
			ex := o.GenerateResponse(ctx, message, history, false)
			out, ok = &TurnResult{Text: ex.Content, TokensUsed: ex.TokensUsed}, ex.Success
		}
	}

	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	metrics.TurnsTotal.WithLabelValues(path, outcome).Inc()

	if strings.TrimSpace(out.Text) == "" {
		out.Text = emptyReply
	}
	out.Flagged = flagged
	out.ProcessingTimeMs = millis(time.Since(start))
	return out, nil
}

func (o *Orchestrator) functionTurn(ctx context.Context, message string, history []llm.Message) (*TurnResult, bool) {
	ex := o.GenerateResponseWithFunctions(ctx, message, history)
	out := &TurnResult{Text: ex.Content, TokensUsed: ex.TokensUsed}
	if ex.WeatherData != nil {
		out.UsedWeather = true
		out.Location = ex.WeatherData.Location
	}
	return out, ex.Success
}

// simpleTurn fetches the data itself and makes the model phrase it.
func (o *Orchestrator) simpleTurn(ctx context.Context, message, heuristicLoc string, found, forecast bool) (*TurnResult, bool) {
	out := &TurnResult{}

	loc, days := heuristicLoc, simpleForecastDays
	if o.cfg.ExtractionMode == ExtractionAI {
		intent, ex, ok := o.extractIntent(ctx, message)
		out.TokensUsed += ex.TokensUsed
		if !ex.Success {
			out.Text = ex.Content
			return out, false
		}
		if !ok {
			out.Text = ClarificationPrompt
			return out, true
		}
		loc = intent.Location
		if intent.QueryType == "forecast" {
			forecast = true
			if intent.ForecastDays > 0 {
				days = clampDays(intent.ForecastDays)
			}
		}
	} else if !found {
		out.Text = ClarificationPrompt
		return out, true
	}

	block, resolved, err := o.weatherBlock(ctx, loc, forecast, days)
	if err != nil {
		out.Text = weatherFailureReply(loc, err)
		return out, errors.Is(err, weather.ErrLocationNotFound)
	}

	template := currentWeatherPrompt
	if forecast {
		template = forecastPrompt
	}
	ex := o.GenerateResponse(ctx, fmt.Sprintf(template, message, block), nil, false)
	out.Text = ex.Content
	out.TokensUsed += ex.TokensUsed
	out.UsedWeather = true
	out.Location = resolved
	return out, ex.Success
}

// weatherBlock returns the prompt block and the resolved location name.
func (o *Orchestrator) weatherBlock(ctx context.Context, loc string, forecast bool, days int) (string, string, error) {
	if forecast {
		f, err := o.weather.GetForecast(ctx, loc, days)
		if err != nil {
			return "", "", err
		}
		return weather.FormatForecastForPrompt(f), f.Location, nil
	}
	rec, err := o.weather.GetCurrentWeather(ctx, loc)
	if err != nil {
		return "", "", err
	}
	return weather.FormatForPrompt(rec), rec.Location, nil
}

func weatherFailureReply(loc string, err error) string {
	if errors.Is(err, weather.ErrLocationNotFound) {
		return fmt.Sprintf(locationNotFoundFormat, loc)
	}
	log.Printf("❌ Weather response generation error for '%s': %v", loc, err)
	return fmt.Sprintf(fetchFailedFormat, loc)
}

// queryIntent is the JSON the model is asked for in AI extraction mode.
type queryIntent struct {
	Location        string `json:"location"`
	QueryType       string `json:"query_type"`
	ForecastDays    int    `json:"forecast_days"`
	TemporalContext string `json:"temporal_context"`
}

// extractIntent asks the model for the query as JSON. ok is false when the
// call failed, the reply did not parse, or no location was named.
func (o *Orchestrator) extractIntent(ctx context.Context, message string) (queryIntent, *Exchange, bool) {
	var intent queryIntent
	ex := o.GenerateResponse(ctx, fmt.Sprintf(extractionPrompt, message), nil, false)
	if !ex.Success {
		return intent, ex, false
	}
	if !llm.ExtractJSON(ex.Content, &intent) {
		log.Printf("⚠️ Could not parse location intent from model reply: %q", ex.Content)
		return intent, ex, false
	}
	intent.Location = strings.TrimSpace(intent.Location)
	if intent.Location == "" || strings.EqualFold(intent.Location, "null") {
		return intent, ex, false
	}
	return intent, ex, true
}

func clampDays(n int) int {
	if n < 1 {
		return 1
	}
	if n > 7 {
		return 7
	}
	return n
}
