// In file: internal/tools/weather_tool.go
package tools

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/weather"
)

const (
	WeatherFunctionName = "get_weather_data"

	defaultForecastDays = 3
	maxForecastDays     = 7
)

// WeatherFetcher is the slice of the weather client the tool needs.
type WeatherFetcher interface {
	GetWeatherData(ctx context.Context, location string, includeForecast bool, forecastDays int) (*weather.Result, error)
}

// WeatherTool exposes the weather client to the model as get_weather_data.
type WeatherTool struct {
	fetcher WeatherFetcher
}

var _ ToolExecutor = (*WeatherTool)(nil)

func NewWeatherTool(fetcher WeatherFetcher) *WeatherTool {
	return &WeatherTool{fetcher: fetcher}
}

func (wt *WeatherTool) Definition() Tool {
	minDays, maxDays := 1.0, float64(maxForecastDays)
	return NewFunctionTool(
		WeatherFunctionName,
		"Obtener datos meteorológicos actuales y de pronóstico para una ubicación específica",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"location": {
					Type:        "string",
					Description: "Nombre de la ciudad, coordenadas o dirección",
				},
				"include_forecast": {
					Type:        "boolean",
					Description: "Si incluir datos de pronóstico",
					Default:     true,
				},
				"forecast_days": {
					Type:        "integer",
					Description: "Número de días de pronóstico (1-7)",
					Minimum:     &minDays,
					Maximum:     &maxDays,
					Default:     defaultForecastDays,
				},
			},
			Required: []string{"location"},
		},
	)
}

// WeatherArgs are the decoded get_weather_data arguments with defaults applied.
type WeatherArgs struct {
	Location        string
	IncludeForecast bool
	ForecastDays    int
}

// ParseWeatherArgs applies defaults (forecast on, 3 days) and clamps the
// day count to 1..7. A blank location is ErrMissingArgument.
func ParseWeatherArgs(args map[string]any) (WeatherArgs, error) {
	out := WeatherArgs{IncludeForecast: true, ForecastDays: defaultForecastDays}

	loc, _ := args["location"].(string)
	out.Location = strings.TrimSpace(loc)
	if out.Location == "" {
		return out, fmt.Errorf("%w: location", ErrMissingArgument)
	}

	switch v := args["include_forecast"].(type) {
	case bool:
		out.IncludeForecast = v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			out.IncludeForecast = b
		}
	}

	switch v := args["forecast_days"].(type) {
	case float64:
		out.ForecastDays = int(v)
	case int:
		out.ForecastDays = v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			out.ForecastDays = n
		}
	}
	if out.ForecastDays < 1 {
		out.ForecastDays = 1
	}
	if out.ForecastDays > maxForecastDays {
		out.ForecastDays = maxForecastDays
	}
	return out, nil
}

// Execute fetches weather for the requested location. Failures come back as
// a failed Result together with the underlying error, so callers can tell a
// missing location from an upstream outage with errors.Is/As.
func (wt *WeatherTool) Execute(ctx context.Context, arguments string) (*Result, error) {
	call := &ToolCall{Function: ToolCallFunction{Name: WeatherFunctionName, Arguments: arguments}}
	raw, err := call.Args()
	if err != nil {
		return Failure(WeatherFunctionName, err), err
	}
	args, err := ParseWeatherArgs(raw)
	if err != nil {
		log.Printf("❌ Weather function error: %v", err)
		return Failure(WeatherFunctionName, err), err
	}

	res, err := wt.fetcher.GetWeatherData(ctx, args.Location, args.IncludeForecast, args.ForecastDays)
	if err != nil {
		log.Printf("❌ Weather function error for '%s': %v", args.Location, err)
		return Failure(WeatherFunctionName, err), err
	}

	return &Result{
		Success:      true,
		Data:         res,
		Summary:      weather.FormatForAI(res),
		FunctionName: WeatherFunctionName,
		ExecutedAt:   time.Now().UTC(),
	}, nil
}
