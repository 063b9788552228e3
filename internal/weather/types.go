// In file: internal/weather/types.go

// Package weather resolves free-text locations to coordinates and fetches
// normalized current and forecast conditions from Open-Meteo.
package weather

import (
	"math"
	"time"
)

// Source tags where a Result came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceAPI   Source = "api"
)

// Coordinates are decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeocodeResult is a resolved place name.
type GeocodeResult struct {
	Name       string `json:"name"`
	Country    string `json:"country,omitempty"`
	Admin1     string `json:"admin1,omitempty"`
	Admin2     string `json:"admin2,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	Population int64  `json:"population,omitempty"`
	Coordinates
}

// Conditions is the canonical snapshot of current weather at a point.
type Conditions struct {
	ObservedAt      string  `json:"observed_at,omitempty"`
	Temperature     float64 `json:"temperature"`
	FeelsLike       float64 `json:"feels_like"`
	Humidity        int     `json:"humidity"`
	Pressure        float64 `json:"pressure"`
	SurfacePressure float64 `json:"surface_pressure"`
	WindSpeed       float64 `json:"wind_speed"`
	WindDirection   int     `json:"wind_direction"`
	WindGusts       float64 `json:"wind_gusts"`
	Precipitation   float64 `json:"precipitation"`
	CloudCover      int     `json:"cloud_cover"`
	WeatherCode     int     `json:"weather_code"`
	Description     string  `json:"description"`
	Icon            string  `json:"icon"`
	IsDay           bool    `json:"is_day"`
}

// ForecastDay is one entry of a daily forecast.
type ForecastDay struct {
	Date               string  `json:"date"`
	WeatherCode        int     `json:"weather_code"`
	Description        string  `json:"description"`
	TempMax            float64 `json:"temperature_max"`
	TempMin            float64 `json:"temperature_min"`
	ApparentMax        float64 `json:"apparent_temperature_max,omitempty"`
	ApparentMin        float64 `json:"apparent_temperature_min,omitempty"`
	PrecipitationSum   float64 `json:"precipitation_sum"`
	PrecipitationHours float64 `json:"precipitation_hours,omitempty"`
	WindSpeedMax       float64 `json:"wind_speed_max,omitempty"`
	WindGustsMax       float64 `json:"wind_gusts_max,omitempty"`
	WindDirection      int     `json:"wind_direction,omitempty"`
	UVIndexMax         float64 `json:"uv_index_max,omitempty"`
}

// Record is an immutable weather snapshot for one location. Current is nil
// for forecast-only records.
type Record struct {
	Location    string        `json:"location"`
	Country     string        `json:"country,omitempty"`
	Admin1      string        `json:"admin1,omitempty"`
	Coordinates Coordinates   `json:"coordinates"`
	Timezone    string        `json:"timezone"`
	Current     *Conditions   `json:"current,omitempty"`
	Daily       []ForecastDay `json:"daily,omitempty"`
	CapturedAt  time.Time     `json:"captured_at"`
}

// Result is what GetWeatherData hands back to callers.
type Result struct {
	Record   *Record        `json:"record"`
	Source   Source         `json:"source"`
	Location string         `json:"location"`
	Geocode  *GeocodeResult `json:"geocode"`
}

// Forecast is the multi-day view returned by GetForecast.
type Forecast struct {
	Location    string        `json:"location"`
	Coordinates Coordinates   `json:"coordinates"`
	Days        []ForecastDay `json:"forecast"`
	Cached      bool          `json:"cached"`
	RetrievedAt time.Time     `json:"retrieved_at"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
