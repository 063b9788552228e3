// In file: internal/weather/openmeteo.go
package weather

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Field lists requested from the forecast endpoint.
var (
	currentFields = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"apparent_temperature",
		"is_day",
		"precipitation",
		"weather_code",
		"cloud_cover",
		"pressure_msl",
		"surface_pressure",
		"wind_speed_10m",
		"wind_direction_10m",
		"wind_gusts_10m",
	}

	dailyFields = []string{
		"weather_code",
		"temperature_2m_max",
		"temperature_2m_min",
		"apparent_temperature_max",
		"apparent_temperature_min",
		"precipitation_sum",
		"precipitation_hours",
		"wind_speed_10m_max",
		"wind_gusts_10m_max",
		"wind_direction_10m_dominant",
		"uv_index_max",
	}

	slimDailyFields = []string{
		"temperature_2m_max",
		"temperature_2m_min",
		"weather_code",
		"precipitation_sum",
	}
)

type geocodingResponse struct {
	Results []struct {
		Name       string  `json:"name"`
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
		Country    string  `json:"country"`
		Admin1     string  `json:"admin1"`
		Admin2     string  `json:"admin2"`
		Timezone   string  `json:"timezone"`
		Population int64   `json:"population"`
	} `json:"results"`
}

func (r *geocodingResponse) toResults() []GeocodeResult {
	out := make([]GeocodeResult, 0, len(r.Results))
	for _, g := range r.Results {
		out = append(out, GeocodeResult{
			Name:        g.Name,
			Country:     g.Country,
			Admin1:      g.Admin1,
			Admin2:      g.Admin2,
			Timezone:    g.Timezone,
			Population:  g.Population,
			Coordinates: Coordinates{Latitude: g.Latitude, Longitude: g.Longitude},
		})
	}
	return out
}

type currentBlock struct {
	Time                string  `json:"time"`
	Temperature         float64 `json:"temperature_2m"`
	RelativeHumidity    float64 `json:"relative_humidity_2m"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	IsDay               float64 `json:"is_day"`
	Precipitation       float64 `json:"precipitation"`
	WeatherCode         float64 `json:"weather_code"`
	CloudCover          float64 `json:"cloud_cover"`
	PressureMSL         float64 `json:"pressure_msl"`
	SurfacePressure     float64 `json:"surface_pressure"`
	WindSpeed           float64 `json:"wind_speed_10m"`
	WindDirection       float64 `json:"wind_direction_10m"`
	WindGusts           float64 `json:"wind_gusts_10m"`
}

// Daily arrays may carry nulls, hence the pointers.
type dailyBlock struct {
	Time               []string   `json:"time"`
	WeatherCode        []*float64 `json:"weather_code"`
	TempMax            []*float64 `json:"temperature_2m_max"`
	TempMin            []*float64 `json:"temperature_2m_min"`
	ApparentMax        []*float64 `json:"apparent_temperature_max"`
	ApparentMin        []*float64 `json:"apparent_temperature_min"`
	PrecipitationSum   []*float64 `json:"precipitation_sum"`
	PrecipitationHours []*float64 `json:"precipitation_hours"`
	WindSpeedMax       []*float64 `json:"wind_speed_10m_max"`
	WindGustsMax       []*float64 `json:"wind_gusts_10m_max"`
	WindDirection      []*float64 `json:"wind_direction_10m_dominant"`
	UVIndexMax         []*float64 `json:"uv_index_max"`
}

type forecastResponse struct {
	Timezone string        `json:"timezone"`
	Current  *currentBlock `json:"current"`
	Daily    *dailyBlock   `json:"daily"`
}

func geocodingURL(base, name string, count int) string {
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", strconv.Itoa(count))
	q.Set("language", "es")
	q.Set("format", "json")
	return strings.TrimRight(base, "/") + "/search?" + q.Encode()
}

func forecastURL(base string, c Coordinates, current, daily []string, days int) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	if len(current) > 0 {
		q.Set("current", strings.Join(current, ","))
	}
	if len(daily) > 0 {
		q.Set("daily", strings.Join(daily, ","))
		q.Set("forecast_days", strconv.Itoa(days))
	}
	q.Set("timezone", "auto")
	return strings.TrimRight(base, "/") + "/forecast?" + q.Encode()
}

func at(xs []*float64, i int) float64 {
	if i < len(xs) && xs[i] != nil {
		return *xs[i]
	}
	return 0
}

func (c *currentBlock) normalize() *Conditions {
	code := int(c.WeatherCode)
	return &Conditions{
		ObservedAt:      c.Time,
		Temperature:     round1(c.Temperature),
		FeelsLike:       round1(c.ApparentTemperature),
		Humidity:        int(c.RelativeHumidity + 0.5),
		Pressure:        round1(c.PressureMSL),
		SurfacePressure: round1(c.SurfacePressure),
		WindSpeed:       round1(c.WindSpeed),
		WindDirection:   int(c.WindDirection),
		WindGusts:       round1(c.WindGusts),
		Precipitation:   c.Precipitation,
		CloudCover:      int(c.CloudCover),
		WeatherCode:     code,
		Description:     Describe(code),
		Icon:            Icon(code),
		IsDay:           c.IsDay == 1,
	}
}

func (d *dailyBlock) normalize() []ForecastDay {
	days := make([]ForecastDay, 0, len(d.Time))
	for i, date := range d.Time {
		code := int(at(d.WeatherCode, i))
		days = append(days, ForecastDay{
			Date:               date,
			WeatherCode:        code,
			Description:        Describe(code),
			TempMax:            round1(at(d.TempMax, i)),
			TempMin:            round1(at(d.TempMin, i)),
			ApparentMax:        round1(at(d.ApparentMax, i)),
			ApparentMin:        round1(at(d.ApparentMin, i)),
			PrecipitationSum:   round1(at(d.PrecipitationSum, i)),
			PrecipitationHours: at(d.PrecipitationHours, i),
			WindSpeedMax:       round1(at(d.WindSpeedMax, i)),
			WindGustsMax:       round1(at(d.WindGustsMax, i)),
			WindDirection:      int(at(d.WindDirection, i)),
			UVIndexMax:         at(d.UVIndexMax, i),
		})
	}
	return days
}

func (r *forecastResponse) toRecord(geo *GeocodeResult, now time.Time) *Record {
	rec := &Record{
		Location:    geo.Name,
		Country:     geo.Country,
		Admin1:      geo.Admin1,
		Coordinates: geo.Coordinates,
		Timezone:    r.Timezone,
		CapturedAt:  now,
	}
	if rec.Timezone == "" {
		rec.Timezone = "UTC"
	}
	if r.Current != nil {
		rec.Current = r.Current.normalize()
	}
	if r.Daily != nil {
		rec.Daily = r.Daily.normalize()
	}
	return rec
}
