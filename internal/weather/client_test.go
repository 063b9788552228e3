package weather_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/weatherbot/internal/cache"
	"github.com/dileep-u-k/weatherbot/internal/weather"
)

// fakeOpenMeteo serves canned geocoding and forecast payloads and counts calls.
type fakeOpenMeteo struct {
	srv            *httptest.Server
	geocodeCalls   atomic.Int32
	forecastCalls  atomic.Int32
	forecastStatus int
	lastDays       atomic.Value
}

func newFakeOpenMeteo(t *testing.T) *fakeOpenMeteo {
	t.Helper()
	f := &fakeOpenMeteo{forecastStatus: http.StatusOK}
	f.lastDays.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("/geo/v1/search", func(w http.ResponseWriter, r *http.Request) {
		f.geocodeCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch strings.ToLower(r.URL.Query().Get("name")) {
		case "madrid":
			fmt.Fprint(w, `{"results":[{"name":"Madrid","latitude":40.4168,"longitude":-3.7038,"country":"España","admin1":"Madrid","timezone":"Europe/Madrid","population":3255944}]}`)
		case "barcelona":
			fmt.Fprint(w, `{"results":[{"name":"Barcelona","latitude":41.3888,"longitude":2.159,"country":"España","timezone":"Europe/Madrid"}]}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		f.forecastCalls.Add(1)
		if f.forecastStatus != http.StatusOK {
			http.Error(w, "upstream unavailable", f.forecastStatus)
			return
		}
		q := r.URL.Query()
		f.lastDays.Store(q.Get("forecast_days"))

		w.Header().Set("Content-Type", "application/json")
		body := `{"timezone":"Europe/Madrid"`
		if q.Get("current") != "" {
			body += `,"current":{"time":"2025-06-24T12:00","temperature_2m":21.46,"relative_humidity_2m":45,"apparent_temperature":20.9,"is_day":1,"precipitation":0,"weather_code":2,"cloud_cover":40,"pressure_msl":1016.2,"surface_pressure":940.1,"wind_speed_10m":12.3,"wind_direction_10m":270,"wind_gusts_10m":20.5}`
		}
		if q.Get("daily") != "" {
			days, _ := strconv.Atoi(q.Get("forecast_days"))
			var dates, codes, maxes, mins, rain []string
			for i := 0; i < days; i++ {
				dates = append(dates, fmt.Sprintf(`"2025-06-%02d"`, 24+i))
				codes = append(codes, "61")
				maxes = append(maxes, "28.0")
				mins = append(mins, "16.0")
				rain = append(rain, "null")
			}
			body += fmt.Sprintf(`,"daily":{"time":[%s],"weather_code":[%s],"temperature_2m_max":[%s],"temperature_2m_min":[%s],"precipitation_sum":[%s]}`,
				strings.Join(dates, ","), strings.Join(codes, ","), strings.Join(maxes, ","), strings.Join(mins, ","), strings.Join(rain, ","))
		}
		fmt.Fprint(w, body+"}")
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOpenMeteo) client(store weather.Cache) *weather.Client {
	return weather.NewClient(weather.Config{
		BaseURL:      f.srv.URL + "/v1",
		GeocodingURL: f.srv.URL + "/geo/v1",
	}, store, cache.NewMemoryGeocodeCache())
}

func TestGetWeatherDataFetchesThenServesFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	first, err := c.GetWeatherData(ctx, "Madrid", true, 3)
	require.NoError(t, err)
	assert.Equal(t, weather.SourceAPI, first.Source)
	assert.Equal(t, "Madrid", first.Location)
	require.NotNil(t, first.Record.Current)
	assert.Equal(t, 21.5, first.Record.Current.Temperature)
	assert.Equal(t, "Parcialmente nublado", first.Record.Current.Description)
	assert.True(t, first.Record.Current.IsDay)
	require.Len(t, first.Record.Daily, 3)
	assert.Equal(t, "Lluvia ligera", first.Record.Daily[0].Description)
	assert.Equal(t, 0.0, first.Record.Daily[0].PrecipitationSum)

	second, err := c.GetWeatherData(ctx, "madrid", true, 3)
	require.NoError(t, err)
	assert.Equal(t, weather.SourceCache, second.Source)
	assert.Equal(t, first.Record.Current.Temperature, second.Record.Current.Temperature)

	assert.Equal(t, int32(1), f.forecastCalls.Load(), "second call must not reach the forecast API")
	assert.Equal(t, int32(1), f.geocodeCalls.Load(), "geocode result must be cached")
	assert.InDelta(t, 0.5, c.HitRate(), 0.0001)
}

func TestForecastEntriesDoNotShadowCurrentWeather(t *testing.T) {
	ctx := context.Background()
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	_, err := c.GetWeatherData(ctx, "Madrid", false, 0)
	require.NoError(t, err)
	_, err = c.GetForecast(ctx, "Madrid", 5)
	require.NoError(t, err)
	require.Equal(t, int32(2), f.forecastCalls.Load())

	again, err := c.GetWeatherData(ctx, "Madrid", false, 0)
	require.NoError(t, err)
	assert.Equal(t, weather.SourceCache, again.Source)
	assert.Equal(t, int32(2), f.forecastCalls.Load())
}

func TestGetWeatherDataRefetchesWhenCachedForecastIsShorter(t *testing.T) {
	ctx := context.Background()
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	_, err := c.GetWeatherData(ctx, "Madrid", false, 0)
	require.NoError(t, err)

	res, err := c.GetWeatherData(ctx, "Madrid", true, 5)
	require.NoError(t, err)
	assert.Equal(t, weather.SourceAPI, res.Source)
	assert.Len(t, res.Record.Daily, 5)
	assert.Equal(t, int32(2), f.forecastCalls.Load())
}

func TestGetWeatherDataClampsForecastDays(t *testing.T) {
	ctx := context.Background()
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	res, err := c.GetWeatherData(ctx, "Barcelona", true, 12)
	require.NoError(t, err)
	assert.Equal(t, "7", f.lastDays.Load())
	assert.Len(t, res.Record.Daily, 7)
}

func TestGetWeatherDataUnknownLocation(t *testing.T) {
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	_, err := c.GetWeatherData(context.Background(), "Atlantis", true, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, weather.ErrLocationNotFound))
	assert.Equal(t, int32(0), f.forecastCalls.Load())
}

func TestGetWeatherDataProviderFailure(t *testing.T) {
	f := newFakeOpenMeteo(t)
	f.forecastStatus = http.StatusServiceUnavailable
	c := f.client(cache.NewMemoryStore())

	_, err := c.GetWeatherData(context.Background(), "Madrid", true, 3)
	require.Error(t, err)

	var pe *weather.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
	assert.Equal(t, int32(1), f.forecastCalls.Load(), "failures are not retried")
}

func TestGeocodeStripsCountrySuffix(t *testing.T) {
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	geo, err := c.Geocode(context.Background(), "Madrid, Spain")
	require.NoError(t, err)
	assert.Equal(t, "Madrid", geo.Name)
	assert.InDelta(t, 40.4168, geo.Latitude, 0.0001)
}

func TestGetForecastIsCachedByHorizon(t *testing.T) {
	ctx := context.Background()
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	fc, err := c.GetForecast(ctx, "Madrid", 10)
	require.NoError(t, err)
	assert.False(t, fc.Cached)
	assert.Len(t, fc.Days, 10)

	fc, err = c.GetForecast(ctx, "Madrid", 10)
	require.NoError(t, err)
	assert.True(t, fc.Cached)
	assert.Equal(t, int32(1), f.forecastCalls.Load())

	_, err = c.GetForecast(ctx, "Madrid", 40)
	require.NoError(t, err)
	assert.Equal(t, "16", f.lastDays.Load())
}

func TestSearchLocations(t *testing.T) {
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	results, err := c.SearchLocations(context.Background(), "Barcelona")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Barcelona", results[0].Name)

	results, err = c.SearchLocations(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHealthCheck(t *testing.T) {
	f := newFakeOpenMeteo(t)
	c := f.client(cache.NewMemoryStore())

	h := c.HealthCheck(context.Background())
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "connected", h.APIStatus)
	require.NotNil(t, h.Cache)

	f.forecastStatus = http.StatusBadGateway
	h = c.HealthCheck(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, http.StatusBadGateway, h.StatusCode)

	f.srv.Close()
	h = c.HealthCheck(context.Background())
	assert.Equal(t, "unhealthy", h.Status)
	assert.Equal(t, "disconnected", h.APIStatus)

	payload, err := json.Marshal(h)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), f.srv.URL, "transport detail stays in the logs")
}

func TestClearLocationCache(t *testing.T) {
	ctx := context.Background()
	f := newFakeOpenMeteo(t)
	store := cache.NewMemoryStore()
	c := f.client(store)

	_, err := c.GetWeatherData(ctx, "Madrid", true, 3)
	require.NoError(t, err)

	removed, err := c.ClearLocationCache(ctx, "mad")
	require.NoError(t, err)
	assert.True(t, removed)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}

func TestFormatForAI(t *testing.T) {
	res := &weather.Result{
		Location: "Barcelona",
		Record: &weather.Record{
			Location: "Barcelona",
			Current: &weather.Conditions{
				Temperature: 22.5, FeelsLike: 23.1, Humidity: 60,
				Description: weather.Describe(1), WindSpeed: 8, Pressure: 1012,
			},
			Daily: []weather.ForecastDay{
				{Date: "2025-06-24", Description: "Despejado", TempMax: 27, TempMin: 18},
				{Date: "2025-06-25", Description: "Lluvia ligera", TempMax: 24, TempMin: 17, PrecipitationSum: 2.4},
				{Date: "2025-06-26", Description: "Nublado", TempMax: 23, TempMin: 16},
				{Date: "2025-06-27", Description: "Tormenta", TempMax: 21, TempMin: 15},
			},
			CapturedAt: time.Date(2025, 6, 24, 14, 30, 0, 0, time.UTC),
		},
	}

	out := weather.FormatForAI(res)
	assert.Contains(t, out, "📍 **Barcelona**")
	assert.Contains(t, out, "Temperatura: 22.5°C (sensación térmica: 23.1°C)")
	assert.Contains(t, out, "Lluvia: 2.4 mm")
	assert.Contains(t, out, "14:30 hrs")
	assert.NotContains(t, out, "Tormenta", "only three forecast days are rendered")

	assert.Equal(t, "Error al obtener datos meteorológicos.", weather.FormatForAI(nil))
}

func TestFormatForPrompt(t *testing.T) {
	out := weather.FormatForPrompt(&weather.Record{
		Location:    "Madrid",
		Country:     "España",
		Coordinates: weather.Coordinates{Latitude: 40.4168, Longitude: -3.7038},
		Current:     &weather.Conditions{Temperature: 30.2, Description: "Despejado", IsDay: true},
	})
	assert.Contains(t, out, "Ubicación: Madrid, España")
	assert.Contains(t, out, "Temperatura actual: 30.2°C")
	assert.Contains(t, out, "Es de día: Sí")
	assert.Contains(t, out, "Coordenadas: 40.4168, -3.7038")
}
