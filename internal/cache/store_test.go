package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/weatherbot/internal/weather"
)

func setupSQLite(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupRedis(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb)
}

var backends = []struct {
	name  string
	setup func(t *testing.T) Store
}{
	{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
	{"sqlite", setupSQLite},
	{"redis", setupRedis},
}

func madridRecord(temp float64) *weather.Record {
	return &weather.Record{
		Location:    "Madrid",
		Country:     "España",
		Coordinates: weather.Coordinates{Latitude: 40.4168, Longitude: -3.7038},
		Timezone:    "Europe/Madrid",
		Current:     &weather.Conditions{Temperature: temp, Description: weather.Describe(0)},
		CapturedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestStoreCoordinateRoundTrip(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.setup(t)

			rec := madridRecord(21.5)
			require.NoError(t, s.Put(ctx, "Madrid", 40.4168, -3.7038, rec, 15*time.Minute))

			got, err := s.GetByCoordinates(ctx, 40.4170, -3.7035, 0.01)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Madrid", got.Location)
			assert.Equal(t, 21.5, got.Current.Temperature)

			miss, err := s.GetByCoordinates(ctx, 41.0, -3.0, 0.01)
			require.NoError(t, err)
			assert.Nil(t, miss)
		})
	}
}

func TestStoreZeroTTLIsNeverReturned(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.setup(t)

			require.NoError(t, s.Put(ctx, "Madrid", 40.4168, -3.7038, madridRecord(20), 0))

			got, err := s.GetByCoordinates(ctx, 40.4168, -3.7038, 0.01)
			require.NoError(t, err)
			assert.Nil(t, got)

			byKey, err := s.Get(ctx, "Madrid")
			require.NoError(t, err)
			assert.Nil(t, byKey)
		})
	}
}

func TestStorePrefersMostRecent(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.setup(t)

			require.NoError(t, s.Put(ctx, "Madrid", 40.4168, -3.7038, madridRecord(18), time.Hour))
			require.NoError(t, s.Put(ctx, "Madrid", 40.4169, -3.7037, madridRecord(24), time.Hour))

			got, err := s.GetByCoordinates(ctx, 40.4168, -3.7038, 0.01)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, 24.0, got.Current.Temperature)

			byKey, err := s.Get(ctx, "Madrid")
			require.NoError(t, err)
			require.NotNil(t, byKey)
			assert.Equal(t, 24.0, byKey.Current.Temperature)
		})
	}
}

func TestStoreCoordinateLookupSkipsForecastEntries(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.setup(t)

			require.NoError(t, s.Put(ctx, "Madrid", 40.4168, -3.7038, madridRecord(21), time.Hour))
			daily := &weather.Record{Location: "Madrid", Daily: []weather.ForecastDay{{Date: "2025-06-24"}}}
			require.NoError(t, s.Put(ctx, weather.ForecastKeyPrefix+"madrid|5", 40.4168, -3.7038, daily, time.Hour))

			got, err := s.GetByCoordinates(ctx, 40.4168, -3.7038, 0.01)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.NotNil(t, got.Current)
			assert.Equal(t, 21.0, got.Current.Temperature)

			forecast, err := s.Get(ctx, weather.ForecastKeyPrefix+"madrid|5")
			require.NoError(t, err)
			require.NotNil(t, forecast)
			assert.Len(t, forecast.Daily, 1)
		})
	}
}

func TestRedisStoreTracksExpiryIndex(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb)

	require.NoError(t, s.Put(ctx, "Madrid", 40.4168, -3.7038, madridRecord(20), time.Hour))
	require.NoError(t, s.Put(ctx, "Lima", -12.04, -77.03, madridRecord(17), -time.Minute))

	members, err := mr.ZMembers(s.expiryKey)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	live, err := s.live(ctx, s.now())
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "Madrid", live[0].Key)

	n, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	members, err = mr.ZMembers(s.expiryKey)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, err = s.ClearAll(ctx)
	require.NoError(t, err)
	assert.False(t, mr.Exists(s.expiryKey))
}

func TestStoreClearByLocationSubstringIsCaseInsensitive(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.setup(t)

			require.NoError(t, s.Put(ctx, "Madrid", 40.4168, -3.7038, madridRecord(20), time.Hour))
			require.NoError(t, s.Put(ctx, "forecast|madrid|5", 40.4168, -3.7038, madridRecord(20), time.Hour))
			require.NoError(t, s.Put(ctx, "Bogotá", 4.61, -74.08, madridRecord(14), time.Hour))

			removed, err := s.ClearByLocationSubstring(ctx, "MADRID")
			require.NoError(t, err)
			assert.True(t, removed)

			got, err := s.GetByCoordinates(ctx, 40.4168, -3.7038, 0.01)
			require.NoError(t, err)
			assert.Nil(t, got)

			other, err := s.GetByCoordinates(ctx, 4.61, -74.08, 0.01)
			require.NoError(t, err)
			assert.NotNil(t, other)

			removed, err = s.ClearByLocationSubstring(ctx, "Lima")
			require.NoError(t, err)
			assert.False(t, removed)
		})
	}
}

func TestStoreCleanupAndStats(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.setup(t)

			require.NoError(t, s.Put(ctx, "Madrid", 40.4168, -3.7038, madridRecord(20), time.Hour))
			require.NoError(t, s.Put(ctx, "Madrid", 40.4168, -3.7038, madridRecord(19), time.Hour))
			require.NoError(t, s.Put(ctx, "Lima", -12.04, -77.03, madridRecord(17), -time.Minute))

			stats, err := s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, stats.Total)
			assert.Equal(t, 2, stats.Valid)
			assert.Equal(t, 1, stats.Expired)
			require.NotEmpty(t, stats.TopLocations)
			assert.Equal(t, "Madrid", stats.TopLocations[0])

			n, err := s.CleanupExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			n, err = s.ClearAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			stats, err = s.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, stats.Total)
		})
	}
}

func TestMemoryGeocodeCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryGeocodeCache()
	now := time.Date(2025, 6, 24, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	res := &weather.GeocodeResult{Name: "Madrid", Coordinates: weather.Coordinates{Latitude: 40.4168, Longitude: -3.7038}}
	c.Set(ctx, "madrid", res, time.Hour)

	got, ok := c.Get(ctx, "madrid")
	require.True(t, ok)
	assert.Equal(t, "Madrid", got.Name)

	now = now.Add(2 * time.Hour)
	_, ok = c.Get(ctx, "madrid")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestRedisGeocodeCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewRedisGeocodeCache(rdb)
	_, ok := c.Get(ctx, "bogotá")
	assert.False(t, ok)

	c.Set(ctx, "bogotá", &weather.GeocodeResult{Name: "Bogotá", Country: "Colombia"}, time.Hour)
	got, ok := c.Get(ctx, "bogotá")
	require.True(t, ok)
	assert.Equal(t, "Colombia", got.Country)

	mr.FastForward(2 * time.Hour)
	_, ok = c.Get(ctx, "bogotá")
	assert.False(t, ok)
}
