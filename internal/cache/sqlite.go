// In file: internal/cache/sqlite.go
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/weather"

	_ "modernc.org/sqlite"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Weather cache table",
		SQL: `
CREATE TABLE IF NOT EXISTS weather_cache (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    location TEXT NOT NULL,
    location_lc TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    weather_data TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_weather_cache_location ON weather_cache(location);
CREATE INDEX IF NOT EXISTS idx_weather_cache_coords ON weather_cache(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_weather_cache_expires ON weather_cache(expires_at);
`,
	},
}

// SQLiteStore persists cache entries in a weather_cache table. Timestamps are
// unix nanoseconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	s := NewSQLiteStore(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate applies pending migrations in order.
func (s *SQLiteStore) Migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    description TEXT,
    applied_at DATETIME
)`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*weather.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT weather_data FROM weather_cache
		WHERE location = ? AND expires_at > ?
		ORDER BY id DESC LIMIT 1
	`, key, s.now().UnixNano())
	return scanRecord(row)
}

func (s *SQLiteStore) GetByCoordinates(ctx context.Context, lat, lon, tolerance float64) (*weather.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT weather_data FROM weather_cache
		WHERE latitude >= ? AND latitude <= ?
		  AND longitude >= ? AND longitude <= ?
		  AND expires_at > ?
		  AND location NOT LIKE ?
		ORDER BY id DESC LIMIT 1
	`, lat-tolerance, lat+tolerance, lon-tolerance, lon+tolerance, s.now().UnixNano(), weather.ForecastKeyPrefix+"%")
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (*weather.Record, error) {
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec weather.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("decode cached weather: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, lat, lon float64, rec *weather.Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode weather record: %w", err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weather_cache (location, location_lc, latitude, longitude, weather_data, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, key, strings.ToLower(key), lat, lon, string(data), now.Add(ttl).UnixNano(), now.UnixNano())
	return err
}

func (s *SQLiteStore) ClearAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weather_cache`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) ClearByLocationSubstring(ctx context.Context, text string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weather_cache WHERE instr(location_lc, ?) > 0`, strings.ToLower(text))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) CleanupExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weather_cache WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Stats(ctx context.Context) (weather.CacheStats, error) {
	var stats weather.CacheStats
	now := s.now().UnixNano()
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0)
		FROM weather_cache
	`, now).Scan(&stats.Total, &stats.Valid)
	if err != nil {
		return stats, err
	}
	stats.Expired = stats.Total - stats.Valid

	rows, err := s.db.QueryContext(ctx, `
		SELECT location FROM weather_cache
		GROUP BY location
		ORDER BY COUNT(*) DESC, location ASC
		LIMIT ?
	`, topLocationsLimit)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	stats.TopLocations = []string{}
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return stats, err
		}
		stats.TopLocations = append(stats.TopLocations, loc)
	}
	return stats, rows.Err()
}
