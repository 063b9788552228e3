// In file: internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/version"
	"github.com/dileep-u-k/weatherbot/internal/weather"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps every entry as a JSON field of one hash, keyed by a
// monotonically increasing sequence number that doubles as recency. A sorted
// set scores each sequence by its expiry in milliseconds, so lookups only
// fetch and decode entries that are still valid. Expired entries stay in the
// hash until CleanupExpired removes them.
type RedisStore struct {
	rdb        *redis.Client
	entriesKey string
	expiryKey  string
	seqKey     string
	now        func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) *RedisStore {
	ns := version.Namespace("weathercache")
	return &RedisStore{
		rdb:        rdb,
		entriesKey: ns + ":entries",
		expiryKey:  ns + ":expiry",
		seqKey:     ns + ":seq",
		now:        time.Now,
	}
}

func decodeEntry(field, val string) (*entry, bool) {
	var e entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		log.Printf("Skipping undecodable cache entry %s: %v", field, err)
		return nil, false
	}
	return &e, true
}

// load decodes every entry, expired ones included.
func (s *RedisStore) load(ctx context.Context) ([]*entry, error) {
	raw, err := s.rdb.HGetAll(ctx, s.entriesKey).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]*entry, 0, len(raw))
	for field, val := range raw {
		if e, ok := decodeEntry(field, val); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// live decodes only the entries whose expiry is still ahead of now.
func (s *RedisStore) live(ctx context.Context, now time.Time) ([]*entry, error) {
	seqs, err := s.rdb.ZRangeByScore(ctx, s.expiryKey, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.entriesKey, seqs...).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]*entry, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		if e, ok := decodeEntry(seqs[i], raw); ok && e.valid(now) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// newest returns the valid entry with the highest sequence that matches.
func (s *RedisStore) newest(ctx context.Context, match func(*entry) bool) (*weather.Record, error) {
	entries, err := s.live(ctx, s.now())
	if err != nil {
		return nil, err
	}
	var best *entry
	for _, e := range entries {
		if !match(e) {
			continue
		}
		if best == nil || e.Seq > best.Seq {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	return best.Record, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*weather.Record, error) {
	return s.newest(ctx, func(e *entry) bool { return e.Key == key })
}

func (s *RedisStore) GetByCoordinates(ctx context.Context, lat, lon, tolerance float64) (*weather.Record, error) {
	return s.newest(ctx, func(e *entry) bool {
		return e.near(lat, lon, tolerance) && !weather.IsForecastKey(e.Key)
	})
}

func (s *RedisStore) Put(ctx context.Context, key string, lat, lon float64, rec *weather.Record, ttl time.Duration) error {
	seq, err := s.rdb.Incr(ctx, s.seqKey).Result()
	if err != nil {
		return fmt.Errorf("allocate cache sequence: %w", err)
	}
	e := &entry{
		Key:       key,
		Latitude:  lat,
		Longitude: lon,
		Record:    rec,
		ExpiresAt: s.now().Add(ttl),
		Seq:       seq,
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	field := strconv.FormatInt(seq, 10)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.entriesKey, field, data)
		pipe.ZAdd(ctx, s.expiryKey, redis.Z{Score: float64(e.ExpiresAt.UnixMilli()), Member: field})
		return nil
	})
	return err
}

func (s *RedisStore) ClearAll(ctx context.Context) (int, error) {
	pipe := s.rdb.TxPipeline()
	n := pipe.HLen(ctx, s.entriesKey)
	pipe.Del(ctx, s.entriesKey, s.expiryKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(n.Val()), nil
}

func (s *RedisStore) ClearByLocationSubstring(ctx context.Context, text string) (bool, error) {
	needle := strings.ToLower(text)
	n, err := s.removeWhere(ctx, func(e *entry) bool {
		return strings.Contains(strings.ToLower(e.Key), needle)
	})
	return n > 0, err
}

func (s *RedisStore) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()
	return s.removeWhere(ctx, func(e *entry) bool { return !e.valid(now) })
}

func (s *RedisStore) removeWhere(ctx context.Context, match func(*entry) bool) (int, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	var fields []string
	var members []any
	for _, e := range entries {
		if match(e) {
			field := strconv.FormatInt(e.Seq, 10)
			fields = append(fields, field)
			members = append(members, field)
		}
	}
	if len(fields) == 0 {
		return 0, nil
	}

	var removed *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, s.entriesKey, fields...)
		pipe.ZRem(ctx, s.expiryKey, members...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(removed.Val()), nil
}

func (s *RedisStore) Stats(ctx context.Context) (weather.CacheStats, error) {
	entries, err := s.load(ctx)
	if err != nil {
		return weather.CacheStats{}, err
	}
	return summarize(entries, s.now()), nil
}
