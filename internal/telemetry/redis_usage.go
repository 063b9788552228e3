// In file: internal/telemetry/redis_usage.go
package telemetry

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/dileep-u-k/weatherbot/internal/version"

	"github.com/redis/go-redis/v9"
)

const maxUsageTxRetries = 5

// RedisUsage keeps the counters in a redis hash so that several replicas
// report one set of numbers.
type RedisUsage struct {
	rdb *redis.Client
	key string
	now func() time.Time
}

var _ UsageRecorder = (*RedisUsage)(nil)

// NewRedisUsage stores counters under "usage:<version>:<name>".
func NewRedisUsage(rdb *redis.Client, name string) *RedisUsage {
	return &RedisUsage{
		rdb: rdb,
		key: version.Namespace("usage") + ":" + name,
		now: time.Now,
	}
}

// Record updates all counters and the average inside one WATCH transaction,
// retrying when another writer touched the hash first.
func (r *RedisUsage) Record(ctx context.Context, success bool, latency time.Duration) {
	outcome := "failed_requests"
	if success {
		outcome = "successful_requests"
	}

	update := func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, r.key, "total_requests", "average_response_time").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		total := parseInt(vals[0]) + 1
		avg := movingAverage(parseFloat(vals[1]), total, millis(latency))

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, r.key, "total_requests", 1)
			pipe.HIncrBy(ctx, r.key, outcome, 1)
			pipe.HSet(ctx, r.key, "average_response_time", strconv.FormatFloat(avg, 'f', -1, 64))
			pipe.HSet(ctx, r.key, "last_request_time", r.now().UTC().Format(time.RFC3339Nano))
			return nil
		})
		return err
	}

	for i := 0; i < maxUsageTxRetries; i++ {
		err := r.rdb.Watch(ctx, update, r.key)
		if err == nil {
			return
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		log.Printf("Error recording usage in %s: %v", r.key, err)
		return
	}
	log.Printf("Error recording usage in %s: too many concurrent writers", r.key)
}

func (r *RedisUsage) Stats(ctx context.Context) (UsageStats, error) {
	data, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return UsageStats{}, err
	}
	stats := UsageStats{}
	stats.TotalRequests, _ = strconv.ParseInt(data["total_requests"], 10, 64)
	stats.SuccessfulRequests, _ = strconv.ParseInt(data["successful_requests"], 10, 64)
	stats.FailedRequests, _ = strconv.ParseInt(data["failed_requests"], 10, 64)
	stats.AverageResponseTime, _ = strconv.ParseFloat(data["average_response_time"], 64)
	stats.LastRequestTime, _ = time.Parse(time.RFC3339Nano, data["last_request_time"])
	return stats, nil
}

// Reset removes the hash.
func (r *RedisUsage) Reset(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}

func parseInt(v any) int64 {
	s, _ := v.(string)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(v any) float64 {
	s, _ := v.(string)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
