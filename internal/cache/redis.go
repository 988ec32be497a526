// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"verdant/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Package-level client backing the key helpers in inventory.go. Nil when
// Redis is unreachable; every helper degrades to a no-op then.
var client *redis.Client

// metricsHook feeds the Redis error counter. Cache misses (redis.Nil) are
// normal operation, not errors.
type metricsHook struct{}

func countRedisError(label string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.RedisErrors.WithLabelValues(label).Inc()
	}
}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countRedisError(cmd.Name(), err)
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countRedisError("pipeline", err)
		return err
	}
}

// parseRedisOptions accepts either a full redis:// URL or a bare host:port.
func parseRedisOptions(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		return redis.ParseURL(addr)
	}
	return &redis.Options{Addr: addr}, nil
}

// InitRedis connects to Redis at the given address and returns the client.
// On any failure it logs a warning and returns nil; the caller and the cache
// helpers treat a nil client as "no cache".
func InitRedis(addr string) *redis.Client {
	opts, err := parseRedisOptions(addr)
	if err != nil {
		log.Printf("Redis connection warning: invalid REDIS_URL %q: %v (continuing without cache)", addr, err)
		client = nil
		return nil
	}

	rdb := redis.NewClient(opts)
	rdb.AddHook(metricsHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection warning: %v (continuing without cache)", err)
		client = nil
		return nil
	}

	log.Println("Redis connected successfully")
	client = rdb
	return rdb
}
