package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
)

// NewRedisClient creates and validates a Redis client connection.
// Redis carries advisory data only (availability snapshots, rate-limit
// counters) plus the notification queue; seat decisions never read from it.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = applicationName
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	warnOnEvictingPolicy(ctx, rdb, log)

	return rdb, nil
}

// warnOnEvictingPolicy flags servers that may evict the notification queue
// under memory pressure. Managed Redis often refuses CONFIG; that is not an
// error.
func warnOnEvictingPolicy(ctx context.Context, rdb *redis.Client, log zerolog.Logger) {
	policy, err := rdb.ConfigGet(ctx, "maxmemory-policy").Result()
	if err != nil {
		log.Debug().Err(err).Msg("Redis maxmemory-policy unavailable")
		return
	}
	if p := policy["maxmemory-policy"]; strings.HasPrefix(p, "allkeys-") {
		log.Warn().
			Str("maxmemory-policy", p).
			Str("queue", config.WorkerKey.ClassNotificationsQueue).
			Msg("Redis may evict queued class notifications")
	}
}
