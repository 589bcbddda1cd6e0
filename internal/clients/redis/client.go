// Package redis holds the Redis-backed adapters: the public chatflow cache,
// the conversational session store and the job event bus.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatflow-backend/internal/platform/envutil"
)

type Config struct {
	Addr             string
	Password         string
	DB               int
	JobEventsChannel string
	CacheTTL         time.Duration
	SessionTTL       time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Addr:             envutil.String("REDIS_ADDR", ""),
		Password:         envutil.String("REDIS_PASSWORD", ""),
		DB:               envutil.Int("REDIS_DB", 0),
		JobEventsChannel: envutil.String("REDIS_JOB_EVENTS_CHANNEL", "chatflow:job_events"),
		CacheTTL:         envutil.Seconds("PUBLIC_CACHE_TTL_SECONDS", 5*time.Minute),
		SessionTTL:       envutil.Seconds("SESSION_TTL_SECONDS", 24*time.Hour),
	}
}

func (c Config) Enabled() bool { return c.Addr != "" }

// Connect dials and pings Redis.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
