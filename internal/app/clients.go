package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/chatflow-backend/internal/clients/openai"
	"github.com/yungbote/chatflow-backend/internal/clients/redis"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
	"github.com/yungbote/chatflow-backend/internal/platform/objstore"
	"github.com/yungbote/chatflow-backend/internal/temporalx"
)

// Clients are the external systems. Every member except Objects is optional
// and nil when its integration is not configured.
type Clients struct {
	Redis    *goredis.Client
	OpenAI   openai.Client
	Temporal temporalsdkclient.Client
	Objects  objstore.Store
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if cfg.Redis.Enabled() {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	} else {
		log.Warn("REDIS_ADDR not set; using in-memory sessions and no public cache")
	}

	// Openai
	if cfg.OpenAI.APIKey != "" {
		oc, err := openai.New(log, cfg.OpenAI)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		out.OpenAI = oc
	} else {
		log.Warn("OPENAI_API_KEY not set; schema generation uses fallback data")
	}

	// Temporal
	tc, err := temporalx.NewClient(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	if tc == nil {
		log.Warn("TEMPORAL_ADDRESS not set; jobs run on the in-process worker pool")
	}
	out.Temporal = tc

	// Object storage
	store, err := objstore.New(ctx, log, cfg.Objects)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init object storage: %w", err)
	}
	out.Objects = store

	return out, nil
}

func (c Clients) Close() {
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Objects != nil {
		_ = c.Objects.Close()
	}
}
