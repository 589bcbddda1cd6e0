package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/chatflow-backend/internal/domain"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

// JobEventBus fans job events out over Redis pub/sub so every API replica can
// stream them.
type JobEventBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewJobEventBus(log *logger.Logger, rdb *goredis.Client, channel string) *JobEventBus {
	if channel == "" {
		channel = "chatflow:job_events"
	}
	return &JobEventBus{
		log:     log.With("service", "RedisJobEventBus"),
		rdb:     rdb,
		channel: channel,
	}
}

func (b *JobEventBus) PublishJobEvent(ctx context.Context, ev *types.JobRunEvent) error {
	if ev == nil {
		return nil
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe delivers events to onEvent until ctx is done. It returns once the
// subscription is confirmed by the server.
func (b *JobEventBus) Subscribe(ctx context.Context, onEvent func(*types.JobRunEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev types.JobRunEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis job event payload", "error", err)
					continue
				}
				onEvent(&ev)
			}
		}
	}()
	return nil
}
