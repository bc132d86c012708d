// Package redis holds the best-effort pub/sub broadcaster the Ingestor and
// DeepResearchAgent use to fan out Activity rows as they write them to
// MetaStore, so any live listener (an ops dashboard, a future UI) can
// observe ingestion/research progress without polling.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
)

// ActivityEvent is the wire shape published on the bus; it mirrors
// types.Activity's public fields without importing internal/types, keeping
// this client package dependency-light.
type ActivityEvent struct {
	UserID    string         `json:"user_id"`
	SpaceID   string         `json:"space_id"`
	Kind      string         `json:"kind"`
	SubjectID string         `json:"subject_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

type ActivityBus interface {
	Publish(ctx context.Context, event ActivityEvent) error
	StartForwarder(ctx context.Context, onEvent func(ActivityEvent)) error
	Close() error
}

type activityBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewActivityBus(cfg config.RedisConfig, log *logger.Logger) (ActivityBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &activityBus{
		log:     log.With("service", "RedisActivityBus"),
		rdb:     rdb,
		channel: cfg.Channel,
	}, nil
}

func (b *activityBus) Publish(ctx context.Context, event ActivityEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Best-effort: a publish failure never propagates to the caller's
	// request path, it is just logged.
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.log.Debug("activity publish failed", "error", err)
		return nil
	}
	return nil
}

func (b *activityBus) StartForwarder(ctx context.Context, onEvent func(ActivityEvent)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var event ActivityEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					b.log.Warn("bad activity payload", "error", err)
					continue
				}
				onEvent(event)
			}
		}
	}()

	return nil
}

func (b *activityBus) Close() error {
	return b.rdb.Close()
}
