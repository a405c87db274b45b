package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisChannel carries the cross-terminal channel over Redis pub/sub.
type RedisChannel struct {
	rdb     *redis.Client
	channel string
}

func NewRedisChannel(rdb *redis.Client, channel string) *RedisChannel {
	if channel == "" {
		channel = ChannelName
	}
	return &RedisChannel{rdb: rdb, channel: channel}
}

func (c *RedisChannel) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.rdb.Publish(ctx, c.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(ctx context.Context, h Handler) (func(), error) {
	ps := c.rdb.Subscribe(ctx, c.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", c.channel, err)
	}

	go func() {
		for rm := range ps.Channel() {
			var m Message
			if err := json.Unmarshal([]byte(rm.Payload), &m); err != nil {
				log.Error().Err(err).Str("channel", rm.Channel).Msg("failed to decode broadcast")
				continue
			}
			h(m)
		}
	}()

	return func() {
		if err := ps.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis subscription")
		}
	}, nil
}

// Close is a no-op; the client is owned by the caller.
func (c *RedisChannel) Close() error {
	return nil
}
