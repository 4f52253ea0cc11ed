package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConsumer applies status events published on a Redis channel.
type RedisConsumer struct {
	rdb     *redis.Client
	channel string
	applier StatusApplier
	log     *zap.Logger
}

func NewRedisConsumer(rdb *redis.Client, channel string, applier StatusApplier, log *zap.Logger) *RedisConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisConsumer{
		rdb:     rdb,
		channel: channel,
		applier: applier,
		log:     log.Named("redis_consumer"),
	}
}

// Run subscribes and blocks until ctx is cancelled or the subscription
// breaks. Bad payloads are logged and skipped.
func (c *RedisConsumer) Run(ctx context.Context) error {
	sub := c.rdb.Subscribe(ctx, c.channel)
	defer sub.Close()

	// wait for the subscription confirmation so publishes are not missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis consumer: subscribe %q: %w", c.channel, err)
	}
	c.log.Info("redis consumer started", zap.String("channel", c.channel))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("redis consumer stopping")
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis consumer: subscription channel closed")
			}
			if err := Dispatch(ctx, c.applier, c.log, []byte(msg.Payload)); err != nil {
				c.log.Warn("status event rejected",
					zap.String("channel", msg.Channel),
					zap.Bool("permanent", Permanent(err)),
					zap.Error(err),
				)
			}
		}
	}
}
