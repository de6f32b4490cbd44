package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"nicetab/api/internal/syncer"
)

const DefaultChannel = "nicetab:events"

// RedisPublisher relays events between instances over a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, logger zerolog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("component", "redis-events").Logger(),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, event syncer.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe calls fn for every event on the channel until ctx is done or
// stop is called. It returns once the subscription is confirmed.
func (p *RedisPublisher) Subscribe(ctx context.Context, fn func(syncer.Event)) (stop func() error, err error) {
	sub := p.client.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", p.channel, err)
	}
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event syncer.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					p.logger.Warn().Err(err).Msg("decode event")
					continue
				}
				fn(event)
			}
		}
	}()
	return sub.Close, nil
}
