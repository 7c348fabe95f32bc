package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Tetsu-is/crate-digger/internal/domain"
	"github.com/Tetsu-is/crate-digger/internal/log"
)

// RedisBus shares changes between server instances over a Redis channel.
type RedisBus struct {
	client  *redis.Client
	channel string
}

func NewRedisBus(client *redis.Client, channel string) *RedisBus {
	return &RedisBus{client: client, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return domain.Transient(err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning.
func (b *RedisBus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, domain.Subscription(err)
	}

	sub := newSubscription(func() { _ = ps.Close() })
	go b.forward(ps, sub)
	return sub, nil
}

func (b *RedisBus) forward(ps *redis.PubSub, sub *Subscription) {
	logger := log.L().With().Str(log.FieldTopic, b.channel).Logger()
	ch := ps.Channel()
	for {
		select {
		case <-sub.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				sub.fail(errors.New("redis subscription closed"))
				return
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				logger.Error().Err(err).Msg("undecodable change on bus")
				sub.fail(fmt.Errorf("decode change: %w", err))
				return
			}
			if !sub.deliver(c) {
				return
			}
		}
	}
}

// Close does not close the shared client.
func (b *RedisBus) Close() error { return nil }
