package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus publishes and subscribes over Redis pub/sub channels. Redis has
// no consumer groups for pub/sub, so the queue argument is ignored and every
// worker receives every message.
type RedisBus struct {
	client *redis.Client
	work   inflight
}

// NewRedisBus wraps an existing client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// DialRedis parses url (redis://...) and falls back to treating it as a bare
// host:port address.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

func (b *RedisBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := b.client.Publish(ctx, subject, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe blocks, dispatching messages on subject to h, until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, subject, _ string, h Handler) error {
	ps := b.client.Subscribe(ctx, subject)
	defer ps.Close()

	// wait for the subscription to be confirmed before reporting readiness
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", subject, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return ErrClosed
			}
			b.work.dispatch(ctx, h, Delivery{
				Subject:  msg.Channel,
				Data:     []byte(msg.Payload),
				Received: time.Now().UTC(),
			})
		}
	}
}

// Wait blocks until in-flight handlers finish or ctx expires.
func (b *RedisBus) Wait(ctx context.Context) error {
	return b.work.wait(ctx)
}

// Ping checks the connection for readiness probes.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
