package eventbus

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
	Username      string
	Password      string
	Token         string
}

// NATSBus publishes and queue-subscribes over core NATS.
type NATSBus struct {
	conn *nats.Conn
	work inflight
}

// DialNATS connects to the server described by cfg.
func DialNATS(cfg NATSConfig) (*NATSBus, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("NATS reconnected to %s", c.ConnectedUrl())
		}),
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSBus(conn), nil
}

// NewNATSBus wraps an established connection.
func NewNATSBus(conn *nats.Conn) *NATSBus {
	return &NATSBus{conn: conn}
}

func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return b.conn.FlushWithContext(ctx)
}

// Subscribe joins queue group queue on subject and blocks until ctx is done.
// With an empty queue every subscriber receives every message.
func (b *NATSBus) Subscribe(ctx context.Context, subject, queue string, h Handler) error {
	cb := func(msg *nats.Msg) {
		b.work.dispatch(ctx, h, Delivery{
			Subject:  msg.Subject,
			Data:     msg.Data,
			Received: time.Now().UTC(),
		})
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = b.conn.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = b.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil && err != nats.ErrConnectionClosed {
		return fmt.Errorf("nats drain %s: %w", subject, err)
	}
	return nil
}

// Wait blocks until in-flight handlers finish or ctx expires.
func (b *NATSBus) Wait(ctx context.Context) error {
	return b.work.wait(ctx)
}

// IsConnected reports connection state for readiness probes.
func (b *NATSBus) IsConnected() bool {
	return b.conn.IsConnected()
}

func (b *NATSBus) Close() error {
	b.conn.Close()
	return nil
}
