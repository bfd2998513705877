// Package eventbus delivers domain events from a broker to subscriber
// callbacks. Every message is handed to its own goroutine so one slow
// delivery never holds up the next.
package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a bus that has been closed.
var ErrClosed = errors.New("eventbus: closed")

// Delivery is one message as received from the broker.
type Delivery struct {
	Subject  string
	Data     []byte
	Received time.Time
}

// Handler processes one delivery. It owns its error handling; the bus
// never retries.
type Handler func(ctx context.Context, d Delivery)

// Publisher publishes raw event bodies on a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Subscriber runs a subscription until ctx is cancelled. queue names the
// consumer group where the broker supports one.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, queue string, h Handler) error
	Wait(ctx context.Context) error
	Close() error
}

// inflight tracks handler goroutines so shutdown can wait for them.
type inflight struct {
	wg sync.WaitGroup
}

// dispatch runs h in its own goroutine. The handler context survives
// cancellation of the subscription so shutdown lets in-flight sends finish.
func (f *inflight) dispatch(ctx context.Context, h Handler, d Delivery) {
	hctx := context.WithoutCancel(ctx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		h(hctx, d)
	}()
}

// wait blocks until every dispatched handler returned or ctx is done.
func (f *inflight) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
