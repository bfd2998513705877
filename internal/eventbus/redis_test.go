package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisBus_DeliversConcurrently(t *testing.T) {
	client, _ := setupTestRedis(t)
	bus := NewRedisBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		got      []Delivery
		release  = make(chan struct{})
		received = make(chan struct{}, 2)
	)
	handler := func(_ context.Context, d Delivery) {
		mu.Lock()
		got = append(got, d)
		mu.Unlock()
		received <- struct{}{}
		// both handlers must be running at once for this to return
		<-release
	}

	errc := make(chan error, 1)
	go func() { errc <- bus.Subscribe(ctx, "invite.created", "", handler) }()

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, "invite.created").Result()
		return err == nil && n["invite.created"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "invite.created", []byte(`{"data":{"id":"inv_1"}}`)))
	require.NoError(t, bus.Publish(ctx, "invite.created", []byte(`{"data":{"id":"inv_2"}}`)))

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("handler not invoked")
		}
	}
	close(release)

	cancel()
	require.NoError(t, <-errc)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, bus.Wait(waitCtx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "invite.created", got[0].Subject)
	assert.ElementsMatch(t, []string{`{"data":{"id":"inv_1"}}`, `{"data":{"id":"inv_2"}}`},
		[]string{string(got[0].Data), string(got[1].Data)})
}

func TestRedisBus_WaitHonoursDeadline(t *testing.T) {
	client, _ := setupTestRedis(t)
	bus := NewRedisBus(client)

	block := make(chan struct{})
	defer close(block)
	bus.work.dispatch(context.Background(), func(context.Context, Delivery) { <-block }, Delivery{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Wait(ctx), context.DeadlineExceeded)
}

func TestRedisBus_HandlerContextOutlivesSubscription(t *testing.T) {
	client, _ := setupTestRedis(t)
	bus := NewRedisBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	bus.work.dispatch(ctx, func(hctx context.Context, _ Delivery) {
		cancel()
		done <- hctx.Err()
	}, Delivery{})

	assert.NoError(t, <-done)
}

func TestDialRedis(t *testing.T) {
	_, mr := setupTestRedis(t)

	client, err := DialRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, NewRedisBus(client).Ping(context.Background()))

	_, err = DialRedis(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
