package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowdose/invite-dispatcher/internal/config"
	"github.com/flowdose/invite-dispatcher/internal/container"
	"github.com/flowdose/invite-dispatcher/internal/domain"
	"github.com/flowdose/invite-dispatcher/internal/eventbus"
	"github.com/flowdose/invite-dispatcher/internal/pkg/logger"
	"github.com/flowdose/invite-dispatcher/internal/service/invite"
	"github.com/flowdose/invite-dispatcher/internal/service/sending"
)

type staticRepo map[string]domain.RawRecord

func (r staticRepo) ListInvites(_ context.Context, f invite.ListFilter) ([]domain.RawRecord, error) {
	if rec, ok := r[f.ID]; ok {
		return []domain.RawRecord{rec}, nil
	}
	return nil, nil
}

func TestRedisDeliveryReachesHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	bus := eventbus.NewRedisBus(client)

	var (
		mu   sync.Mutex
		sent []domain.NotificationRequest
	)
	registry := container.New()
	registry.Register(container.LoggerService, logger.New(&nopWriter{}, logger.DEBUG))
	registry.Register(container.InviteService, staticRepo{
		"inv_1": {"id": "inv_1", "user_email": "ops@example.com", "token": "tok-1"},
	})
	registry.Register(container.MailerService, sending.SenderFunc(func(_ context.Context, m *domain.NotificationRequest) (*domain.SendResult, error) {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, *m)
		return &domain.SendResult{MessageID: "re_1", ESPType: domain.ESPResend}, nil
	}))

	handler := invite.NewHandler(invite.Options{
		SubscriberID: "invite-created-handler",
		EventName:    domain.InviteCreatedEvent,
		Settings: func() config.MailSettings {
			return config.MailSettings{APIKey: "re_key", From: "noreply@flowdose.xyz", AcceptBaseURL: "https://admin.flowdose.test/invite"}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Subscribe(ctx, domain.InviteCreatedEvent, "invite-created-handler", func(ctx context.Context, d eventbus.Delivery) {
		handler.Handle(ctx, domain.RawEvent{Name: d.Subject, Body: d.Data}, registry)
	})

	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, domain.InviteCreatedEvent).Result()
		return err == nil && n[domain.InviteCreatedEvent] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, domain.InviteCreatedEvent, []byte(`{"event":{"data":{"id":"inv_1"},"name":"invite.created"}}`)))
	require.NoError(t, bus.Publish(ctx, domain.InviteCreatedEvent, []byte(`{"data":{"id":"inv_unknown"}}`)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, bus.Wait(waitCtx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops@example.com", sent[0].To)
	assert.Contains(t, sent[0].BodyHTML, "https://admin.flowdose.test/invite?token=tok-1")
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
