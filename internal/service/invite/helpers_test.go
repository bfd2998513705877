package invite

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flowdose/invite-dispatcher/internal/config"
	"github.com/flowdose/invite-dispatcher/internal/container"
	"github.com/flowdose/invite-dispatcher/internal/domain"
)

type logEntry struct {
	level  string
	msg    string
	fields map[string]string
}

// memLogger records entries for assertions.
type memLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *memLogger) add(level, msg string, kv []interface{}) {
	e := logEntry{level: level, msg: msg, fields: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		e.fields[fmt.Sprint(kv[i])] = fmt.Sprint(kv[i+1])
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

func (l *memLogger) Debug(msg string, kv ...interface{}) { l.add("DEBUG", msg, kv) }
func (l *memLogger) Info(msg string, kv ...interface{})  { l.add("INFO", msg, kv) }
func (l *memLogger) Warn(msg string, kv ...interface{})  { l.add("WARN", msg, kv) }
func (l *memLogger) Error(msg string, kv ...interface{}) { l.add("ERROR", msg, kv) }

func (l *memLogger) find(level, msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && strings.Contains(e.msg, msg) {
			return e, true
		}
	}
	return logEntry{}, false
}

// memRepo is an in-memory invite record service.
type memRepo struct {
	mu      sync.Mutex
	records map[string][]domain.RawRecord
	err     error
	calls   int
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string][]domain.RawRecord)}
}

func (r *memRepo) put(id string, rec domain.RawRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[id] = append(r.records[id], rec)
}

func (r *memRepo) ListInvites(_ context.Context, f ListFilter) ([]domain.RawRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return append([]domain.RawRecord(nil), r.records[f.ID]...), nil
}

// memSender records every request and returns err when set.
type memSender struct {
	mu   sync.Mutex
	sent []domain.NotificationRequest
	err  error
}

func (s *memSender) Send(_ context.Context, msg *domain.NotificationRequest) (*domain.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, *msg)
	return &domain.SendResult{MessageID: fmt.Sprintf("msg-%d", len(s.sent)), ESPType: domain.ESPResend}, nil
}

func (s *memSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func validSettings() config.MailSettings {
	return config.MailSettings{
		Provider:      "resend",
		APIKey:        "re_test_key",
		From:          "FlowDose <noreply@flowdose.xyz>",
		AcceptBaseURL: "https://admin.flowdose.test/invite",
		Subject:       "You've been invited to join FlowDose",
	}
}

type fixture struct {
	repo     *memRepo
	sender   *memSender
	log      *memLogger
	fallback *memLogger
	registry *container.Registry
	handler  *Handler
}

func newFixture(settings config.MailSettings) *fixture {
	f := &fixture{
		repo:     newMemRepo(),
		sender:   &memSender{},
		log:      &memLogger{},
		fallback: &memLogger{},
		registry: container.New(),
	}
	f.registry.Register(container.LoggerService, f.log)
	f.registry.Register(container.InviteService, f.repo)
	f.registry.Register(container.MailerService, f.sender)
	f.handler = NewHandler(Options{
		SubscriberID: "invite-created-handler",
		EventName:    domain.InviteCreatedEvent,
		Settings:     func() config.MailSettings { return settings },
		Fallback:     f.fallback,
	})
	return f
}
