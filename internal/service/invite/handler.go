package invite

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/flowdose/invite-dispatcher/internal/domain"
	"github.com/flowdose/invite-dispatcher/internal/mailing"
)

// Outcome is the terminal state of one invocation: Dispatched or Failed.
type Outcome struct {
	DeliveryID string
	State      Stage
	InviteID   string
	EventName  string
	Result     *domain.SendResult
	Failure    *Failure
}

// Failed reports whether the invocation ended in the Failed state.
func (o Outcome) Failed() bool { return o.State == StageFailed }

// Options configures a Handler.
type Options struct {
	SubscriberID string
	EventName    string
	Shapes       Shapes
	Fields       FieldSynonyms
	Settings     SettingsFunc
	Renderer     Renderer
	// Fallback logs when the container's logger cannot be resolved or no
	// container was delivered at all.
	Fallback Logger
}

// Handler is the invite.created subscriber. It holds only immutable
// configuration, so one Handler serves concurrent deliveries.
type Handler struct {
	subscriberID string
	normalizer   *Normalizer
	fields       FieldSynonyms
	dispatcher   *Dispatcher
	fallback     Logger
}

// NewHandler builds a handler from opts. Zero-valued shapes and field
// synonyms select the defaults.
func NewHandler(opts Options) *Handler {
	if len(opts.Shapes.IDPaths) == 0 {
		opts.Shapes = DefaultShapes()
	}
	if len(opts.Fields.Email) == 0 || len(opts.Fields.Token) == 0 {
		opts.Fields = DefaultFieldSynonyms()
	}
	if opts.Renderer == nil {
		// the built-in template always compiles
		opts.Renderer, _ = mailing.NewInviteRenderer(nil, "")
	}
	return &Handler{
		subscriberID: opts.SubscriberID,
		normalizer:   NewNormalizer(opts.Shapes, opts.EventName),
		fields:       opts.Fields,
		dispatcher:   NewDispatcher(opts.Settings, opts.Renderer),
		fallback:     opts.Fallback,
	}
}

// Handle processes one delivery. It never returns an error and never panics;
// every failure is logged and reflected in the returned Outcome.
func (h *Handler) Handle(ctx context.Context, args ...any) (out Outcome) {
	out = Outcome{DeliveryID: uuid.NewString(), State: StageReceived}
	log := newEventLog(h.fallback, "delivery_id", out.DeliveryID, "subscriber", h.subscriberID)

	defer func() {
		if p := recover(); p != nil {
			out.Failure = &Failure{Stage: out.State, Kind: panicKind(out.State), InviteID: out.InviteID,
				Detail: "handler panic", Cause: fmt.Errorf("%v", p)}
			out.State = StageFailed
			log.Error("invite notification failed", failureFields(out.Failure)...)
		}
	}()

	env, err := h.normalizer.Normalize(args...)
	if env.Container != nil {
		// Resolve the logger first, so every later diagnostic goes through it.
		if l, lerr := NewResolver(env.Container).Logger(); lerr == nil {
			log.use(l)
		} else {
			log.Warn("logger not resolvable, using fallback", "error", lerr)
		}
	}
	out.InviteID = env.InviteID
	out.EventName = env.EventName
	if err != nil {
		return h.failed(out, log, err)
	}
	out.State = StageNormalized
	log.fields = append(log.fields, "invite_id", env.InviteID)
	log.Info("handling invite event", "event", env.EventName)

	resolver := NewResolver(env.Container)
	records, err := resolver.Records()
	if err != nil {
		return h.failed(out, log, err)
	}
	mailer, err := resolver.Mailer()
	if err != nil {
		return h.failed(out, log, err)
	}
	out.State = StageResolved

	rec, err := NewFetcher(records, h.fields, log).Fetch(ctx, env.InviteID)
	if err != nil {
		return h.failed(out, log, err)
	}
	out.State = StageFetched
	log.fields = append(log.fields, "email", rec.EmailAddress)

	res, err := h.dispatcher.Dispatch(ctx, mailer, rec)
	if err != nil {
		return h.failed(out, log, err)
	}
	out.State = StageDispatched
	out.Result = res
	log.Info("invite email sent", "message_id", res.MessageID, "esp", res.ESPType)
	return out
}

func (h *Handler) failed(out Outcome, log *eventLog, err error) Outcome {
	f, ok := AsFailure(err)
	if !ok {
		f = &Failure{Stage: out.State, Kind: ErrMalformedEvent, Cause: err}
	}
	if f.InviteID == "" {
		f.InviteID = out.InviteID
	}
	out.State = StageFailed
	out.Failure = f
	log.Error("invite notification failed", failureFields(f)...)
	return out
}

// panicKind classifies a panic by the step that was running when it happened.
func panicKind(reached Stage) error {
	switch reached {
	case StageNormalized:
		return ErrResolution
	case StageResolved:
		return ErrNotFound
	case StageFetched:
		return ErrSend
	default:
		return ErrMalformedEvent
	}
}

func failureFields(f *Failure) []interface{} {
	fields := []interface{}{"stage", string(f.Stage), "reason", f.Kind.Error()}
	if f.Detail != "" {
		fields = append(fields, "detail", f.Detail)
	}
	if f.Fields != nil {
		fields = append(fields, "fields_present", strings.Join(f.Fields, ","))
	}
	if f.Cause != nil {
		fields = append(fields, "error", f.Cause.Error())
	}
	return fields
}

// eventLog prefixes per-event fields onto a resolved Logger. A logger that
// panics is swapped for the fallback for the rest of the event; if the
// fallback panics too, the line is dropped. A nil logger discards output.
type eventLog struct {
	l          Logger
	fallback   Logger
	onFallback bool
	fields     []interface{}
}

func newEventLog(fallback Logger, fields ...interface{}) *eventLog {
	return &eventLog{l: fallback, fallback: fallback, onFallback: true, fields: fields}
}

// use switches output to the logger resolved from the container.
func (e *eventLog) use(l Logger) {
	e.l, e.onFallback = l, false
}

func (e *eventLog) with(fields []interface{}) []interface{} {
	all := make([]interface{}, 0, len(e.fields)+len(fields))
	all = append(all, e.fields...)
	return append(all, fields...)
}

func (e *eventLog) emit(write func(Logger)) {
	if e.l != nil && safeWrite(e.l, write) {
		return
	}
	if e.onFallback {
		return
	}
	e.l, e.onFallback = e.fallback, true
	if e.l != nil {
		safeWrite(e.l, write)
	}
}

func safeWrite(l Logger, write func(Logger)) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	write(l)
	return true
}

func (e *eventLog) Debug(msg string, fields ...interface{}) {
	e.emit(func(l Logger) { l.Debug(msg, e.with(fields)...) })
}

func (e *eventLog) Info(msg string, fields ...interface{}) {
	e.emit(func(l Logger) { l.Info(msg, e.with(fields)...) })
}

func (e *eventLog) Warn(msg string, fields ...interface{}) {
	e.emit(func(l Logger) { l.Warn(msg, e.with(fields)...) })
}

func (e *eventLog) Error(msg string, fields ...interface{}) {
	e.emit(func(l Logger) { l.Error(msg, e.with(fields)...) })
}
