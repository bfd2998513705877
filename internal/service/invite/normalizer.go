package invite

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/flowdose/invite-dispatcher/internal/container"
	"github.com/flowdose/invite-dispatcher/internal/domain"
)

// DirectArgs is the single-object subscriber shape {data, eventName, container}.
type DirectArgs struct {
	Data      any
	EventName string
	Container container.Locator
}

// NestedArgs is the shape {event: {data, name}, container}.
type NestedArgs struct {
	Event     EventBody
	Container container.Locator
}

// EventBody is the inner event of NestedArgs.
type EventBody struct {
	Data any
	Name string
}

// Envelope is the canonical result of normalization. Container is set whenever
// one was found, even if normalization then failed.
type Envelope struct {
	EventName string
	InviteID  string
	Container container.Locator
}

// Shapes lists where ids, names and containers may appear. Paths are tried in
// order and the first non-empty id wins.
type Shapes struct {
	IDPaths       [][]string
	NamePaths     [][]string
	ContainerKeys []string
}

// NewShapes builds Shapes from dot-separated paths such as "event.data.id".
func NewShapes(idPaths, namePaths, containerKeys []string) Shapes {
	return Shapes{
		IDPaths:       splitPaths(idPaths),
		NamePaths:     splitPaths(namePaths),
		ContainerKeys: append([]string(nil), containerKeys...),
	}
}

// DefaultShapes covers every envelope shape upstream has been seen to send.
// Only envelope keys name the event: a bare "name" belongs to the payload.
func DefaultShapes() Shapes {
	return NewShapes(
		[]string{"data.id", "id", "event.data.id"},
		[]string{"eventName", "event.name"},
		[]string{"container"},
	)
}

func splitPaths(paths []string) [][]string {
	out := make([][]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, strings.Split(p, "."))
	}
	return out
}

// Normalizer extracts {eventName, inviteId, container} from subscriber
// arguments. It holds no per-event state and is safe for concurrent use.
type Normalizer struct {
	shapes   Shapes
	expected string
}

// NewNormalizer creates a normalizer. When expected is non-empty, an envelope
// naming a different event is rejected as malformed.
func NewNormalizer(shapes Shapes, expected string) *Normalizer {
	return &Normalizer{shapes: shapes, expected: expected}
}

type candidate struct {
	payload     any
	defaultName string
}

type scan struct {
	container  container.Locator
	nameHint   string
	candidates []candidate
	decodeErr  error
}

// Normalize searches args for a container and an id-bearing payload.
func (n *Normalizer) Normalize(args ...any) (Envelope, error) {
	if len(args) == 0 {
		return Envelope{}, fail(StageReceived, ErrMalformedEvent, "no arguments", nil)
	}

	s := &scan{}
	for _, a := range args {
		n.collect(s, a, "")
	}

	env := Envelope{Container: s.container}
	for _, c := range s.candidates {
		id := n.firstString(c.payload, n.shapes.IDPaths)
		if id == "" {
			continue
		}
		env.InviteID = id
		env.EventName = n.firstString(c.payload, n.shapes.NamePaths)
		if env.EventName == "" {
			env.EventName = c.defaultName
		}
		if env.EventName == "" {
			env.EventName = s.nameHint
		}
		break
	}

	// the id is kept for diagnostics even though the event cannot proceed
	if s.container == nil {
		return env, fail(StageReceived, ErrMissingContainer, "args="+DescribeArgs(args...), nil)
	}
	if env.InviteID == "" {
		if s.decodeErr != nil {
			return env, fail(StageReceived, ErrMalformedEvent, "args="+DescribeArgs(args...), s.decodeErr)
		}
		return env, fail(StageReceived, ErrMissingEventData, "args="+DescribeArgs(args...), nil)
	}

	if n.expected != "" && env.EventName != "" && env.EventName != n.expected {
		return env, fail(StageReceived, ErrMalformedEvent,
			fmt.Sprintf("event name %q, want %q", env.EventName, n.expected), nil)
	}
	return env, nil
}

func (n *Normalizer) collect(s *scan, a any, name string) {
	switch v := a.(type) {
	case nil:
		return
	case container.Locator:
		if s.container == nil {
			s.container = v
		}
	case DirectArgs:
		n.collect(s, &v, name)
	case *DirectArgs:
		if v == nil {
			return
		}
		n.collect(s, v.Container, name)
		s.candidates = append(s.candidates, candidate{
			payload:     map[string]any{"data": toPayload(v.Data), "eventName": v.EventName},
			defaultName: name,
		})
	case NestedArgs:
		n.collect(s, &v, name)
	case *NestedArgs:
		if v == nil {
			return
		}
		n.collect(s, v.Container, name)
		s.candidates = append(s.candidates, candidate{
			payload: map[string]any{"event": map[string]any{
				"data": toPayload(v.Event.Data),
				"name": v.Event.Name,
			}},
			defaultName: name,
		})
	case domain.RawEvent:
		n.collectJSON(s, v.Body, v.Name)
	case *domain.RawEvent:
		if v != nil {
			n.collectJSON(s, v.Body, v.Name)
		}
	case json.RawMessage:
		n.collectJSON(s, v, name)
	case []byte:
		n.collectJSON(s, v, name)
	case string:
		t := strings.TrimSpace(v)
		if strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
			n.collectJSON(s, []byte(t), name)
		} else if s.nameHint == "" {
			s.nameHint = t
		}
	case []any:
		for _, item := range v {
			n.collect(s, item, name)
		}
	case map[string]any:
		for _, k := range n.shapes.ContainerKeys {
			if loc, ok := v[k].(container.Locator); ok && s.container == nil {
				s.container = loc
			}
		}
		s.candidates = append(s.candidates, candidate{payload: v, defaultName: name})
	case domain.RawRecord:
		n.collect(s, map[string]any(v), name)
	default:
		if p, ok := toPayload(v).(map[string]any); ok {
			s.candidates = append(s.candidates, candidate{payload: p, defaultName: name})
		}
	}
}

func (n *Normalizer) collectJSON(s *scan, body []byte, name string) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		if s.decodeErr == nil {
			s.decodeErr = fmt.Errorf("decode payload: %w", err)
		}
		return
	}
	n.collect(s, decoded, name)
}

func (n *Normalizer) firstString(payload any, paths [][]string) string {
	for _, p := range paths {
		if s, ok := lookup(payload, p).(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func lookup(v any, path []string) any {
	cur := v
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			// typed or string-encoded payloads nested inside a generic map
			if m, ok = toPayload(cur).(map[string]any); !ok {
				return nil
			}
		}
		cur = m[key]
	}
	return cur
}

// toPayload turns typed payloads (structs, typed maps) into the generic map
// form by a JSON round trip, so lookups follow the payload's json tags.
func toPayload(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return t
	case domain.RawRecord:
		return map[string]any(t)
	case json.RawMessage, []byte, string:
		var raw []byte
		switch b := t.(type) {
		case json.RawMessage:
			raw = b
		case []byte:
			raw = b
		case string:
			raw = []byte(b)
		}
		var decoded any
		if json.Unmarshal(raw, &decoded) == nil {
			return decoded
		}
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var decoded any
	if json.Unmarshal(data, &decoded) != nil {
		return nil
	}
	return decoded
}

// DescribeArgs renders the shape of subscriber arguments for diagnostics:
// types and map keys, never values.
func DescribeArgs(args ...any) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, describe(a, 0))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func describe(a any, depth int) string {
	if depth > 3 {
		return "…"
	}
	switch v := a.(type) {
	case nil:
		return "nil"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k, val := range v {
			if m, ok := val.(map[string]any); ok {
				keys = append(keys, k+":"+describe(m, depth+1))
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "map{" + strings.Join(keys, ",") + "}"
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, describe(item, depth+1))
		}
		return "list[" + strings.Join(parts, " ") + "]"
	case domain.RawEvent:
		return fmt.Sprintf("raw(%s,%dB)", v.Name, len(v.Body))
	case *domain.RawEvent:
		if v == nil {
			return "nil"
		}
		return fmt.Sprintf("raw(%s,%dB)", v.Name, len(v.Body))
	case []byte:
		return fmt.Sprintf("bytes(%d)", len(v))
	case json.RawMessage:
		return fmt.Sprintf("json(%d)", len(v))
	case string:
		return fmt.Sprintf("string(%d)", len(v))
	}
	return reflect.TypeOf(a).String()
}
