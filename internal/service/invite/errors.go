package invite

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Check with errors.Is against a returned error or *Failure.
var (
	ErrMalformedEvent   = errors.New("malformed event")
	ErrMissingContainer = errors.New("missing container")
	ErrMissingEventData = errors.New("missing event data")
	ErrResolution       = errors.New("service resolution failed")
	ErrNotFound         = errors.New("invite not found")
	ErrMissingFields    = errors.New("invite record missing required fields")
	ErrConfig           = errors.New("mail configuration error")
	ErrSend             = errors.New("mail send failed")
)

// Stage is a state of the per-event state machine.
type Stage string

const (
	StageReceived   Stage = "received"
	StageNormalized Stage = "normalized"
	StageResolved   Stage = "resolved"
	StageFetched    Stage = "fetched"
	StageDispatched Stage = "dispatched"
	StageFailed     Stage = "failed"
)

// Failure is the absorbing Failed(stage, reason) transition. Stage is the last
// state the event reached before the failing step.
type Failure struct {
	Stage    Stage
	Kind     error
	InviteID string
	Detail   string
	Fields   []string // field names present on the record, for ErrMissingFields
	Cause    error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(f.Kind.Error())
	if f.Detail != "" {
		fmt.Fprintf(&b, ": %s", f.Detail)
	}
	if f.Cause != nil {
		fmt.Fprintf(&b, ": %v", f.Cause)
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (f *Failure) Unwrap() []error {
	if f.Cause == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Cause}
}

func fail(stage Stage, kind error, detail string, cause error) *Failure {
	return &Failure{Stage: stage, Kind: kind, Detail: detail, Cause: cause}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}
