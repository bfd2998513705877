package invite

import (
	"fmt"

	"github.com/flowdose/invite-dispatcher/internal/container"
	"github.com/flowdose/invite-dispatcher/internal/service/sending"
)

// Resolver wraps the container handed over with an event. Each lookup is
// independent; a failed lookup yields a ResolutionError and never panics.
type Resolver struct {
	locator container.Locator
}

// NewResolver wraps locator.
func NewResolver(locator container.Locator) *Resolver {
	return &Resolver{locator: locator}
}

// Resolve looks up name, converting lookup errors and panics from the
// locator into a *Failure.
func (r *Resolver) Resolve(name string) (svc any, err error) {
	defer func() {
		if p := recover(); p != nil {
			svc = nil
			err = fail(StageNormalized, ErrResolution, "service="+name, fmt.Errorf("panic: %v", p))
		}
	}()

	if r.locator == nil {
		return nil, fail(StageNormalized, ErrResolution, "service="+name, container.ErrUnknownService)
	}
	svc, err = r.locator.Resolve(name)
	if err != nil {
		return nil, fail(StageNormalized, ErrResolution, "service="+name, err)
	}
	if svc == nil {
		return nil, fail(StageNormalized, ErrResolution, "service="+name, container.ErrUnknownService)
	}
	return svc, nil
}

// Logger resolves the logger service.
func (r *Resolver) Logger() (Logger, error) {
	svc, err := r.Resolve(container.LoggerService)
	if err != nil {
		return nil, err
	}
	l, ok := svc.(Logger)
	if !ok {
		return nil, wrongType(container.LoggerService, svc)
	}
	return l, nil
}

// Records resolves the invite record service.
func (r *Resolver) Records() (Repository, error) {
	svc, err := r.Resolve(container.InviteService)
	if err != nil {
		return nil, err
	}
	repo, ok := svc.(Repository)
	if !ok {
		return nil, wrongType(container.InviteService, svc)
	}
	return repo, nil
}

// Mailer resolves the mail sender.
func (r *Resolver) Mailer() (sending.Sender, error) {
	svc, err := r.Resolve(container.MailerService)
	if err != nil {
		return nil, err
	}
	sender, ok := svc.(sending.Sender)
	if !ok {
		return nil, wrongType(container.MailerService, svc)
	}
	return sender, nil
}

func wrongType(name string, svc any) *Failure {
	return fail(StageNormalized, ErrResolution, "service="+name, fmt.Errorf("unexpected type %T", svc))
}
