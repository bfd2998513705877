// Package container is the process-wide service locator handed to event
// subscribers. Services are registered once during startup and looked up by
// name for every event; lookups never mutate the registry.
package container

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Well-known service names.
const (
	LoggerService = "logger"
	InviteService = "inviteService"
	MailerService = "mailer"
)

// ErrUnknownService is returned when nothing is registered under a name.
var ErrUnknownService = errors.New("service not registered")

// Locator resolves named runtime services.
type Locator interface {
	Resolve(name string) (any, error)
}

// Registry is the default Locator. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	services map[string]any
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{services: make(map[string]any)}
}

// Register stores svc under name, replacing any previous registration.
func (r *Registry) Register(name string, svc any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = svc
}

// Resolve returns the service registered under name.
func (r *Registry) Resolve(name string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok || svc == nil {
		return nil, fmt.Errorf("resolve %q: %w", name, ErrUnknownService)
	}
	return svc, nil
}

// Names lists registered service names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for n := range r.services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(name string) (any, error)

// Resolve calls f(name).
func (f LocatorFunc) Resolve(name string) (any, error) { return f(name) }
