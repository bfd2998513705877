// Package invite implements the invite.created subscriber: it turns an event
// delivery of uncertain shape into a canonical invite id, resolves its
// collaborators from the service container, fetches and reconciles the invite
// record, and sends the acceptance email.
//
// Every step returns a typed *Failure instead of panicking or propagating an
// error to the event bus. Handler.Handle always returns normally; the outcome
// is only logged. Nothing is cached or retried between invocations.
package invite
