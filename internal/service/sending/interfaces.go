// Package sending defines the contract between the invite dispatcher and the
// email service providers.
//
// Each ESP (Resend, SES) implements the Sender interface. The worker registers
// one Sender in the service container under the "mailer" name; the dispatcher
// resolves it per event and stays provider-agnostic.
package sending

import (
	"context"

	"github.com/flowdose/invite-dispatcher/internal/domain"
)

// Sender sends a single email through an ESP. Implementations must be
// safe for concurrent use and must not retry on their own.
type Sender interface {
	Send(ctx context.Context, msg *domain.NotificationRequest) (*domain.SendResult, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg *domain.NotificationRequest) (*domain.SendResult, error)

// Send calls f(ctx, msg).
func (f SenderFunc) Send(ctx context.Context, msg *domain.NotificationRequest) (*domain.SendResult, error) {
	return f(ctx, msg)
}
