package invite

import (
	"context"

	"github.com/flowdose/invite-dispatcher/internal/domain"
)

// Repository is the record-service query capability resolved from the
// container under container.InviteService. Implementations return records as
// they are stored, without renaming fields.
type Repository interface {
	ListInvites(ctx context.Context, filter ListFilter) ([]domain.RawRecord, error)
}

// ListFilter narrows an invite query.
type ListFilter struct {
	ID string
}

// Logger is the logging capability resolved from the container under
// container.LoggerService. *logger.Logger satisfies it.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}
