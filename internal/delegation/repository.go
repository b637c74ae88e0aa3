package delegation

import (
	"context"
	"time"
)

// Repository owns the assignment rows. The Mark* methods are conditional
// writes keyed on the current status; a false result means the assignment
// was not in the required state (or does not exist) and nothing changed.
type Repository interface {
	Create(ctx context.Context, a *Assignment) error
	Get(ctx context.Context, id string) (*Assignment, error)
	// ListByAssignee returns assignments for one worker, optionally
	// filtered by status (empty status means all), in insertion order.
	ListByAssignee(ctx context.Context, assigneeID string, status Status) ([]*Assignment, error)
	MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id string, at time.Time, actualHours *float64) (bool, error)
	MarkCancelled(ctx context.Context, id string) (bool, error)
}
