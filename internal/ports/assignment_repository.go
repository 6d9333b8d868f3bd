package ports

import (
	"context"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

// AssignmentRepository stores the first-write-wins bucket of each entity.
type AssignmentRepository interface {
	// Get returns nil and no error when the entity has not been assigned.
	Get(ctx context.Context, experimentID, entityID string) (*domain.Assignment, error)
	// InsertIfAbsent stores a unless a row for the same pair exists. It
	// returns the persisted row and whether a was the one written.
	InsertIfAbsent(ctx context.Context, a *domain.Assignment) (*domain.Assignment, bool, error)
	// List returns up to limit assignments ordered by entity id, starting
	// after afterEntityID.
	List(ctx context.Context, experimentID, afterEntityID string, limit int) ([]*domain.Assignment, error)
	Count(ctx context.Context, experimentID string) (int64, error)
}
