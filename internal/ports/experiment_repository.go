package ports

import (
	"context"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
)

// ExperimentRepository persists experiment definitions and lifecycle state.
//
// Get methods return domain.ErrExperimentNotFound when no row matches.
// Transition performs a compare-and-set on status: it returns false without
// error when the stored status no longer equals from.
type ExperimentRepository interface {
	Create(ctx context.Context, experiment *domain.Experiment) error
	GetByID(ctx context.Context, id string) (*domain.Experiment, error)
	GetByName(ctx context.Context, name string) (*domain.Experiment, error)
	List(ctx context.Context, filter domain.ExperimentFilter) ([]*domain.Experiment, error)
	Transition(ctx context.Context, t StatusTransition) (bool, error)
}

// StatusTransition describes a lifecycle change applied atomically.
type StatusTransition struct {
	ID         string
	From       domain.Status
	To         domain.Status
	At         time.Time
	StopReason *string
}
