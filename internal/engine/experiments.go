package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// CreateExperiment validates cfg and stores a new Draft experiment.
func (e *Engine) CreateExperiment(ctx context.Context, cfg domain.ExperimentConfig) (*domain.Experiment, error) {
	if cfg.PlannedDurationDays == 0 {
		cfg.PlannedDurationDays = e.opts.DefaultDurationDays
	}

	exp, err := domain.NewExperiment(e.opts.NewID(), cfg, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.experiments.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("create experiment: %w", err)
	}

	e.logger.Info("experiment created",
		"experiment_id", exp.ID,
		"name", exp.Name,
		"variants", len(exp.Variants),
		"primary_metric", exp.PrimaryMetric,
	)
	return exp, nil
}

func (e *Engine) GetExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	return e.experiments.GetByID(ctx, id)
}

func (e *Engine) GetExperimentByName(ctx context.Context, name string) (*domain.Experiment, error) {
	return e.experiments.GetByName(ctx, name)
}

// ListExperiments returns experiments matching filter in creation order.
func (e *Engine) ListExperiments(ctx context.Context, filter domain.ExperimentFilter) ([]*domain.Experiment, error) {
	return e.experiments.List(ctx, filter)
}

// StartExperiment moves a Draft experiment to Running.
func (e *Engine) StartExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	return e.transition(ctx, id, domain.StatusRunning, nil, (*domain.Experiment).CanStart, domain.ErrExperimentNotRunnable)
}

// StopExperiment ends a Running experiment early. A reason is required.
func (e *Engine) StopExperiment(ctx context.Context, id, reason string) (*domain.Experiment, error) {
	return e.end(ctx, id, domain.StatusStopped, reason)
}

// CompleteExperiment ends a Running experiment that ran its course.
func (e *Engine) CompleteExperiment(ctx context.Context, id, reason string) (*domain.Experiment, error) {
	return e.end(ctx, id, domain.StatusCompleted, reason)
}

func (e *Engine) end(ctx context.Context, id string, to domain.Status, reason string) (*domain.Experiment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrStopReasonRequired
	}
	return e.transition(ctx, id, to, &reason, (*domain.Experiment).CanStop, domain.ErrExperimentNotStoppable)
}

// transition applies a compare-and-set status change. When another caller
// changes the status first, the guard is re-evaluated against the fresh row.
func (e *Engine) transition(
	ctx context.Context,
	id string,
	to domain.Status,
	reason *string,
	guard func(*domain.Experiment) error,
	conflict error,
) (*domain.Experiment, error) {
	exp, err := e.experiments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(exp); err != nil {
		return nil, err
	}

	ok, err := e.experiments.Transition(ctx, ports.StatusTransition{
		ID:         id,
		From:       exp.Status,
		To:         to,
		At:         e.now(),
		StopReason: reason,
	})
	if err != nil {
		return nil, fmt.Errorf("update experiment status: %w", err)
	}

	updated, err := e.experiments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := guard(updated); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: concurrent status change on %s", conflict, id)
	}

	e.logger.Info("experiment status changed",
		"experiment_id", id,
		"from", string(exp.Status),
		"to", string(to),
	)
	return updated, nil
}
