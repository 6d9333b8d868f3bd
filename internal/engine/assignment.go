package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// AssignmentResult is what a caller renders with. IsFallback is true when
// the experiment was not running and nothing was persisted; Created is true
// only for the request that wrote the assignment.
type AssignmentResult struct {
	Variant    string
	IsFallback bool
	HashValue  float64
	AssignedAt time.Time
	Created    bool
}

// GetAssignment returns the entity's variant, bucketing it on first sight.
// While the experiment is not running every entity gets the fallback
// variant and nothing is persisted.
func (e *Engine) GetAssignment(ctx context.Context, experimentID, entityID string) (AssignmentResult, error) {
	if strings.TrimSpace(entityID) == "" {
		return AssignmentResult{}, fmt.Errorf("%w: entity id is required", domain.ErrInvalidEntity)
	}

	exp, err := e.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return AssignmentResult{}, err
	}

	if exp.Status != domain.StatusRunning {
		res := AssignmentResult{Variant: exp.Fallback(), IsFallback: true}
		e.logger.Debug("serving fallback variant",
			"experiment_id", exp.ID,
			"entity_id", entityID,
			"status", string(exp.Status),
			"variant", res.Variant,
		)
		e.recordAssignment(ctx, exp.ID, res)
		return res, nil
	}

	stored, err := e.assignments.Get(ctx, exp.ID, entityID)
	if err != nil {
		return AssignmentResult{}, fmt.Errorf("get assignment: %w", err)
	}
	created := false
	if stored == nil {
		variant, h := domain.Bucket(exp, entityID)
		stored, created, err = e.assignments.InsertIfAbsent(ctx, &domain.Assignment{
			ExperimentID: exp.ID,
			EntityID:     entityID,
			Variant:      variant,
			HashValue:    h,
			HashVersion:  domain.HashVersion,
			AssignedAt:   e.now(),
		})
		if err != nil {
			return AssignmentResult{}, fmt.Errorf("persist assignment: %w", err)
		}
	}

	// The event shares the assignment's timestamp, so appending it again
	// for a stored assignment is a no-op unless an earlier append failed.
	inserted, err := e.events.Append(ctx, domain.NewAssignmentEvent(stored))
	if err != nil {
		e.logger.Error("failed to record assignment event",
			"experiment_id", exp.ID,
			"entity_id", entityID,
			"error", err,
		)
		return AssignmentResult{}, fmt.Errorf("record assignment event: %w", err)
	}
	if inserted && !created {
		e.logger.Warn("repaired missing assignment event",
			"experiment_id", exp.ID,
			"entity_id", entityID,
		)
	}

	res := fromAssignment(stored, created)
	e.recordAssignment(ctx, exp.ID, res)
	return res, nil
}

// ListAssignments pages through persisted assignments ordered by entity id.
func (e *Engine) ListAssignments(ctx context.Context, experimentID, afterEntityID string, limit int) ([]*domain.Assignment, error) {
	if _, err := e.experiments.GetByID(ctx, experimentID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.opts.PageSize
	}
	assignments, err := e.assignments.List(ctx, experimentID, afterEntityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

func fromAssignment(a *domain.Assignment, created bool) AssignmentResult {
	return AssignmentResult{
		Variant:    a.Variant,
		HashValue:  a.HashValue,
		AssignedAt: a.AssignedAt,
		Created:    created,
	}
}

func (e *Engine) recordAssignment(ctx context.Context, experimentID string, res AssignmentResult) {
	e.exporter.RecordAssignment(ctx, ports.AssignmentMetric{
		ExperimentID: experimentID,
		Variant:      res.Variant,
		Fallback:     res.IsFallback,
		Created:      res.Created,
	})
}
