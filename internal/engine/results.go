package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// Results is the full analysis of an experiment at GeneratedAt.
// AssignedEntities counts persisted assignments and should equal the
// summed TotalUsers of the variants.
type Results struct {
	Experiment       *domain.Experiment
	Metrics          domain.MetricsSnapshot
	Significance     []domain.SignificanceResult
	Recommendation   domain.Recommendation
	AssignedEntities int64
	GeneratedAt      time.Time
}

// GetResults aggregates events, tests every variant against control and
// derives a recommendation. It never blocks writers.
func (e *Engine) GetResults(ctx context.Context, experimentID string) (*Results, error) {
	started := time.Now()

	exp, err := e.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	snapshot, err := e.aggregator.Aggregate(ctx, exp)
	if err != nil {
		return nil, err
	}

	assigned, err := e.assignments.Count(ctx, exp.ID)
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}
	var users int64
	for _, v := range snapshot.Variants {
		users += v.TotalUsers
	}
	if users != assigned {
		e.logger.Warn("assignment events out of step with assignments",
			"experiment_id", exp.ID,
			"users", users,
			"assigned", assigned,
		)
	}

	now := e.now()
	significance := domain.CompareAll(snapshot, exp.ControlVariant, e.opts.Significance)
	rec := domain.Recommend(exp, significance, now)

	e.logger.Debug("results computed",
		"experiment_id", exp.ID,
		"events_scanned", snapshot.EventsScanned,
		"action", rec.Action,
	)
	e.exporter.RecordResults(ctx, ports.ResultsMetric{
		ExperimentID:  exp.ID,
		Action:        rec.Action,
		EventsScanned: snapshot.EventsScanned,
		Duration:      time.Since(started),
	})

	return &Results{
		Experiment:       exp,
		Metrics:          snapshot,
		Significance:     significance,
		Recommendation:   rec,
		AssignedEntities: assigned,
		GeneratedAt:      now,
	}, nil
}
