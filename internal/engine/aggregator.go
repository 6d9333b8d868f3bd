package engine

import (
	"context"
	"fmt"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// Aggregator computes metrics snapshots with a paged scan of the event store.
// Memory use is bounded by one page plus the per-entity attribution maps.
type Aggregator struct {
	events   ports.EventRepository
	pageSize int
}

func NewAggregator(events ports.EventRepository, pageSize int) *Aggregator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Aggregator{events: events, pageSize: pageSize}
}

// Aggregate reads every assignment and metric event of exp once.
func (a *Aggregator) Aggregate(ctx context.Context, exp *domain.Experiment) (domain.MetricsSnapshot, error) {
	types := make([]string, 0, 2+len(exp.SecondaryMetrics))
	types = append(types, domain.EventTypeAssignment, exp.PrimaryMetric)
	types = append(types, exp.SecondaryMetrics...)
	q := domain.EventQuery{ExperimentID: exp.ID, EventTypes: types}

	acc := domain.NewMetricsAccumulator(exp)
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return domain.MetricsSnapshot{}, err
		}
		page, err := a.events.Page(ctx, q, after, a.pageSize)
		if err != nil {
			return domain.MetricsSnapshot{}, fmt.Errorf("scan events: %w", err)
		}
		for _, ev := range page.Events {
			acc.Add(ev)
		}
		if page.Done || page.NextSeq <= after {
			break
		}
		after = page.NextSeq
	}
	return acc.Snapshot(), nil
}
