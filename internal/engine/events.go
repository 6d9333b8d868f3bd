package engine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// TrackEventInput is a caller-supplied event. A zero Timestamp is replaced
// by the current time, which makes the call non-idempotent; callers that
// retry should pass their own timestamp.
type TrackEventInput struct {
	ExperimentID string
	EntityID     string
	EventType    string
	Properties   map[string]string
	Timestamp    time.Time
}

// Ack reports the outcome of TrackEvent. Duplicate is true when an event
// with the same natural key was already stored.
type Ack struct {
	Recorded  bool
	Duplicate bool
	Timestamp time.Time
}

// TrackEvent appends a custom event. Events are accepted in any lifecycle
// state so late conversions of a stopped experiment are still counted.
func (e *Engine) TrackEvent(ctx context.Context, in TrackEventInput) (Ack, error) {
	if in.EventType == domain.EventTypeAssignment {
		return Ack{}, fmt.Errorf("%w: %q events are recorded by the engine", domain.ErrInvalidEvent, domain.EventTypeAssignment)
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}
	event := &domain.Event{
		ExperimentID: in.ExperimentID,
		EntityID:     in.EntityID,
		EventType:    in.EventType,
		Properties:   maps.Clone(in.Properties),
		Timestamp:    ts.UTC(),
	}
	if err := event.Validate(); err != nil {
		return Ack{}, err
	}
	if _, err := e.experiments.GetByID(ctx, in.ExperimentID); err != nil {
		return Ack{}, err
	}

	inserted, err := e.events.Append(ctx, event)
	if err != nil {
		return Ack{}, fmt.Errorf("append event: %w", err)
	}
	if !inserted {
		e.logger.Debug("duplicate event ignored",
			"experiment_id", event.ExperimentID,
			"entity_id", event.EntityID,
			"event_type", event.EventType,
		)
	}

	e.exporter.RecordEvent(ctx, ports.EventMetric{
		ExperimentID: event.ExperimentID,
		EventType:    event.EventType,
		Duplicate:    !inserted,
	})
	return Ack{Recorded: inserted, Duplicate: !inserted, Timestamp: event.Timestamp}, nil
}
