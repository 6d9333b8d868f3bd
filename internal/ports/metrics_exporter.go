package ports

import (
	"context"
	"time"
)

// MetricsExporter exports engine activity to an external observability system.
type MetricsExporter interface {
	// RecordAssignment records one GetAssignment outcome.
	RecordAssignment(ctx context.Context, m AssignmentMetric)
	// RecordEvent records one TrackEvent outcome.
	RecordEvent(ctx context.Context, m EventMetric)
	// RecordResults records one GetResults computation.
	RecordResults(ctx context.Context, m ResultsMetric)
	// Close shuts down the exporter and flushes any pending metrics.
	Close(ctx context.Context) error
}

type AssignmentMetric struct {
	ExperimentID string
	Variant      string
	Fallback     bool
	Created      bool
}

type EventMetric struct {
	ExperimentID string
	EventType    string
	Duplicate    bool
}

type ResultsMetric struct {
	ExperimentID  string
	Action        string
	EventsScanned int64
	Duration      time.Duration
}
