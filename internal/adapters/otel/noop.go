package otel

import (
	"context"

	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// NoOpExporter is a metrics exporter that does nothing.
type NoOpExporter struct{}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (NoOpExporter) RecordAssignment(context.Context, ports.AssignmentMetric) {}

func (NoOpExporter) RecordEvent(context.Context, ports.EventMetric) {}

func (NoOpExporter) RecordResults(context.Context, ports.ResultsMetric) {}

func (NoOpExporter) Close(context.Context) error { return nil }

// FromConfig returns an OTLP exporter when cfg enables one and a no-op
// exporter otherwise.
func FromConfig(ctx context.Context, cfg config.OTEL) (ports.MetricsExporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return NewNoOpExporter(), nil
	}
	return NewExporter(ctx, cfg)
}
