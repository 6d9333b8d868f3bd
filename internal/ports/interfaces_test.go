package ports_test

import (
	"log/slog"
	"testing"

	"github.com/emiliopalmerini/splitlab/internal/adapters/memory"
	"github.com/emiliopalmerini/splitlab/internal/adapters/otel"
	"github.com/emiliopalmerini/splitlab/internal/adapters/turso"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// Compile-time interface conformance checks.
// These verify that concrete adapters properly implement their port interfaces.

func TestExperimentRepositoryConformance(t *testing.T) {
	var _ ports.ExperimentRepository = (*turso.ExperimentRepository)(nil)
	var _ ports.ExperimentRepository = (*memory.ExperimentRepository)(nil)
}

func TestAssignmentRepositoryConformance(t *testing.T) {
	var _ ports.AssignmentRepository = (*turso.AssignmentRepository)(nil)
	var _ ports.AssignmentRepository = (*memory.AssignmentRepository)(nil)
}

func TestEventRepositoryConformance(t *testing.T) {
	var _ ports.EventRepository = (*turso.EventRepository)(nil)
	var _ ports.EventRepository = (*memory.EventRepository)(nil)
}

func TestMetricsExporterConformance(t *testing.T) {
	var _ ports.MetricsExporter = (*otel.Exporter)(nil)
	var _ ports.MetricsExporter = (*otel.NoOpExporter)(nil)
}

func TestLoggerConformance(t *testing.T) {
	var _ ports.Logger = (*slog.Logger)(nil)
}
