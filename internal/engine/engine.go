// Package engine orchestrates the experimentation workflow: experiment
// registry, lifecycle, assignment, event tracking and results. Pure rules
// live in the domain package; Engine wires them to the repositories.
package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emiliopalmerini/splitlab/internal/adapters/otel"
	"github.com/emiliopalmerini/splitlab/internal/domain"
	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

// DefaultPageSize is the number of events read per aggregation round-trip.
const DefaultPageSize = 500

// Repositories groups the stores the engine depends on.
type Repositories struct {
	Experiments ports.ExperimentRepository
	Assignments ports.AssignmentRepository
	Events      ports.EventRepository
}

// Options tunes engine behavior. Zero values fall back to defaults.
type Options struct {
	Significance        domain.SignificanceOptions
	DefaultDurationDays int
	PageSize            int
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// OptionsFromConfig maps the engine section of the configuration.
func OptionsFromConfig(cfg config.Engine) Options {
	return Options{
		Significance: domain.SignificanceOptions{
			Alpha:         cfg.Alpha,
			MinSampleSize: cfg.MinSampleSize,
		},
		DefaultDurationDays: cfg.DefaultDurationDays,
		PageSize:            cfg.EventPageSize,
	}
}

// Engine is safe for concurrent use. It holds no mutable state of its own;
// all coordination happens in the repositories.
type Engine struct {
	experiments ports.ExperimentRepository
	assignments ports.AssignmentRepository
	events      ports.EventRepository
	aggregator  *Aggregator
	exporter    ports.MetricsExporter
	logger      ports.Logger
	opts        Options
}

// New creates an engine. A nil exporter disables metrics export and a nil
// logger discards log output.
func New(repos Repositories, exporter ports.MetricsExporter, logger ports.Logger, opts Options) *Engine {
	if opts.Significance == (domain.SignificanceOptions{}) {
		opts.Significance = domain.DefaultSignificanceOptions()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.DefaultDurationDays < 0 {
		opts.DefaultDurationDays = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if exporter == nil {
		exporter = otel.NoOpExporter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		experiments: repos.Experiments,
		assignments: repos.Assignments,
		events:      repos.Events,
		aggregator:  NewAggregator(repos.Events, opts.PageSize),
		exporter:    exporter,
		logger:      logger,
		opts:        opts,
	}
}

func (e *Engine) now() time.Time {
	return e.opts.Now().UTC()
}
