package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/emiliopalmerini/splitlab/internal/infrastructure/config"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

const (
	serviceName    = "splitlab"
	serviceVersion = "1.0.0"
)

// ErrDisabled is returned by NewExporter when export is not configured.
var ErrDisabled = errors.New("OTEL exporter is disabled or endpoint not configured")

// Exporter exports engine metrics to an OTEL Collector.
type Exporter struct {
	provider         *sdkmetric.MeterProvider
	assignmentsTotal metric.Int64Counter
	eventsTotal      metric.Int64Counter
	resultsDuration  metric.Float64Histogram
	eventsScanned    metric.Int64Histogram
}

// NewExporter creates an OTLP/gRPC metrics exporter.
func NewExporter(ctx context.Context, cfg config.OTEL) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, ErrDisabled
	}

	exp, err := otlpmetricgrpc.New(ctx, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	e, err := newExporter(provider)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	return e, nil
}

// clientOptions builds the OTLP client options. Plaintext transport is set
// once, through the gRPC dial credentials.
func clientOptions(cfg config.OTEL) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	}
	return opts
}

// newExporter registers the instruments on provider.
func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)

	assignmentsTotal, err := meter.Int64Counter(
		"splitlab_assignments_total",
		metric.WithDescription("Assignment lookups by variant"),
		metric.WithUnit("{assignment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating assignments counter: %w", err)
	}

	eventsTotal, err := meter.Int64Counter(
		"splitlab_events_total",
		metric.WithDescription("Tracked events by type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}

	resultsDuration, err := meter.Float64Histogram(
		"splitlab_results_duration_seconds",
		metric.WithDescription("Time spent computing experiment results"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating results histogram: %w", err)
	}

	eventsScanned, err := meter.Int64Histogram(
		"splitlab_results_events_scanned",
		metric.WithDescription("Events read per results computation"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scanned histogram: %w", err)
	}

	return &Exporter{
		provider:         provider,
		assignmentsTotal: assignmentsTotal,
		eventsTotal:      eventsTotal,
		resultsDuration:  resultsDuration,
		eventsScanned:    eventsScanned,
	}, nil
}

func (e *Exporter) RecordAssignment(ctx context.Context, m ports.AssignmentMetric) {
	e.assignmentsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("experiment_id", m.ExperimentID),
		attribute.String("variant", m.Variant),
		attribute.Bool("fallback", m.Fallback),
		attribute.Bool("created", m.Created),
	))
}

func (e *Exporter) RecordEvent(ctx context.Context, m ports.EventMetric) {
	e.eventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("experiment_id", m.ExperimentID),
		attribute.String("event_type", m.EventType),
		attribute.Bool("duplicate", m.Duplicate),
	))
}

func (e *Exporter) RecordResults(ctx context.Context, m ports.ResultsMetric) {
	opt := metric.WithAttributes(
		attribute.String("experiment_id", m.ExperimentID),
		attribute.String("action", m.Action),
	)
	e.resultsDuration.Record(ctx, m.Duration.Seconds(), opt)
	e.eventsScanned.Record(ctx, m.EventsScanned, opt)
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
