package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this module in traces and metrics.
const instrumentationName = "github.com/nhiguard/engine"

// NewTracerProvider creates a TracerProvider with the engine's service
// resource and the given exporter. Callers embedding the engine in a larger
// service usually pass their own provider through WithTracerProvider
// instead; this helper covers standalone use.
func NewTracerProvider(exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("nhi-lineage-engine"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// telemetry bundles the tracer and the engine's instruments.
type telemetry struct {
	tracer trace.Tracer

	nodesRecorded  metric.Int64Counter
	morphEvents    metric.Int64Counter
	driftAnalyses  metric.Int64Counter
	operationFails metric.Int64Counter
}

// newTelemetry builds the engine instruments. A nil tracer provider falls
// back to the global provider; a nil meter provider falls back to no-op
// instruments so the hot path never branches on instrumentation presence.
func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}

	meter := mp.Meter(instrumentationName)

	nodesRecorded, err := meter.Int64Counter("engine.lineage.nodes_recorded",
		metric.WithDescription("Lineage nodes recorded, by relationship"))
	if err != nil {
		return nil, fmt.Errorf("create nodes_recorded counter: %w", err)
	}

	morphEvents, err := meter.Int64Counter("engine.morph.events_detected",
		metric.WithDescription("Morphing events detected, by event type"))
	if err != nil {
		return nil, fmt.Errorf("create events_detected counter: %w", err)
	}

	driftAnalyses, err := meter.Int64Counter("engine.drift.analyses",
		metric.WithDescription("Drift analyses performed, by risk level"))
	if err != nil {
		return nil, fmt.Errorf("create analyses counter: %w", err)
	}

	operationFails, err := meter.Int64Counter("engine.operation_failures",
		metric.WithDescription("Failed engine operations, by operation and kind"))
	if err != nil {
		return nil, fmt.Errorf("create operation_failures counter: %w", err)
	}

	return &telemetry{
		tracer:         tp.Tracer(instrumentationName),
		nodesRecorded:  nodesRecorded,
		morphEvents:    morphEvents,
		driftAnalyses:  driftAnalyses,
		operationFails: operationFails,
	}, nil
}
