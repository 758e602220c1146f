package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nhiguard/engine/config"
	"github.com/nhiguard/engine/drift"
	"github.com/nhiguard/engine/identity"
	"github.com/nhiguard/engine/lineage"
	"github.com/nhiguard/engine/morph"
)

// Engine is the facade over the three analysis services. It is safe for
// concurrent use; operations on different identities never block each other.
type Engine struct {
	lineage  *lineage.Service
	detector *morph.Detector
	analyzer *drift.Analyzer
	tel      *telemetry
}

// New creates an Engine wired to the given collaborators. With no options
// it uses an in-memory lineage store, the default drift weights and
// thresholds, no custom morphing rules, slog.Default() logging, and the
// global tracer provider.
func New(deps identity.Deps, opts ...Option) (*Engine, error) {
	if err := deps.Validate(); err != nil {
		return nil, NewValidationError("engine.New", err)
	}

	ec := &engineConfig{}
	for _, opt := range opts {
		opt(ec)
	}

	cfg := ec.cfg
	if cfg == nil && ec.configPath != "" {
		loaded, err := config.Load(ec.configPath)
		if err != nil {
			return nil, NewValidationError("engine.New", err)
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewValidationError("engine.New", err)
	}

	logger := ec.logger
	store := ec.store
	if store == nil {
		store = lineage.NewMemoryStore()
	}

	tel, err := newTelemetry(ec.tracerProv, ec.meterProv)
	if err != nil {
		return nil, NewInternalError("engine.New", err)
	}

	rules, err := buildRules(cfg.Morph.Rules)
	if err != nil {
		return nil, NewValidationError("engine.New", err)
	}

	detectorOpts := []morph.DetectorOption{}
	if cfg.Morph.HistoryLimit > 0 {
		detectorOpts = append(detectorOpts, morph.WithHistoryLimit(cfg.Morph.HistoryLimit))
	}
	if len(rules) > 0 {
		detectorOpts = append(detectorOpts, morph.WithRules(rules))
	}

	// Config fields default per field: a partially-specified weights or
	// thresholds block tunes only the fields it names.
	weights := cfg.Drift.Weights.WithDefaults()
	thresholds := cfg.Drift.Thresholds.WithDefaults()
	analyzerOpts := []drift.AnalyzerOption{
		drift.WithWeights(drift.Weights{
			APIUsage:    weights.APIUsage,
			TimePattern: weights.TimePattern,
			Geographic:  weights.Geographic,
		}),
		drift.WithThresholds(drift.Thresholds{
			Critical: thresholds.Critical,
			High:     thresholds.High,
			Medium:   thresholds.Medium,
		}),
	}
	if cfg.Drift.ActivityWindow > 0 {
		analyzerOpts = append(analyzerOpts, drift.WithActivityWindow(cfg.Drift.ActivityWindow))
	}

	if ec.clock != nil {
		detectorOpts = append(detectorOpts, morph.WithClock(ec.clock))
		analyzerOpts = append(analyzerOpts, drift.WithClock(ec.clock))
	}

	svc := lineage.NewService(store, deps.Identities, deps.Audit, logger)
	if ec.clock != nil {
		svc = svc.WithClock(ec.clock)
	}

	return &Engine{
		lineage:  svc,
		detector: morph.NewDetector(deps.Audit, logger, detectorOpts...),
		analyzer: drift.NewAnalyzer(deps.Activities, deps.Baselines, logger, analyzerOpts...),
		tel:      tel,
	}, nil
}

// buildRules converts configured rule declarations into compiled morphing
// rules, validating event types and CEL expressions.
func buildRules(declared []config.RuleConfig) ([]morph.CompiledRule, error) {
	if len(declared) == 0 {
		return nil, nil
	}
	rules := make([]morph.Rule, 0, len(declared))
	for _, rc := range declared {
		eventType, err := morph.ParseEventType(rc.Event)
		if err != nil {
			return nil, fmt.Errorf("morph.rules.%s: %w", rc.Name, err)
		}
		rules = append(rules, morph.Rule{
			Name:  rc.Name,
			Event: eventType,
			Risk:  rc.Risk,
			Expr:  rc.Expr,
		})
	}
	return morph.CompileRules(rules)
}

// RecordNode records one provenance fact: the identity was derived from its
// parent via the request's relationship. The identity must exist and must
// not already have a lineage node.
func (e *Engine) RecordNode(ctx context.Context, req lineage.RecordRequest) (*lineage.Node, error) {
	const op = "Engine.RecordNode"
	ctx, span := e.startSpan(ctx, op, req.IdentityID)
	defer span.End()

	node, err := e.lineage.RecordNode(ctx, req)
	if err != nil {
		return nil, e.fail(ctx, span, op, err)
	}

	e.tel.nodesRecorded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("relationship", req.Relationship.String())))
	return node, nil
}

// LineageGraph materializes the lineage subtree containing the identity,
// bounded by lineage.MaxTraversalDepth. An unknown identity yields an empty
// graph.
func (e *Engine) LineageGraph(ctx context.Context, identityID string) (*lineage.Graph, error) {
	const op = "Engine.LineageGraph"
	ctx, span := e.startSpan(ctx, op, identityID)
	defer span.End()

	graph, err := e.lineage.Graph(ctx, identityID)
	if err != nil {
		return nil, e.fail(ctx, span, op, err)
	}
	span.SetAttributes(attribute.Int("lineage.nodes", len(graph.Nodes)))
	return graph, nil
}

// Ancestors returns the identity's ancestor chain, nearest first.
func (e *Engine) Ancestors(ctx context.Context, identityID string) ([]*lineage.Node, error) {
	const op = "Engine.Ancestors"
	ctx, span := e.startSpan(ctx, op, identityID)
	defer span.End()

	ancestors, err := e.lineage.Ancestors(ctx, identityID)
	if err != nil {
		return nil, e.fail(ctx, span, op, err)
	}
	return ancestors, nil
}

// Descendants returns every identity derived from the given one, directly
// or transitively.
func (e *Engine) Descendants(ctx context.Context, identityID string) ([]*lineage.Node, error) {
	const op = "Engine.Descendants"
	ctx, span := e.startSpan(ctx, op, identityID)
	defer span.End()

	descendants, err := e.lineage.Descendants(ctx, identityID)
	if err != nil {
		return nil, e.fail(ctx, span, op, err)
	}
	return descendants, nil
}

// DetectMorphing compares two state snapshots of one identity and returns
// every morphing event the transition triggers. Comparing identical
// snapshots always returns no events.
func (e *Engine) DetectMorphing(ctx context.Context, identityID string, previous, next identity.Snapshot) ([]*morph.Event, error) {
	const op = "Engine.DetectMorphing"
	ctx, span := e.startSpan(ctx, op, identityID)
	defer span.End()

	events, err := e.detector.Detect(ctx, identityID, previous, next)
	if err != nil {
		return nil, e.fail(ctx, span, op, err)
	}

	for _, ev := range events {
		e.tel.morphEvents.Add(ctx, 1, metric.WithAttributes(
			attribute.String("event_type", ev.Type.String())))
	}
	span.SetAttributes(attribute.Int("morph.events", len(events)))
	return events, nil
}

// MorphingHistory returns up to limit recently detected events for the
// identity, newest first, from the engine's bounded in-memory buffer.
func (e *Engine) MorphingHistory(identityID string, limit int) []*morph.Event {
	return e.detector.History(identityID, limit)
}

// AnalyzeDrift computes a fresh drift analysis for the identity from its
// recent activity window and stored baseline. A missing baseline yields a
// zero score and a low risk level.
func (e *Engine) AnalyzeDrift(ctx context.Context, identityID string) (*drift.Analysis, error) {
	const op = "Engine.AnalyzeDrift"
	ctx, span := e.startSpan(ctx, op, identityID)
	defer span.End()

	analysis, err := e.analyzer.Analyze(ctx, identityID)
	if err != nil {
		return nil, e.fail(ctx, span, op, err)
	}

	e.tel.driftAnalyses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("risk_level", analysis.RiskLevel.String())))
	span.SetAttributes(attribute.Float64("drift.score", analysis.DriftScore))
	return analysis, nil
}

func (e *Engine) startSpan(ctx context.Context, op, identityID string) (context.Context, trace.Span) {
	return e.tel.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("identity.id", identityID)))
}

// fail wraps a service error into the engine taxonomy, records it on the
// span, and counts it.
func (e *Engine) fail(ctx context.Context, span trace.Span, op string, err error) error {
	wrapped := wrapError(op, err)
	span.RecordError(wrapped)
	span.SetStatus(codes.Error, wrapped.Kind)
	e.tel.operationFails.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("kind", wrapped.Kind)))
	return wrapped
}

// wrapError maps sentinel errors from the service packages onto the
// engine's error kinds.
func wrapError(op string, err error) *EngineError {
	switch {
	case errors.Is(err, identity.ErrIdentityNotFound):
		return NewNotFoundError(op, err)
	case errors.Is(err, lineage.ErrNodeExists):
		return NewConflictError(op, err)
	case errors.Is(err, identity.ErrInvalidSnapshot), errors.Is(err, identity.ErrInvalidInput):
		return NewValidationError(op, err)
	case errors.Is(err, lineage.ErrStorageFailed):
		return NewStorageError(op, err)
	case errors.Is(err, lineage.ErrNodeNotFound):
		return NewNotFoundError(op, err)
	default:
		return NewInternalError(op, err)
	}
}
