package engine

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nhiguard/engine/config"
	"github.com/nhiguard/engine/lineage"
)

// Option configures the Engine.
type Option func(*engineConfig)

// engineConfig holds construction-time configuration for an Engine.
type engineConfig struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	store      lineage.Store
	tracerProv trace.TracerProvider
	meterProv  metric.MeterProvider
	clock      func() time.Time
}

// WithConfig sets the path of an engine.yaml file (or a directory holding
// one) to load tunables from.
func WithConfig(path string) Option {
	return func(c *engineConfig) {
		c.configPath = path
	}
}

// WithConfigStruct supplies an already-parsed configuration, taking
// precedence over WithConfig.
func WithConfigStruct(cfg *config.Config) Option {
	return func(c *engineConfig) {
		c.cfg = cfg
	}
}

// WithLogger sets a custom structured logger. If not provided,
// slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithStore sets the lineage store backend. Defaults to an in-memory store;
// pass a lineage.RedisStore or lineage.EtcdStore for durable backing.
func WithStore(store lineage.Store) Option {
	return func(c *engineConfig) {
		c.store = store
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for spans
// around every engine operation. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *engineConfig) {
		c.tracerProv = tp
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for the engine's
// counters. Defaults to no-op instruments.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *engineConfig) {
		c.meterProv = mp
	}
}

// WithClock overrides the engine clock. Intended for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(c *engineConfig) {
		c.clock = clock
	}
}
