package engine

import (
	"time"

	"github.com/nebula-run/flow/engine/emit"
	"github.com/nebula-run/flow/expr"
	"github.com/nebula-run/flow/param"
)

// Option configures an Engine at construction time. Functional options
// keep New's signature stable as configuration surface grows.
type Option func(*engineConfig)

type engineConfig struct {
	maxConcurrentNodes int
	maxTotalWallTime   time.Duration
	maxNodeWallTime    time.Duration
	evaluator          *expr.Evaluator
	resolver           *param.Resolver
	emitter            emit.Emitter
	metrics            *Metrics
}

func defaultConfig() engineConfig {
	return engineConfig{
		maxConcurrentNodes: 8,
		emitter:            emit.NullEmitter{},
	}
}

// WithMaxConcurrentNodes bounds in-flight node tasks. Default 8.
func WithMaxConcurrentNodes(n int) Option {
	return func(c *engineConfig) { c.maxConcurrentNodes = n }
}

// WithMaxTotalWallTime bounds the whole execution's wall-clock time.
// Zero means no limit.
func WithMaxTotalWallTime(d time.Duration) Option {
	return func(c *engineConfig) { c.maxTotalWallTime = d }
}

// WithMaxNodeWallTime sets the default per-node timeout used when a
// NodeDefinition's Policy.Timeout is zero.
func WithMaxNodeWallTime(d time.Duration) Option {
	return func(c *engineConfig) { c.maxNodeWallTime = d }
}

// WithEvaluator supplies a shared expression evaluator. If unset, a
// default-configured one is created.
func WithEvaluator(e *expr.Evaluator) Option {
	return func(c *engineConfig) { c.evaluator = e }
}

// WithResolver supplies a shared parameter resolver. If unset, one is
// built wrapping the configured evaluator.
func WithResolver(r *param.Resolver) Option {
	return func(c *engineConfig) { c.resolver = r }
}

// WithEmitter supplies the event sink. Default is a no-op emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(c *engineConfig) { c.emitter = e }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *engineConfig) { c.metrics = m }
}
