package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus instrumentation for the frontier
// scheduler, namespaced "flow_engine_" following the teacher's
// PrometheusMetrics layout (inflight/queue gauges, per-node-status
// latency histogram, retry/skip/cancellation counters).
type Metrics struct {
	inflightNodes prometheus.Gauge
	frontierDepth prometheus.Gauge

	nodeLatency *prometheus.HistogramVec

	retries      *prometheus.CounterVec
	skips        *prometheus.CounterVec
	nodeFailures *prometheus.CounterVec
	executions   *prometheus.CounterVec
}

// NewMetrics registers the engine's metrics against registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flow", Subsystem: "engine", Name: "inflight_nodes",
			Help: "Current number of nodes executing concurrently.",
		}),
		frontierDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flow", Subsystem: "engine", Name: "frontier_depth",
			Help: "Current number of nodes waiting in the ready queue.",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flow", Subsystem: "engine", Name: "node_latency_seconds",
			Help:    "Node execution duration in seconds.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}, []string{"node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flow", Subsystem: "engine", Name: "retries_total",
			Help: "Cumulative retry attempts across all nodes.",
		}, []string{"node_id"}),
		skips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flow", Subsystem: "engine", Name: "skips_total",
			Help: "Cumulative node skips, including cascaded skip propagation.",
		}, []string{"node_id"}),
		nodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flow", Subsystem: "engine", Name: "node_failures_total",
			Help: "Cumulative node failures.",
		}, []string{"node_id"}),
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flow", Subsystem: "engine", Name: "executions_total",
			Help: "Cumulative workflow executions by terminal status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) setInflight(n int)      { m.inflightNodes.Set(float64(n)) }
func (m *Metrics) setFrontierDepth(n int) { m.frontierDepth.Set(float64(n)) }

func (m *Metrics) observeNodeLatency(nodeID, status string, seconds float64) {
	m.nodeLatency.WithLabelValues(nodeID, status).Observe(seconds)
}

func (m *Metrics) incRetry(nodeID string)       { m.retries.WithLabelValues(nodeID).Inc() }
func (m *Metrics) incSkip(nodeID string)        { m.skips.WithLabelValues(nodeID).Inc() }
func (m *Metrics) incNodeFailure(nodeID string) { m.nodeFailures.WithLabelValues(nodeID).Inc() }
func (m *Metrics) incExecution(status string)   { m.executions.WithLabelValues(status).Inc() }
