package cred

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus counters for credential operations and
// cache-aside effectiveness, namespaced "flow_cred_".
type Metrics struct {
	ops       *prometheus.CounterVec
	cacheHit  *prometheus.CounterVec
	cacheMiss *prometheus.CounterVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	return &Metrics{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flow",
			Subsystem: "cred",
			Name:      "operations_total",
			Help:      "Credential manager operations by kind.",
		}, []string{"op"}),
		cacheHit: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flow",
			Subsystem: "cred",
			Name:      "cache_hits_total",
			Help:      "Cache-aside hits by operation.",
		}, []string{"op"}),
		cacheMiss: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flow",
			Subsystem: "cred",
			Name:      "cache_misses_total",
			Help:      "Cache-aside misses by operation.",
		}, []string{"op"}),
	}
}

func (m *Metrics) IncOp(op string)        { m.ops.WithLabelValues(op).Inc() }
func (m *Metrics) IncCacheHit(op string)  { m.cacheHit.WithLabelValues(op).Inc() }
func (m *Metrics) IncCacheMiss(op string) { m.cacheMiss.WithLabelValues(op).Inc() }
