package respool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus gauges/counters for a pool, namespaced
// "flow_respool_", mirroring the engine's own metrics wiring so pool and
// execution dashboards compose naturally.
type Metrics struct {
	total       prometheus.Gauge
	idle        prometheus.Gauge
	exhausted   prometheus.Counter
	acquireWait prometheus.Histogram
}

func NewMetrics(registry prometheus.Registerer, poolName string) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		total: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "flow",
			Subsystem:   "respool",
			Name:        "total_resources",
			Help:        "Total live resources (idle + checked out).",
			ConstLabels: prometheus.Labels{"pool": poolName},
		}),
		idle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "flow",
			Subsystem:   "respool",
			Name:        "idle_resources",
			Help:        "Resources currently idle and available for checkout.",
			ConstLabels: prometheus.Labels{"pool": poolName},
		}),
		exhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "flow",
			Subsystem:   "respool",
			Name:        "exhausted_total",
			Help:        "Acquire calls that failed with PoolExhausted.",
			ConstLabels: prometheus.Labels{"pool": poolName},
		}),
		acquireWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "flow",
			Subsystem:   "respool",
			Name:        "acquire_wait_seconds",
			Help:        "Time spent waiting to acquire a resource.",
			ConstLabels: prometheus.Labels{"pool": poolName},
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) SetTotal(v float64) { m.total.Set(v) }
func (m *Metrics) SetIdle(v float64)  { m.idle.Set(v) }
func (m *Metrics) IncExhausted()      { m.exhausted.Inc() }
func (m *Metrics) ObserveAcquireWaitSeconds(s float64) { m.acquireWait.Observe(s) }
