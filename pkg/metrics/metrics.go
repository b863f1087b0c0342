package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the engine's Prometheus metrics on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry   *prometheus.Registry
	executions *prometheus.CounterVec
	rejections *prometheus.CounterVec
	latency    prometheus.Histogram
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triggerswap",
			Name:      "executions_total",
			Help:      "Orders executed, by order type and side.",
		}, []string{"type", "side"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triggerswap",
			Name:      "rejections_total",
			Help:      "Execution requests rolled back, by error kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "triggerswap",
			Name:      "execution_seconds",
			Help:      "Time spent inside one execution unit of work.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
	c.registry.MustRegister(
		c.executions,
		c.rejections,
		c.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Executed(orderType, side string, took time.Duration) {
	if c == nil {
		return
	}
	c.executions.WithLabelValues(orderType, side).Inc()
	c.latency.Observe(took.Seconds())
}

func (c *Collector) Rejected(kind string, took time.Duration) {
	if c == nil {
		return
	}
	c.rejections.WithLabelValues(kind).Inc()
	c.latency.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
