// Package metrics exposes pool and evaluation counters for Prometheus.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sandbench"

type Collector struct {
	registry *prometheus.Registry

	tasks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	launches *prometheus.CounterVec
	workers  *prometheus.GaugeVec
}

// New registers the collector on a private registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Evaluation tasks by execution mode and outcome.",
		}, []string{"mode", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall-clock time of evaluation tasks, including worker start in single-use mode.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"mode"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_launches_total",
			Help:      "Worker processes started, by reason.",
		}, []string{"reason"}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Pool workers by state.",
		}, []string{"state"}),
	}
	c.registry.MustRegister(c.tasks, c.duration, c.launches, c.workers)
	return c
}

// ObserveTask records one finished task. outcome is "ok" or a failure kind.
func (c *Collector) ObserveTask(mode, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.tasks.WithLabelValues(mode, outcome).Inc()
	c.duration.WithLabelValues(mode).Observe(d.Seconds())
}

func (c *Collector) WorkerLaunched(reason string) {
	if c == nil {
		return
	}
	c.launches.WithLabelValues(reason).Inc()
}

// SetWorkers replaces the per-state worker gauge.
func (c *Collector) SetWorkers(counts map[string]int) {
	if c == nil {
		return
	}
	c.workers.Reset()
	for state, n := range counts {
		c.workers.WithLabelValues(state).Set(float64(n))
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
