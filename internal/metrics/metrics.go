package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for one crawl process.
// A nil *Metrics is valid and all methods become no-ops.
type Metrics struct {
	registry *prometheus.Registry

	// tasksClaimed counts frontier claims, labeled by retailer.
	tasksClaimed *prometheus.CounterVec

	// tasksCompleted counts finished tasks by retailer and outcome
	// (leaf, has_children, failed).
	tasksCompleted *prometheus.CounterVec

	// tasksRetried counts requeues by retailer and reason (transient,
	// challenge).
	tasksRetried *prometheus.CounterVec

	// nodesDiscovered counts newly created category nodes by retailer.
	nodesDiscovered *prometheus.CounterVec

	// frontierLive tracks the number of live tasks (queued plus
	// claimed).
	frontierLive prometheus.Gauge

	// exploreDuration observes page exploration latency by retailer.
	exploreDuration *prometheus.HistogramVec
}

// New creates a Metrics with a fresh registry. The registry includes
// the standard Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		tasksClaimed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfmap_tasks_claimed_total",
				Help: "Frontier tasks claimed by workers.",
			},
			[]string{"retailer"},
		),
		tasksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfmap_tasks_completed_total",
				Help: "Frontier tasks finished, by outcome.",
			},
			[]string{"retailer", "outcome"},
		),
		tasksRetried: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfmap_tasks_retried_total",
				Help: "Frontier tasks requeued for retry, by reason.",
			},
			[]string{"retailer", "reason"},
		),
		nodesDiscovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfmap_nodes_discovered_total",
				Help: "New category nodes created in the store.",
			},
			[]string{"retailer"},
		),
		frontierLive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shelfmap_frontier_live_tasks",
				Help: "Live frontier tasks (queued plus claimed).",
			},
		),
		exploreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelfmap_explore_duration_seconds",
				Help:    "Page exploration latency.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"retailer"},
		),
	}
	registry.MustRegister(
		m.tasksClaimed,
		m.tasksCompleted,
		m.tasksRetried,
		m.nodesDiscovered,
		m.frontierLive,
		m.exploreDuration,
	)
	return m
}

// TaskClaimed records one claimed task.
func (m *Metrics) TaskClaimed(retailer string) {
	if m == nil {
		return
	}
	m.tasksClaimed.WithLabelValues(retailer).Inc()
}

// TaskCompleted records one finished task with its outcome.
func (m *Metrics) TaskCompleted(retailer, outcome string) {
	if m == nil {
		return
	}
	m.tasksCompleted.WithLabelValues(retailer, outcome).Inc()
}

// TaskRetried records one requeue with its reason.
func (m *Metrics) TaskRetried(retailer, reason string) {
	if m == nil {
		return
	}
	m.tasksRetried.WithLabelValues(retailer, reason).Inc()
}

// NodeDiscovered records one newly created category node.
func (m *Metrics) NodeDiscovered(retailer string) {
	if m == nil {
		return
	}
	m.nodesDiscovered.WithLabelValues(retailer).Inc()
}

// SetFrontierLive updates the live-task gauge.
func (m *Metrics) SetFrontierLive(n int) {
	if m == nil {
		return
	}
	m.frontierLive.Set(float64(n))
}

// ObserveExplore records one page exploration duration in seconds.
func (m *Metrics) ObserveExplore(retailer string, seconds float64) {
	if m == nil {
		return
	}
	m.exploreDuration.WithLabelValues(retailer).Observe(seconds)
}

// Handler returns an HTTP handler serving the metrics in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
