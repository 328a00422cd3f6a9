package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "treeline").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for render duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "treeline",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus instrumentation for the render loop.
// All observe methods are safe on a nil receiver, so sessions run with
// metrics disabled without checks at every call site.
type Metrics struct {
	rendersTotal     prometheus.Counter
	renderFailures   prometheus.Counter
	renderDuration   prometheus.Histogram
	diffsSent        prometheus.Counter
	fullReplacements prometheus.Counter
	diffBytes        prometheus.Counter
	eventsTotal      prometheus.Counter
	activeSessions   prometheus.Gauge
}

// NewMetrics registers and returns the server metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		rendersTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "renders_total",
			Help:        "Total number of completed render cycles.",
			ConstLabels: config.ConstLabels,
		}),
		renderFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "render_failures_total",
			Help:        "Total number of render cycles that failed.",
			ConstLabels: config.ConstLabels,
		}),
		renderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "render_duration_seconds",
			Help:        "Duration of the render cycle, template through send.",
			Buckets:     config.Buckets,
			ConstLabels: config.ConstLabels,
		}),
		diffsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "diffs_sent_total",
			Help:        "Total number of diff frames sent to clients.",
			ConstLabels: config.ConstLabels,
		}),
		fullReplacements: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "full_replacements_total",
			Help:        "Total number of diffs that replaced the whole tree.",
			ConstLabels: config.ConstLabels,
		}),
		diffBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "diff_bytes_total",
			Help:        "Total encoded diff payload bytes sent.",
			ConstLabels: config.ConstLabels,
		}),
		eventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "events_total",
			Help:        "Total number of client events received.",
			ConstLabels: config.ConstLabels,
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "active_sessions",
			Help:        "Number of live sessions.",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) renderDone(d time.Duration) {
	if m == nil {
		return
	}
	m.rendersTotal.Inc()
	m.renderDuration.Observe(d.Seconds())
}

func (m *Metrics) renderFailed() {
	if m == nil {
		return
	}
	m.renderFailures.Inc()
}

func (m *Metrics) diffSent(bytes int, full bool) {
	if m == nil {
		return
	}
	m.diffsSent.Inc()
	m.diffBytes.Add(float64(bytes))
	if full {
		m.fullReplacements.Inc()
	}
}

func (m *Metrics) eventReceived() {
	if m == nil {
		return
	}
	m.eventsTotal.Inc()
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
