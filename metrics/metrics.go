// Package metrics exposes Prometheus metrics for gateway operations and the
// session lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label used for successful operations. Failures are labelled with
// their error kind.
const OutcomeSuccess = "success"

// Config holds the collector settings.
type Config struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Subsystem string `yaml:"subsystem" json:"subsystem"`
	Path      string `yaml:"path" json:"path"`
	// ProcessMetrics adds the standard Go runtime and process collectors.
	ProcessMetrics bool `yaml:"processMetrics" json:"processMetrics"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Namespace:      "mongo_mcp",
		Path:           "/metrics",
		ProcessMetrics: true,
	}
}

// Collector owns a private registry with the gateway's metric vectors.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SessionActive     prometheus.Gauge
	SessionConnects   prometheus.Counter
}

// New creates a Collector with the default configuration.
func New() *Collector {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Collector with its own Prometheus registry.
func NewWithConfig(cfg Config) *Collector {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	reg := prometheus.NewRegistry()
	ns, sub := cfg.Namespace, cfg.Subsystem

	c := &Collector{
		config:   cfg,
		registry: reg,
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "operations_total",
			Help:      "Total number of gateway operations by outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "operation_duration_seconds",
			Help:      "Duration of gateway operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		SessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "session_active",
			Help:      "1 while a store session is connected, 0 otherwise",
		}),
		SessionConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      "session_connects_total",
			Help:      "Total number of sessions established",
		}),
	}
	reg.MustRegister(c.Operations, c.OperationDuration, c.SessionActive, c.SessionConnects)
	if cfg.ProcessMetrics {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Path returns the configured metrics endpoint path.
func (c *Collector) Path() string { return c.config.Path }

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler that serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveOperation records one finished operation. outcome is
// OutcomeSuccess or the failure kind.
func (c *Collector) ObserveOperation(op, outcome string, d time.Duration) {
	c.Operations.WithLabelValues(op, outcome).Inc()
	c.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SessionChanged records a session transition. Every transition into the
// connected state, including replacing a live session, counts a connect.
func (c *Collector) SessionChanged(connected bool) {
	if !connected {
		c.SessionActive.Set(0)
		return
	}
	c.SessionActive.Set(1)
	c.SessionConnects.Inc()
}

// NewServer returns an HTTP server exposing the handler at the configured
// path on addr.
func (c *Collector) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
