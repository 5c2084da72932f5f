package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each collector
// owns its registry, so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Argument service metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	NodesPublished    prometheus.Counter
	FrontierSize      prometheus.Histogram
	DraftsDiscarded   prometheus.Counter

	// Store metrics
	StoreCommits *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "argument_operations_total",
				Help:      "Argument service operations by outcome",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "argument_operation_duration_seconds",
				Help:      "Argument service operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		NodesPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_published_total",
				Help:      "Total number of nodes finalized by publish",
			},
		),
		FrontierSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_frontier_size",
				Help:      "Number of draft nodes published together",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
		),
		DraftsDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drafts_discarded_total",
				Help:      "Total number of drafts discarded",
			},
		),
		StoreCommits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_commits_total",
				Help:      "Graph store unit-of-work commits by outcome",
			},
			[]string{"backend", "status"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Operations,
		c.OperationDuration,
		c.NodesPublished,
		c.FrontierSize,
		c.DraftsDiscarded,
		c.StoreCommits,
	)
	return c
}

// ObserveOperation records one façade operation.
func (c *Collector) ObserveOperation(operation string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.Operations.WithLabelValues(operation, status).Inc()
	c.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObservePublish records the size of a published frontier.
func (c *Collector) ObservePublish(frontier int) {
	c.NodesPublished.Add(float64(frontier))
	c.FrontierSize.Observe(float64(frontier))
}

// ObserveCommit records a unit-of-work commit for the given backend.
func (c *Collector) ObserveCommit(backend string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.StoreCommits.WithLabelValues(backend, status).Inc()
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
