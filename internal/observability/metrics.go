// Package observability provides Prometheus metrics for the projection engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics exposed by dicomlens.
type Metrics struct {
	// Instance metadata cache.
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CachePurges     prometheus.Counter
	CacheStores     prometheus.Counter
	ProjectionTime  prometheus.Histogram

	// Preload pipeline.
	PreloadEnqueued  prometheus.Counter
	PreloadDropped   prometheus.Counter
	PreloadProcessed prometheus.Counter
	PreloadSkipped   prometheus.Counter
	PreloadFailed    prometheus.Counter
	QueueDepth       prometheus.Gauge

	// Study aggregation.
	StudiesBuilt     prometheus.Counter
	InstancesSkipped prometheus.Counter

	// HTTP surface.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg. Passing a
// fresh registry per instance keeps tests independent of global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{}

	m.CacheHits = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_cache_hits_total",
		Help: "Number of instance records served from the cache",
	})
	m.CacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_cache_misses_total",
		Help: "Number of instance records recomputed on demand",
	})
	m.CachePurges = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_cache_purges_total",
		Help: "Number of corrupt or stale cached records purged",
	})
	m.CacheStores = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_cache_stores_total",
		Help: "Number of freshly projected records written to the store",
	})
	m.ProjectionTime = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "dicomlens_projection_duration_seconds",
		Help:    "Time spent fetching tags and projecting one instance",
		Buckets: prometheus.DefBuckets,
	})

	m.PreloadEnqueued = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_preload_enqueued_total",
		Help: "Instances accepted into the preload queue",
	})
	m.PreloadDropped = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_preload_dropped_total",
		Help: "Instances rejected because the preload queue was full",
	})
	m.PreloadProcessed = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_preload_processed_total",
		Help: "Instances projected and stored by the preload worker",
	})
	m.PreloadSkipped = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_preload_skipped_total",
		Help: "Instances skipped by the preload worker because a record already existed",
	})
	m.PreloadFailed = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_preload_failed_total",
		Help: "Instances the preload worker failed to project",
	})
	m.QueueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Name: "dicomlens_preload_queue_depth",
		Help: "Current number of instances waiting in the preload queue",
	})

	m.StudiesBuilt = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_studies_built_total",
		Help: "Study documents assembled",
	})
	m.InstancesSkipped = factory.NewCounter(prometheus.CounterOpts{
		Name: "dicomlens_study_instances_skipped_total",
		Help: "Instances omitted from study documents because no record could be produced",
	})

	m.HTTPRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "dicomlens_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "status"})
	m.HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dicomlens_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	return m
}

// NewTestMetrics returns metrics backed by a throwaway registry.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
