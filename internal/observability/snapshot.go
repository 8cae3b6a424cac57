package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineSnapshot is a point-in-time view of the cache and preload counters.
type EngineSnapshot struct {
	CacheHits   float64
	CacheMisses float64
	CachePurges float64
	CacheStores float64

	PreloadEnqueued  float64
	PreloadDropped   float64
	PreloadProcessed float64
	PreloadSkipped   float64
	PreloadFailed    float64
	QueueDepth       float64

	StudiesBuilt     float64
	InstancesSkipped float64
}

// GatherEngineSnapshot reads the engine counters out of a registry. Vec
// metrics (the HTTP families) are not part of the snapshot.
func GatherEngineSnapshot(g prometheus.Gatherer) (EngineSnapshot, error) {
	var snap EngineSnapshot

	families, err := g.Gather()
	if err != nil {
		return snap, err
	}

	for _, family := range families {
		if len(family.GetMetric()) == 0 {
			continue
		}
		m := family.GetMetric()[0]

		var value float64
		switch {
		case m.GetCounter() != nil:
			value = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			value = m.GetGauge().GetValue()
		default:
			continue
		}

		switch family.GetName() {
		case "dicomlens_cache_hits_total":
			snap.CacheHits = value
		case "dicomlens_cache_misses_total":
			snap.CacheMisses = value
		case "dicomlens_cache_purges_total":
			snap.CachePurges = value
		case "dicomlens_cache_stores_total":
			snap.CacheStores = value
		case "dicomlens_preload_enqueued_total":
			snap.PreloadEnqueued = value
		case "dicomlens_preload_dropped_total":
			snap.PreloadDropped = value
		case "dicomlens_preload_processed_total":
			snap.PreloadProcessed = value
		case "dicomlens_preload_skipped_total":
			snap.PreloadSkipped = value
		case "dicomlens_preload_failed_total":
			snap.PreloadFailed = value
		case "dicomlens_preload_queue_depth":
			snap.QueueDepth = value
		case "dicomlens_studies_built_total":
			snap.StudiesBuilt = value
		case "dicomlens_study_instances_skipped_total":
			snap.InstancesSkipped = value
		}
	}

	return snap, nil
}
