// Package metacache caches projected instance metadata records.
//
// Records are computed from archive tag dumps, serialized as
// base64(gzip(JSON)) and kept in a RecordStore. A cached record is served
// only when it decodes cleanly and carries the current schema version;
// anything else is purged and recomputed from the archive.
package metacache

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/archive"
	lenserr "github.com/pacsuite/dicomlens/internal/errors"
	"github.com/pacsuite/dicomlens/internal/observability"
	"github.com/pacsuite/dicomlens/internal/projection"
	"github.com/pacsuite/dicomlens/internal/store"
)

// Cache computes and caches projected metadata for single instances.
type Cache struct {
	archive   archive.Client
	store     store.RecordStore
	projector *projection.Projector
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// New creates a cache backed by the given archive and record store.
func New(client archive.Client, st store.RecordStore, projector *projection.Projector, logger *zap.Logger, metrics *observability.Metrics) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewTestMetrics()
	}
	return &Cache{
		archive:   client,
		store:     st,
		projector: projector,
		logger:    logger.Named("metacache"),
		metrics:   metrics,
	}
}

// GetOrCompute returns the projected record for instanceID, serving the
// cached copy when it is valid and recomputing it otherwise.
//
// A cached record is discarded when it fails to decode or carries a schema
// version other than the current one. The stale copy is deleted on a best
// effort basis before recomputation so a failed recompute does not leave a
// known-bad record behind.
func (c *Cache) GetOrCompute(ctx context.Context, instanceID string) (projection.Record, error) {
	payload, err := c.store.Get(ctx, instanceID)
	if err == nil {
		record, decErr := projection.Decode(payload)
		if decErr == nil {
			decErr = projection.ValidateVersion(record)
		}
		if decErr == nil {
			c.metrics.CacheHits.Inc()
			return record, nil
		}
		c.purge(ctx, instanceID, decErr)
	} else if !stderrors.Is(err, store.ErrNotFound) {
		// A failing store read degrades to a miss; the archive is the
		// source of truth and can always reproduce the record.
		c.logger.Warn("failed to load cached record, recomputing",
			zap.String("instance", instanceID),
			zap.Error(err))
	}

	c.metrics.CacheMisses.Inc()
	return c.compute(ctx, instanceID)
}

// Preload computes and stores the record for instanceID unless a record
// already exists. Unlike GetOrCompute it never validates an existing record;
// stale copies are left for the read path to purge.
func (c *Cache) Preload(ctx context.Context, instanceID string) (bool, error) {
	exists, err := c.store.Exists(ctx, instanceID)
	if err != nil {
		return false, lenserr.NewCacheError(lenserr.CodeStoreFailed, "checking cached record", err)
	}
	if exists {
		return false, nil
	}
	if _, err := c.compute(ctx, instanceID); err != nil {
		return false, err
	}
	return true, nil
}

// ComputeAndStore projects and stores the record without checking for an
// existing copy. Recomputing an already cached instance is benign: the
// projection is deterministic and single-key writes are last-writer-wins.
func (c *Cache) ComputeAndStore(ctx context.Context, instanceID string) error {
	_, err := c.compute(ctx, instanceID)
	return err
}

func (c *Cache) compute(ctx context.Context, instanceID string) (projection.Record, error) {
	start := time.Now()

	raw, err := c.archive.InstanceTags(ctx, instanceID)
	if err != nil {
		if lenserr.IsNotFound(err) {
			return nil, err
		}
		return nil, lenserr.Wrap(lenserr.ErrCategoryCache, lenserr.CodeNoRecord,
			"no record could be produced for instance "+instanceID, err)
	}

	record := c.projector.Project(raw)

	payload, err := projection.Encode(record)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, instanceID, payload); err != nil {
		// The record is valid even when the store write fails; serve it
		// and let a later request retry the write.
		c.logger.Warn("failed to store projected record",
			zap.String("instance", instanceID),
			zap.Error(err))
	} else {
		c.metrics.CacheStores.Inc()
	}

	c.metrics.ProjectionTime.Observe(time.Since(start).Seconds())
	return record, nil
}

func (c *Cache) purge(ctx context.Context, instanceID string, cause error) {
	c.metrics.CachePurges.Inc()
	c.logger.Info("purging invalid cached record",
		zap.String("instance", instanceID),
		zap.String("code", lenserr.GetCode(cause)),
		zap.Error(cause))
	if err := c.store.Delete(ctx, instanceID); err != nil {
		c.logger.Warn("failed to purge cached record",
			zap.String("instance", instanceID),
			zap.Error(err))
	}
}
