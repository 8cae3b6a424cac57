// Package aggregate composes per-instance metadata records into the nested
// study/series/instance document the viewer consumes.
package aggregate

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pacsuite/dicomlens/internal/archive"
	"github.com/pacsuite/dicomlens/internal/dicom"
	lenserr "github.com/pacsuite/dicomlens/internal/errors"
	"github.com/pacsuite/dicomlens/internal/metacache"
	"github.com/pacsuite/dicomlens/internal/observability"
	"github.com/pacsuite/dicomlens/internal/projection"
)

// DefaultParallelism bounds concurrent per-instance projections per request.
const DefaultParallelism = 8

// Aggregator builds study documents from cached instance records.
type Aggregator struct {
	archive     archive.Client
	cache       *metacache.Cache
	dict        *dicom.Dictionary
	logger      *zap.Logger
	metrics     *observability.Metrics
	parallelism int
}

// New creates an aggregator. parallelism <= 0 selects the default.
func New(client archive.Client, cache *metacache.Cache, dict *dicom.Dictionary, logger *zap.Logger, metrics *observability.Metrics, parallelism int) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewTestMetrics()
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Aggregator{
		archive:     client,
		cache:       cache,
		dict:        dict,
		logger:      logger.Named("aggregate"),
		metrics:     metrics,
		parallelism: parallelism,
	}
}

// BuildStudyDocument assembles the nested document for one study.
//
// Instances whose record cannot be obtained are omitted; partial documents
// are acceptable. An unknown study surfaces as a not-found error.
func (a *Aggregator) BuildStudyDocument(ctx context.Context, studyID string) (map[string]any, error) {
	instanceIDs, err := a.archive.StudyInstances(ctx, studyID)
	if err != nil {
		return nil, err
	}

	records := make([]projection.Record, len(instanceIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, instanceID := range instanceIDs {
		g.Go(func() error {
			record, err := a.cache.GetOrCompute(gctx, instanceID)
			if err != nil {
				if lenserr.IsSkip(err) || lenserr.IsNotFound(err) {
					a.metrics.InstancesSkipped.Inc()
					a.logger.Debug("omitting instance from study document",
						zap.String("study", studyID),
						zap.String("instance", instanceID),
						zap.Error(err))
					return nil
				}
				return err
			}
			records[i] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryAggregate, lenserr.CodeUnexpected,
			"building study document for "+studyID, err)
	}

	doc := a.group(records)
	a.metrics.StudiesBuilt.Inc()
	return doc, nil
}

// group buckets records by study then series identifier, preserving fetch
// order. Level fields are taken from the first record seen in each bucket.
// A record reporting a study identifier other than the queried one still
// gets its own bucket; archive listings have been seen to surface such
// instances and dropping them loses data.
func (a *Aggregator) group(records []projection.Record) map[string]any {
	type seriesBucket struct {
		fields    map[string]any
		instances []map[string]any
	}
	type studyBucket struct {
		fields      map[string]any
		seriesOrder []string
		series      map[string]*seriesBucket
	}

	var studyOrder []string
	studies := make(map[string]*studyBucket)

	for _, record := range records {
		if record == nil {
			continue
		}

		studyUID, ok := record.String("StudyInstanceUID")
		if !ok || studyUID == "" {
			// Without a study identifier the record cannot be placed in
			// the document.
			a.metrics.InstancesSkipped.Inc()
			continue
		}
		seriesUID, _ := record.String("SeriesInstanceUID")

		study, ok := studies[studyUID]
		if !ok {
			study = &studyBucket{
				fields: levelFields(record, a.dict.StudyFields()),
				series: make(map[string]*seriesBucket),
			}
			studies[studyUID] = study
			studyOrder = append(studyOrder, studyUID)
		}

		series, ok := study.series[seriesUID]
		if !ok {
			series = &seriesBucket{fields: levelFields(record, a.dict.SeriesFields())}
			study.series[seriesUID] = series
			study.seriesOrder = append(study.seriesOrder, seriesUID)
		}

		series.instances = append(series.instances, a.instanceLeaf(record))
	}

	studyDocs := make([]map[string]any, 0, len(studyOrder))
	for _, studyUID := range studyOrder {
		study := studies[studyUID]
		seriesDocs := make([]map[string]any, 0, len(study.seriesOrder))
		for _, seriesUID := range study.seriesOrder {
			series := study.series[seriesUID]
			seriesDoc := series.fields
			seriesDoc["instances"] = series.instances
			seriesDocs = append(seriesDocs, seriesDoc)
		}
		studyDoc := study.fields
		studyDoc["series"] = seriesDocs
		studyDocs = append(studyDocs, studyDoc)
	}

	return map[string]any{"studies": studyDocs}
}

// instanceLeaf builds the {metadata, url} entry for one record.
func (a *Aggregator) instanceLeaf(record projection.Record) map[string]any {
	patientID, _ := record.String("PatientID")
	studyUID, _ := record.String("StudyInstanceUID")
	seriesUID, _ := record.String("SeriesInstanceUID")
	sopUID, _ := record.String("SOPInstanceUID")

	resourceID := instanceResourceID(patientID, studyUID, seriesUID, sopUID)

	return map[string]any{
		"metadata": levelFields(record, a.dict.InstanceFields()),
		"url":      "dicomweb:../instances/" + resourceID + "/file",
	}
}

// levelFields extracts the subset of record fields declared at one
// dictionary level.
func levelFields(record projection.Record, fields []dicom.Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := record[f.Descriptor.Name]; ok {
			out[f.Descriptor.Name] = v
		}
	}
	return out
}
