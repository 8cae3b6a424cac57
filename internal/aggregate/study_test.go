package aggregate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/archive"
	"github.com/pacsuite/dicomlens/internal/dicom"
	lenserr "github.com/pacsuite/dicomlens/internal/errors"
	"github.com/pacsuite/dicomlens/internal/metacache"
	"github.com/pacsuite/dicomlens/internal/projection"
	"github.com/pacsuite/dicomlens/internal/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, *archive.MemoryClient) {
	t.Helper()
	client := archive.NewMemoryClient()
	dict := dicom.NewDictionary()
	cache := metacache.New(client, store.NewMemoryStore(), projection.NewProjector(dict), zap.NewNop(), nil)
	return New(client, cache, dict, zap.NewNop(), nil, 4), client
}

func instanceTags(patient, study, series, sop string) map[string]any {
	return map[string]any{
		"0010,0020": patient,
		"0020,000d": study,
		"0020,000e": series,
		"0008,0018": sop,
		"0008,0060": "CT",
		"0028,0010": "512",
	}
}

func TestBuildStudyDocumentGrouping(t *testing.T) {
	agg, client := newTestAggregator(t)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("inst-%d", i)
		client.AddInstance("study1", id,
			instanceTags("PAT001", "1.2.3", "1.2.3.1", fmt.Sprintf("1.2.3.1.%d", i)))
	}

	doc, err := agg.BuildStudyDocument(context.Background(), "study1")
	require.NoError(t, err)

	studies, ok := doc["studies"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, studies, 1)
	assert.Equal(t, "1.2.3", studies[0]["StudyInstanceUID"])
	assert.Equal(t, "PAT001", studies[0]["PatientID"])

	series, ok := studies[0]["series"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, series, 1)
	assert.Equal(t, "1.2.3.1", series[0]["SeriesInstanceUID"])
	assert.Equal(t, "CT", series[0]["Modality"])

	instances, ok := series[0]["instances"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, instances, 3)

	urls := make(map[string]bool)
	for _, inst := range instances {
		url, ok := inst["url"].(string)
		require.True(t, ok)
		assert.Contains(t, url, "dicomweb:../instances/")
		urls[url] = true

		metadata, ok := inst["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, metadata, "SOPInstanceUID")
		assert.NotContains(t, metadata, "PatientID", "study-level field must not leak into instance metadata")
	}
	assert.Len(t, urls, 3, "each instance leaf needs a distinct url")
}

func TestBuildStudyDocumentMultipleSeries(t *testing.T) {
	agg, client := newTestAggregator(t)

	client.AddInstance("study1", "a", instanceTags("P", "1.2.3", "1.2.3.1", "1.2.3.1.1"))
	client.AddInstance("study1", "b", instanceTags("P", "1.2.3", "1.2.3.2", "1.2.3.2.1"))

	doc, err := agg.BuildStudyDocument(context.Background(), "study1")
	require.NoError(t, err)

	studies := doc["studies"].([]map[string]any)
	require.Len(t, studies, 1)
	series := studies[0]["series"].([]map[string]any)
	assert.Len(t, series, 2)
}

func TestBuildStudyDocumentDivergentStudyUID(t *testing.T) {
	agg, client := newTestAggregator(t)

	// An instance reporting a different StudyInstanceUID gets its own bucket.
	client.AddInstance("study1", "a", instanceTags("P", "1.2.3", "1.2.3.1", "1.2.3.1.1"))
	client.AddInstance("study1", "b", instanceTags("P", "9.9.9", "9.9.9.1", "9.9.9.1.1"))

	doc, err := agg.BuildStudyDocument(context.Background(), "study1")
	require.NoError(t, err)

	studies := doc["studies"].([]map[string]any)
	require.Len(t, studies, 2)
	assert.Equal(t, "1.2.3", studies[0]["StudyInstanceUID"])
	assert.Equal(t, "9.9.9", studies[1]["StudyInstanceUID"])
}

func TestBuildStudyDocumentUnknownStudy(t *testing.T) {
	agg, _ := newTestAggregator(t)

	_, err := agg.BuildStudyDocument(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, lenserr.IsNotFound(err))
}

func TestBuildStudyDocumentSkipsFailedInstances(t *testing.T) {
	agg, client := newTestAggregator(t)

	client.AddInstance("study1", "good", instanceTags("P", "1.2.3", "1.2.3.1", "1.2.3.1.1"))
	client.AddInstance("study1", "bad", instanceTags("P", "1.2.3", "1.2.3.1", "1.2.3.1.2"))
	client.SetFailTags("bad", true)

	doc, err := agg.BuildStudyDocument(context.Background(), "study1")
	require.NoError(t, err)

	studies := doc["studies"].([]map[string]any)
	require.Len(t, studies, 1)
	instances := studies[0]["series"].([]map[string]any)[0]["instances"].([]map[string]any)
	assert.Len(t, instances, 1, "failed instance is omitted, not fatal")
}

func TestBuildStudyDocumentAllInstancesFail(t *testing.T) {
	agg, client := newTestAggregator(t)

	client.AddInstance("study1", "bad", instanceTags("P", "1.2.3", "1.2.3.1", "1.2.3.1.1"))
	client.SetFailTags("bad", true)

	doc, err := agg.BuildStudyDocument(context.Background(), "study1")
	require.NoError(t, err)
	assert.Empty(t, doc["studies"], "nothing projectable yields an empty document")
}

func TestBuildStudyDocumentSurvivesStoreReadFailure(t *testing.T) {
	client := archive.NewMemoryClient()
	dict := dicom.NewDictionary()
	st := store.NewMemoryStore()
	cache := metacache.New(client, st, projection.NewProjector(dict), zap.NewNop(), nil)
	agg := New(client, cache, dict, zap.NewNop(), nil, 4)

	client.AddInstance("study1", "a", instanceTags("P", "1.2.3", "1.2.3.1", "1.2.3.1.1"))
	client.AddInstance("study1", "b", instanceTags("P", "1.2.3", "1.2.3.1", "1.2.3.1.2"))
	st.SetFailGets(true)

	doc, err := agg.BuildStudyDocument(context.Background(), "study1")
	require.NoError(t, err, "a transient store outage must not fail the study")

	studies := doc["studies"].([]map[string]any)
	require.Len(t, studies, 1)
	instances := studies[0]["series"].([]map[string]any)[0]["instances"].([]map[string]any)
	assert.Len(t, instances, 2, "records are recomputed from the archive")
}

func TestBuildStudyDocumentDropsRecordsWithoutStudyUID(t *testing.T) {
	agg, client := newTestAggregator(t)

	client.AddInstance("study1", "a", instanceTags("P", "1.2.3", "1.2.3.1", "1.2.3.1.1"))
	client.AddInstance("study1", "b", map[string]any{
		"0010,0020": "P",
		"0020,000e": "1.2.3.1",
		"0008,0018": "1.2.3.1.2",
	})

	doc, err := agg.BuildStudyDocument(context.Background(), "study1")
	require.NoError(t, err)

	studies := doc["studies"].([]map[string]any)
	require.Len(t, studies, 1, "a record without StudyInstanceUID gets no bucket")
	instances := studies[0]["series"].([]map[string]any)[0]["instances"].([]map[string]any)
	assert.Len(t, instances, 1)
}

func TestInstanceResourceID(t *testing.T) {
	id := instanceResourceID("PAT001", "1.2.3", "1.2.3.1", "1.2.3.1.1")

	// 40 hex chars in groups of 8.
	assert.Regexp(t, `^[0-9a-f]{8}(-[0-9a-f]{8}){4}$`, id)

	// Stable across calls, distinct across tuples.
	assert.Equal(t, id, instanceResourceID("PAT001", "1.2.3", "1.2.3.1", "1.2.3.1.1"))
	assert.NotEqual(t, id, instanceResourceID("PAT001", "1.2.3", "1.2.3.1", "1.2.3.1.2"))
}
