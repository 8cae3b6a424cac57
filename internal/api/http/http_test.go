package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/aggregate"
	"github.com/pacsuite/dicomlens/internal/archive"
	"github.com/pacsuite/dicomlens/internal/assets"
	"github.com/pacsuite/dicomlens/internal/dicom"
	"github.com/pacsuite/dicomlens/internal/metacache"
	"github.com/pacsuite/dicomlens/internal/observability"
	"github.com/pacsuite/dicomlens/internal/projection"
	"github.com/pacsuite/dicomlens/internal/store"
)

func newTestMux(t *testing.T) (*http.ServeMux, *archive.MemoryClient) {
	t.Helper()

	client := archive.NewMemoryClient()
	dict := dicom.NewDictionary()
	cache := metacache.New(client, store.NewMemoryStore(), projection.NewProjector(dict), zap.NewNop(), nil)
	aggregator := aggregate.New(client, cache, dict, zap.NewNop(), nil, 4)

	assetSvc, err := assets.NewService(assets.Config{})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	mux := NewMux(MuxConfig{
		Aggregator: aggregator,
		Assets:     assetSvc,
		Registry:   registry,
		Metrics:    observability.NewMetrics(registry),
		Logger:     zap.NewNop(),
		DataSource: "dicom-json",
	})
	return mux, client
}

func TestStudyDocumentEndpoint(t *testing.T) {
	mux, client := newTestMux(t)
	client.AddInstance("study1", "inst1", map[string]any{
		"0010,0020": "PAT001",
		"0020,000d": "1.2.3",
		"0020,000e": "1.2.3.1",
		"0008,0018": "1.2.3.1.1",
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/study1/dicom-json", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	studies, ok := doc["studies"].([]any)
	require.True(t, ok)
	require.Len(t, studies, 1)
}

func TestStudyDocumentNotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/ghost/dicom-json", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "ghost")
	assert.NotEmpty(t, resp.RequestID)
}

func TestStudyDocumentMethodNotAllowed(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/studies/study1/dicom-json", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStudyDocumentBadPath(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, path := range []string{"/studies/", "/studies/x", "/studies/a/b/dicom-json"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}

	// ServeMux cleans double slashes with a redirect; the cleaned path is
	// not a valid study path either.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies//dicom-json", nil))
	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	location := rec.Header().Get("Location")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, location, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewerRoutesServeIndex(t *testing.T) {
	mux, _ := newTestMux(t)

	for _, path := range []string{"/viewer", "/viewer/", "/viewer/tmtv", "/viewer/studies/1.2.3"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "<div id=\"root\">")
	}
}

func TestViewerIsolationHeaders(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/viewer", nil))

	assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Opener-Policy"))
	assert.Equal(t, "require-corp", rec.Header().Get("Cross-Origin-Embedder-Policy"))
	assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Resource-Policy"))
}

func TestViewerAppConfig(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/viewer/app-config.js", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "routerBasename")
}

func TestViewerUnknownAsset(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/viewer/missing.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"data_source":"dicom-json"`)
}

func TestMetricsEndpoint(t *testing.T) {
	mux, client := newTestMux(t)
	client.AddInstance("study1", "inst1", map[string]any{"0020,000d": "1.2.3"})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/studies/study1/dicom-json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dicomlens_http_requests_total")
}

func TestRequestIDPropagated(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	// Health bypasses the middleware chain and carries no request ID.
	assert.Empty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/viewer", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}
