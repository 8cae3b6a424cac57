package http

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/aggregate"
	"github.com/pacsuite/dicomlens/internal/assets"
	"github.com/pacsuite/dicomlens/internal/observability"
)

// MuxConfig collects the collaborators the HTTP surface needs.
type MuxConfig struct {
	Aggregator *aggregate.Aggregator
	Assets     *assets.Service
	Registry   *prometheus.Registry
	Metrics    *observability.Metrics
	Logger     *zap.Logger

	// DataSource is reported by /health.
	DataSource string
}

// NewMux builds the service mux: study documents, viewer shell, health
// and metrics.
func NewMux(cfg MuxConfig) *http.ServeMux {
	middleware := DefaultMiddleware()

	mux := http.NewServeMux()

	studyHandler := http.Handler(NewStudyHandler(cfg.Aggregator, cfg.Logger))
	viewerHandler := http.Handler(NewViewerHandler(cfg.Assets, cfg.Logger))
	if cfg.Metrics != nil {
		studyHandler = MetricsMiddleware(cfg.Metrics, "study")(studyHandler)
		viewerHandler = MetricsMiddleware(cfg.Metrics, "viewer")(viewerHandler)
	}

	mux.Handle("/studies/", middleware(studyHandler))
	mux.Handle("/viewer", middleware(viewerHandler))
	mux.Handle("/viewer/", middleware(viewerHandler))
	mux.HandleFunc("/health", healthHandler(cfg.DataSource))
	if cfg.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	return mux
}

func healthHandler(dataSource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"dicomlens","data_source":"%s"}`, dataSource)
	}
}
