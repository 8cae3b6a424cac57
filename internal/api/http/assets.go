package http

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/assets"
	lenserr "github.com/pacsuite/dicomlens/internal/errors"
)

// ViewerHandler serves the viewer shell under /viewer.
//
// Known shell files are looked up as assets; every other path, including
// dotted study deep links, resolves to index.html. The cross-origin
// isolation headers are required for the viewer's SharedArrayBuffer use.
type ViewerHandler struct {
	assets *assets.Service
	logger *zap.Logger
}

// NewViewerHandler creates the viewer shell handler.
func NewViewerHandler(svc *assets.Service, logger *zap.Logger) *ViewerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewerHandler{
		assets: svc,
		logger: logger.Named("viewer"),
	}
}

// ServeHTTP handles viewer asset requests.
func (h *ViewerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")

	name := strings.TrimPrefix(r.URL.Path, "/viewer")
	name = strings.TrimPrefix(name, "/")

	if name == "app-config.js" {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(h.assets.AppConfig())
		}
		return
	}

	// Anything that does not name a shell file is a client-side route
	// served by the shell. Route segments may carry dots (study and
	// series identifiers are dotted), so a dot alone is not enough.
	if name == "" || !assets.IsAssetPath(name) {
		name = "index.html"
	}

	data, contentType, err := h.assets.Get(name)
	if err != nil {
		if lenserr.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no such asset")
			return
		}
		h.logger.Error("asset lookup failed", zap.String("asset", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(data)
	}
}
