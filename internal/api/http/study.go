package http

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/aggregate"
	lenserr "github.com/pacsuite/dicomlens/internal/errors"
)

// StudyHandler serves GET /studies/{id}/dicom-json.
type StudyHandler struct {
	aggregator *aggregate.Aggregator
	logger     *zap.Logger
}

// NewStudyHandler creates a study document handler.
func NewStudyHandler(aggregator *aggregate.Aggregator, logger *zap.Logger) *StudyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudyHandler{
		aggregator: aggregator,
		logger:     logger.Named("http"),
	}
}

// ServeHTTP handles the study document request.
func (h *StudyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	studyID, ok := studyIDFromPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", requestID)
		return
	}

	doc, err := h.aggregator.BuildStudyDocument(r.Context(), studyID)
	if err != nil {
		if lenserr.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "no such study: "+studyID, requestID)
			return
		}
		h.logger.Error("study document build failed",
			zap.String("study", studyID),
			zap.String("request_id", requestID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build study document", requestID)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// studyIDFromPath extracts the study ID from /studies/{id}/dicom-json.
func studyIDFromPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/studies/")
	if !ok {
		return "", false
	}
	studyID, ok := strings.CutSuffix(rest, "/dicom-json")
	if !ok || studyID == "" || strings.Contains(studyID, "/") {
		return "", false
	}
	return studyID, true
}
