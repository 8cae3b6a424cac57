// Package archive provides the client abstraction over the DICOM archive
// that owns the source data: raw attribute fetch, resource listing, the
// per-instance attached-metadata store, and the change feed.
package archive

import (
	"context"
	"errors"
)

// Change types surfaced by the archive change feed.
const (
	ChangeNewInstance = "NewInstance"
)

// Change is one entry of the archive change feed.
type Change struct {
	Seq          int64  `json:"Seq"`
	ChangeType   string `json:"ChangeType"`
	ResourceType string `json:"ResourceType"`
	ID           string `json:"ID"`
}

// ChangeBatch is one page of the change feed.
type ChangeBatch struct {
	Changes []Change `json:"Changes"`
	Done    bool     `json:"Done"`
	Last    int64    `json:"Last"`
}

// ErrUnsupported is returned by clients that do not implement an optional
// capability (for example the DICOMweb plugin probe on the test client).
var ErrUnsupported = errors.New("archive: operation not supported")

// Client is the access surface the projection engine consumes. Implementations
// must be safe for concurrent use; per-key metadata operations are atomic at
// single-key granularity but not across keys.
type Client interface {
	// InstanceTags fetches the flat short-format tag map of one instance.
	// Scalar attributes decode as strings, sequences as arrays.
	InstanceTags(ctx context.Context, instanceID string) (map[string]any, error)

	// StudyInstances lists the instance identifiers belonging to a study.
	StudyInstances(ctx context.Context, studyID string) ([]string, error)

	// MetadataGet reads one attached-metadata entry. A missing entry is a
	// NO_RECORD skip error, not a failure.
	MetadataGet(ctx context.Context, instanceID, slot string) ([]byte, error)

	// MetadataPut writes one attached-metadata entry.
	MetadataPut(ctx context.Context, instanceID, slot string, data []byte) error

	// MetadataDelete removes one attached-metadata entry. Deleting an absent
	// entry is not an error.
	MetadataDelete(ctx context.Context, instanceID, slot string) error

	// Changes reads one page of the archive change feed starting after the
	// given sequence number.
	Changes(ctx context.Context, since int64, limit int) (ChangeBatch, error)

	// CheckDicomWeb verifies that the archive exposes a DICOMweb endpoint.
	// Used as a startup precondition of the dicom-web data source mode.
	CheckDicomWeb(ctx context.Context) error

	// Ping probes archive reachability.
	Ping(ctx context.Context) error
}
