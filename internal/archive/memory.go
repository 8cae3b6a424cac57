package archive

import (
	"context"
	"fmt"
	"sync"

	lenserr "github.com/pacsuite/dicomlens/internal/errors"
)

// MemoryClient implements Client entirely in memory. This is primarily used
// for testing and development, mirroring the real archive's semantics:
// per-key metadata operations are atomic, the change feed is append-only.
type MemoryClient struct {
	mu        sync.RWMutex
	tags      map[string]map[string]any       // instanceID → raw short-format tags
	studies   map[string][]string             // studyID → instance IDs in arrival order
	metadata  map[string]map[string][]byte    // instanceID → slot → bytes
	changes   []Change
	tagsCalls map[string]int

	// FailTags forces InstanceTags to fail for the listed instance IDs,
	// simulating transient archive errors.
	failTags map[string]bool
}

// NewMemoryClient creates an empty in-memory archive.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		tags:      make(map[string]map[string]any),
		studies:   make(map[string][]string),
		metadata:  make(map[string]map[string][]byte),
		tagsCalls: make(map[string]int),
		failTags:  make(map[string]bool),
	}
}

// AddInstance registers an instance with its raw tags under a study and
// appends a NewInstance change feed entry.
func (m *MemoryClient) AddInstance(studyID, instanceID string, rawTags map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tags[instanceID] = rawTags
	m.studies[studyID] = append(m.studies[studyID], instanceID)
	m.changes = append(m.changes, Change{
		Seq:          int64(len(m.changes) + 1),
		ChangeType:   ChangeNewInstance,
		ResourceType: "Instance",
		ID:           instanceID,
	})
}

// SetFailTags toggles simulated tag-fetch failures for an instance.
func (m *MemoryClient) SetFailTags(instanceID string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTags[instanceID] = fail
}

// TagsCalls reports how many times InstanceTags ran for an instance.
func (m *MemoryClient) TagsCalls(instanceID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tagsCalls[instanceID]
}

// InstanceTags implements Client.
func (m *MemoryClient) InstanceTags(ctx context.Context, instanceID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tagsCalls[instanceID]++
	if m.failTags[instanceID] {
		return nil, lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest, "simulated archive failure")
	}
	raw, ok := m.tags[instanceID]
	if !ok {
		return nil, lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeInstanceUnknown,
			fmt.Sprintf("instance %s unknown to the archive", instanceID))
	}

	copied := make(map[string]any, len(raw))
	for k, v := range raw {
		copied[k] = v
	}
	return copied, nil
}

// StudyInstances implements Client.
func (m *MemoryClient) StudyInstances(ctx context.Context, studyID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.studies[studyID]
	if !ok {
		return nil, lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeStudyUnknown,
			fmt.Sprintf("study %s unknown to the archive", studyID))
	}
	return append([]string(nil), ids...), nil
}

// MetadataGet implements Client.
func (m *MemoryClient) MetadataGet(ctx context.Context, instanceID, slot string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.metadata[instanceID][slot]
	if !ok {
		return nil, lenserr.New(lenserr.ErrCategoryCache, lenserr.CodeNoRecord,
			fmt.Sprintf("no attached metadata for instance %s", instanceID))
	}
	return append([]byte(nil), data...), nil
}

// MetadataPut implements Client.
func (m *MemoryClient) MetadataPut(ctx context.Context, instanceID, slot string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	slots, ok := m.metadata[instanceID]
	if !ok {
		slots = make(map[string][]byte)
		m.metadata[instanceID] = slots
	}
	slots[slot] = append([]byte(nil), data...)
	return nil
}

// MetadataDelete implements Client.
func (m *MemoryClient) MetadataDelete(ctx context.Context, instanceID, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.metadata[instanceID], slot)
	return nil
}

// Changes implements Client.
func (m *MemoryClient) Changes(ctx context.Context, since int64, limit int) (ChangeBatch, error) {
	if err := ctx.Err(); err != nil {
		return ChangeBatch{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	batch := ChangeBatch{Last: since, Done: true}
	for _, ch := range m.changes {
		if ch.Seq <= since {
			continue
		}
		if limit > 0 && len(batch.Changes) == limit {
			batch.Done = false
			break
		}
		batch.Changes = append(batch.Changes, ch)
		batch.Last = ch.Seq
	}
	return batch, nil
}

// CheckDicomWeb implements Client. The in-memory archive has no DICOMweb
// endpoint.
func (m *MemoryClient) CheckDicomWeb(ctx context.Context) error {
	return lenserr.Wrap(lenserr.ErrCategoryArchive, lenserr.CodeDicomWebMissing,
		"in-memory archive has no DICOMweb endpoint", ErrUnsupported)
}

// Ping implements Client.
func (m *MemoryClient) Ping(ctx context.Context) error {
	return ctx.Err()
}
