package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	lenserr "github.com/pacsuite/dicomlens/internal/errors"
)

// RESTConfig holds connection settings for an Orthanc-style archive REST API.
type RESTConfig struct {
	// URL is the base URL of the archive, e.g. "http://localhost:8042".
	URL string
	// Username and Password enable HTTP basic authentication when non-empty.
	Username string
	Password string
	// Timeout bounds every archive request (default: 30s).
	Timeout time.Duration
}

// DefaultRESTConfig returns the default archive connection settings.
func DefaultRESTConfig() RESTConfig {
	return RESTConfig{
		URL:     "http://localhost:8042",
		Timeout: 30 * time.Second,
	}
}

// RESTClient implements Client against the archive's REST API.
type RESTClient struct {
	config RESTConfig
	http   *http.Client
	logger *zap.Logger
}

// NewRESTClient creates a new archive REST client.
func NewRESTClient(cfg RESTConfig, logger *zap.Logger) *RESTClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTClient{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("archive"),
	}
}

// InstanceTags fetches /instances/{id}/tags?short.
func (c *RESTClient) InstanceTags(ctx context.Context, instanceID string) (map[string]any, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/instances/"+url.PathEscape(instanceID)+"/tags?short", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeInstanceUnknown,
			fmt.Sprintf("instance %s unknown to the archive", instanceID))
	}
	if status != http.StatusOK {
		return nil, c.statusError("tags fetch", status)
	}

	var tags map[string]any
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest, "tags response is not a JSON object", err)
	}
	return tags, nil
}

// StudyInstances fetches /studies/{id}/instances and extracts the IDs.
func (c *RESTClient) StudyInstances(ctx context.Context, studyID string) ([]string, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/studies/"+url.PathEscape(studyID)+"/instances", nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeStudyUnknown,
			fmt.Sprintf("study %s unknown to the archive", studyID))
	}
	if status != http.StatusOK {
		return nil, c.statusError("study listing", status)
	}

	var entries []struct {
		ID string `json:"ID"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, lenserr.Wrap(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest, "study listing is not a JSON array", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest, "study listing entry without ID")
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// MetadataGet reads /instances/{id}/metadata/{slot}.
func (c *RESTClient) MetadataGet(ctx context.Context, instanceID, slot string) ([]byte, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.metadataPath(instanceID, slot), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, lenserr.New(lenserr.ErrCategoryCache, lenserr.CodeNoRecord,
			fmt.Sprintf("no attached metadata for instance %s", instanceID))
	}
	if status != http.StatusOK {
		return nil, c.statusError("metadata read", status)
	}
	return body, nil
}

// MetadataPut writes /instances/{id}/metadata/{slot}.
func (c *RESTClient) MetadataPut(ctx context.Context, instanceID, slot string, data []byte) error {
	_, status, err := c.do(ctx, http.MethodPut, c.metadataPath(instanceID, slot), data)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return c.statusError("metadata write", status)
	}
	return nil
}

// MetadataDelete removes /instances/{id}/metadata/{slot}.
func (c *RESTClient) MetadataDelete(ctx context.Context, instanceID, slot string) error {
	_, status, err := c.do(ctx, http.MethodDelete, c.metadataPath(instanceID, slot), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent && status != http.StatusNotFound {
		return c.statusError("metadata delete", status)
	}
	return nil
}

// Changes reads one page of /changes.
func (c *RESTClient) Changes(ctx context.Context, since int64, limit int) (ChangeBatch, error) {
	path := "/changes?since=" + strconv.FormatInt(since, 10) + "&limit=" + strconv.Itoa(limit)
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return ChangeBatch{}, err
	}
	if status != http.StatusOK {
		return ChangeBatch{}, c.statusError("change feed", status)
	}

	var batch ChangeBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return ChangeBatch{}, lenserr.Wrap(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest, "change feed decode failed", err)
	}
	return batch, nil
}

// CheckDicomWeb verifies the archive's DICOMweb plugin via /plugins/dicom-web.
func (c *RESTClient) CheckDicomWeb(ctx context.Context) error {
	body, status, err := c.do(ctx, http.MethodGet, "/plugins/dicom-web", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeDicomWebMissing,
			"the dicom-web data source requires the archive's DICOMweb plugin")
	}

	var info struct {
		ID      string `json:"ID"`
		Version string `json:"Version"`
	}
	if err := json.Unmarshal(body, &info); err != nil || info.ID != "dicom-web" || info.Version == "" {
		return lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeDicomWebMissing,
			"the archive's DICOMweb plugin is not properly installed")
	}
	return nil
}

// Ping probes /system.
func (c *RESTClient) Ping(ctx context.Context) error {
	_, status, err := c.do(ctx, http.MethodGet, "/system", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return c.statusError("system probe", status)
	}
	return nil
}

func (c *RESTClient) metadataPath(instanceID, slot string) string {
	return "/instances/" + url.PathEscape(instanceID) + "/metadata/" + url.PathEscape(slot)
}

func (c *RESTClient) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.URL+path, reader)
	if err != nil {
		return nil, 0, lenserr.Wrap(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest, "request build failed", err)
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, lenserr.Wrap(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest, method+" "+path+" failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, lenserr.Wrap(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest, "response read failed", err)
	}
	return data, resp.StatusCode, nil
}

func (c *RESTClient) statusError(op string, status int) error {
	return lenserr.New(lenserr.ErrCategoryArchive, lenserr.CodeArchiveRequest,
		fmt.Sprintf("%s returned HTTP %d", op, status))
}
