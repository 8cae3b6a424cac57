// Package config provides unified configuration for the dicomlens service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	lenserr "github.com/pacsuite/dicomlens/internal/errors"
)

// DataSource selects the viewer data source mode.
type DataSource string

const (
	// DataSourceDicomJSON serves study documents from this service.
	DataSourceDicomJSON DataSource = "dicom-json"
	// DataSourceDicomWeb points the viewer at the archive's DICOMweb
	// endpoint, which must exist at startup.
	DataSourceDicomWeb DataSource = "dicom-web"
)

// Store types for the projected-record store.
const (
	StoreArchive = "archive"
	StoreSQLite  = "sqlite"
	StoreS3      = "s3"
)

// Archive client types.
const (
	ArchiveREST   = "rest"
	ArchiveMemory = "memory"
)

// Config holds the full service configuration.
type Config struct {
	// DataDir is the base directory for local state (sqlite store).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	HTTP    HTTPConfig    `json:"http" yaml:"http"`
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Preload PreloadConfig `json:"preload" yaml:"preload"`
	Viewer  ViewerConfig  `json:"viewer" yaml:"viewer"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr"`

	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// ArchiveConfig selects and configures the archive client.
type ArchiveConfig struct {
	// Type is the archive client type: rest, memory.
	Type string `json:"type" yaml:"type"`

	// URL is the archive REST base URL.
	URL string `json:"url" yaml:"url"`

	Username string        `json:"username" yaml:"username"`
	Password string        `json:"password" yaml:"password"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// CacheConfig selects and configures the projected-record store.
type CacheConfig struct {
	// Store is the record store type: archive, sqlite, s3.
	Store string `json:"store" yaml:"store"`

	// MetadataSlot is the attached-metadata slot used by the archive store.
	MetadataSlot string `json:"metadata_slot" yaml:"metadata_slot"`

	// SQLitePath is the sqlite database path (sqlite store).
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path"`

	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 record store configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Prefix       string `json:"prefix" yaml:"prefix"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// PreloadConfig controls the background preloader.
type PreloadConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// QueueCapacity bounds the preload queue.
	QueueCapacity int `json:"queue_capacity" yaml:"queue_capacity"`

	// PollInterval is how often the change feed is polled when idle.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// PollLimit caps changes fetched per poll.
	PollLimit int `json:"poll_limit" yaml:"poll_limit"`

	// ExpectedInstances sizes the cached-hint bloom filter.
	ExpectedInstances int `json:"expected_instances" yaml:"expected_instances"`
}

// ViewerConfig controls viewer shell serving.
type ViewerConfig struct {
	// RouterBasename is the URL prefix the shell is mounted under.
	RouterBasename string `json:"router_basename" yaml:"router_basename"`

	// DataSource is the viewer data source mode: dicom-json, dicom-web.
	DataSource DataSource `json:"data_source" yaml:"data_source"`

	// UserConfigurationPath names a file prepended to the embedded
	// app-config.js template.
	UserConfigurationPath string `json:"user_configuration" yaml:"user_configuration"`
}

// LoggingConfig controls zap setup.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level"`

	// Development enables the human-readable development encoder.
	Development bool `json:"development" yaml:"development"`
}

// DefaultConfig returns the default configuration for local development
// against a localhost archive.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/dicomlens",
		HTTP: HTTPConfig{
			Addr:         ":8090",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Archive: ArchiveConfig{
			Type:    ArchiveREST,
			URL:     "http://localhost:8042",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Store:        StoreArchive,
			MetadataSlot: "4202",
		},
		Preload: PreloadConfig{
			Enabled:           true,
			QueueCapacity:     10000,
			PollInterval:      time.Second,
			PollLimit:         100,
			ExpectedInstances: 100000,
		},
		Viewer: ViewerConfig{
			RouterBasename: "/viewer",
			DataSource:     DataSourceDicomJSON,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Resolve fills in paths derived from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/dicomlens"
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = filepath.Join(c.DataDir, "records.db")
	}
}

// Validate checks the configuration. Unknown data source, store or archive
// types are fatal.
func (c *Config) Validate() error {
	switch c.Viewer.DataSource {
	case DataSourceDicomJSON, DataSourceDicomWeb:
	default:
		return lenserr.NewConfigError(lenserr.CodeInvalidDataSource,
			fmt.Sprintf("invalid data source: %q (must be %s or %s)",
				c.Viewer.DataSource, DataSourceDicomJSON, DataSourceDicomWeb))
	}

	switch c.Cache.Store {
	case StoreArchive, StoreSQLite, StoreS3:
	default:
		return lenserr.NewConfigError(lenserr.CodeInvalidStoreType,
			fmt.Sprintf("invalid cache store: %q (must be archive, sqlite or s3)", c.Cache.Store))
	}
	if c.Cache.Store == StoreS3 && c.Cache.S3.Bucket == "" {
		return lenserr.NewConfigError(lenserr.CodeInvalidConfig,
			"cache.s3.bucket is required when cache store is s3")
	}

	switch c.Archive.Type {
	case ArchiveREST, ArchiveMemory:
	default:
		return lenserr.NewConfigError(lenserr.CodeInvalidConfig,
			fmt.Sprintf("invalid archive type: %q (must be rest or memory)", c.Archive.Type))
	}
	if c.Archive.Type == ArchiveREST && c.Archive.URL == "" {
		return lenserr.NewConfigError(lenserr.CodeInvalidConfig,
			"archive.url is required when archive type is rest")
	}

	if c.Preload.QueueCapacity < 0 {
		return lenserr.NewConfigError(lenserr.CodeInvalidConfig,
			fmt.Sprintf("preload.queue_capacity must not be negative, got %d", c.Preload.QueueCapacity))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return lenserr.NewConfigError(lenserr.CodeInvalidConfig,
			fmt.Sprintf("invalid logging level: %q", c.Logging.Level))
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides configuration from DICOMLENS_-prefixed environment
// variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DICOMLENS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DICOMLENS_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("DICOMLENS_ARCHIVE_URL"); v != "" {
		cfg.Archive.URL = v
	}
	if v := os.Getenv("DICOMLENS_ARCHIVE_USERNAME"); v != "" {
		cfg.Archive.Username = v
	}
	if v := os.Getenv("DICOMLENS_ARCHIVE_PASSWORD"); v != "" {
		cfg.Archive.Password = v
	}
	if v := os.Getenv("DICOMLENS_CACHE_STORE"); v != "" {
		cfg.Cache.Store = v
	}
	if v := os.Getenv("DICOMLENS_S3_BUCKET"); v != "" {
		cfg.Cache.S3.Bucket = v
	}
	if v := os.Getenv("DICOMLENS_S3_REGION"); v != "" {
		cfg.Cache.S3.Region = v
	}
	if v := os.Getenv("DICOMLENS_S3_ENDPOINT"); v != "" {
		cfg.Cache.S3.Endpoint = v
	}
	if v := os.Getenv("DICOMLENS_DATA_SOURCE"); v != "" {
		cfg.Viewer.DataSource = DataSource(v)
	}
	if v := os.Getenv("DICOMLENS_PRELOAD_ENABLED"); v != "" {
		cfg.Preload.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("DICOMLENS_PRELOAD_QUEUE_CAPACITY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Preload.QueueCapacity)
	}
	if v := os.Getenv("DICOMLENS_PRELOAD_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Preload.PollInterval = d
		}
	}
	if v := os.Getenv("DICOMLENS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// EnsureDirectories creates the directories local state needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Cache.Store == StoreSQLite {
		dirs = append(dirs, filepath.Dir(c.Cache.SQLitePath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
