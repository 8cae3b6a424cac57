// Package app wires the dicomlens components together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/aggregate"
	httpapi "github.com/pacsuite/dicomlens/internal/api/http"
	"github.com/pacsuite/dicomlens/internal/archive"
	"github.com/pacsuite/dicomlens/internal/assets"
	"github.com/pacsuite/dicomlens/internal/bloom"
	"github.com/pacsuite/dicomlens/internal/config"
	"github.com/pacsuite/dicomlens/internal/dicom"
	lenserr "github.com/pacsuite/dicomlens/internal/errors"
	"github.com/pacsuite/dicomlens/internal/events"
	"github.com/pacsuite/dicomlens/internal/metacache"
	"github.com/pacsuite/dicomlens/internal/observability"
	"github.com/pacsuite/dicomlens/internal/preload"
	"github.com/pacsuite/dicomlens/internal/projection"
	"github.com/pacsuite/dicomlens/internal/server"
	"github.com/pacsuite/dicomlens/internal/store"
)

// App manages the dicomlens service lifecycle.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	// Shared resources
	archive     archive.Client
	recordStore store.RecordStore
	registry    *prometheus.Registry
	metrics     *observability.Metrics
	shutdown    *server.ShutdownManager

	// Components
	cache      *metacache.Cache
	aggregator *aggregate.Aggregator
	notifier   *events.Notifier
	poller     *events.Poller
	worker     *preload.Worker
	httpServer *http.Server

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an App from a resolved, validated configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start initializes shared resources and launches the service.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if a.preloadEnabled() {
		if err := a.startPreload(ctx); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start preloader: %w", err)
		}
	}

	if err := a.startHTTPServer(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.logger.Info("dicomlens started",
		zap.String("addr", a.cfg.HTTP.Addr),
		zap.String("data_source", string(a.cfg.Viewer.DataSource)),
		zap.String("cache_store", a.cfg.Cache.Store),
		zap.Bool("preload", a.preloadEnabled()))
	return nil
}

// preloadEnabled reports whether the background preloader should run. The
// dicom-web mode serves metadata straight from the archive, so there is
// nothing to preload.
func (a *App) preloadEnabled() bool {
	return a.cfg.Preload.Enabled && a.cfg.Viewer.DataSource == config.DataSourceDicomJSON
}

func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewMetrics(a.registry)
	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{})

	// Archive client
	switch a.cfg.Archive.Type {
	case config.ArchiveMemory:
		a.archive = archive.NewMemoryClient()
	default:
		a.archive = archive.NewRESTClient(archive.RESTConfig{
			URL:      a.cfg.Archive.URL,
			Username: a.cfg.Archive.Username,
			Password: a.cfg.Archive.Password,
			Timeout:  a.cfg.Archive.Timeout,
		}, a.logger)
	}

	if err := a.archive.Ping(ctx); err != nil {
		a.logger.Warn("archive not reachable at startup", zap.Error(err))
	}

	// The dicom-web mode hands metadata serving to the archive's DICOMweb
	// endpoint; refusing to start without it beats a viewer that cannot
	// load a single study.
	if a.cfg.Viewer.DataSource == config.DataSourceDicomWeb {
		if err := a.archive.CheckDicomWeb(ctx); err != nil {
			return lenserr.NewConfigError(lenserr.CodeInvalidDataSource,
				"data source dicom-web requires the archive's DICOMweb support: "+err.Error())
		}
	}

	// Record store
	switch a.cfg.Cache.Store {
	case config.StoreSQLite:
		a.recordStore, err = store.NewSQLiteStore(a.cfg.Cache.SQLitePath)
		if err != nil {
			return err
		}
	case config.StoreS3:
		a.recordStore, err = store.NewS3Store(ctx, store.S3Config{
			Bucket:       a.cfg.Cache.S3.Bucket,
			Prefix:       a.cfg.Cache.S3.Prefix,
			Region:       a.cfg.Cache.S3.Region,
			Endpoint:     a.cfg.Cache.S3.Endpoint,
			UsePathStyle: a.cfg.Cache.S3.UsePathStyle,
		})
		if err != nil {
			return err
		}
	default:
		a.recordStore = store.NewArchiveStore(a.archive, a.cfg.Cache.MetadataSlot)
	}
	// Registered first so it closes after the HTTP server.
	a.shutdown.RegisterCloser(a.recordStore)

	// Projection pipeline
	dict := dicom.NewDictionary()
	projector := projection.NewProjector(dict)
	a.cache = metacache.New(a.archive, a.recordStore, projector, a.logger, a.metrics)
	a.aggregator = aggregate.New(a.archive, a.cache, dict, a.logger, a.metrics, aggregate.DefaultParallelism)

	return nil
}

// startPreload wires change feed -> notifier -> worker.
func (a *App) startPreload(ctx context.Context) error {
	hint := bloom.NewCachedHint(a.cfg.Preload.ExpectedInstances, 0.01)
	queue := preload.NewQueue(a.cfg.Preload.QueueCapacity)
	a.worker = preload.NewWorker(queue, a.cache, hint, a.logger, a.metrics)

	a.notifier = events.NewNotifier(a.cfg.Preload.QueueCapacity)
	a.poller = events.NewPoller(a.archive, a.notifier, a.logger,
		a.cfg.Preload.PollInterval, a.cfg.Preload.PollLimit)

	sub := a.notifier.Subscribe()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case ev, ok := <-sub.Ch:
				if !ok {
					return
				}
				if ev.Type == events.InstanceStored {
					a.worker.Enqueue(ev.InstanceID)
				}
			case <-ctx.Done():
				a.notifier.Unsubscribe(sub.ID)
				return
			}
		}
	}()

	if err := a.worker.Start(ctx); err != nil {
		return err
	}
	if err := a.poller.Start(ctx); err != nil {
		return err
	}

	// Stop the feed before the worker so nothing new enters the pipeline.
	a.shutdown.OnShutdownStart(func() {
		if err := a.poller.Stop(); err != nil {
			a.logger.Warn("poller stop error", zap.Error(err))
		}
		if err := a.worker.Stop(); err != nil {
			a.logger.Warn("preload worker stop error", zap.Error(err))
		}
	})
	return nil
}

func (a *App) startHTTPServer() error {
	var userConfig []byte
	if path := a.cfg.Viewer.UserConfigurationPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read viewer user configuration: %w", err)
		}
		userConfig = data
	}

	assetSvc, err := assets.NewService(assets.Config{
		RouterBasename:    a.cfg.Viewer.RouterBasename,
		UseDicomWeb:       a.cfg.Viewer.DataSource == config.DataSourceDicomWeb,
		UserConfiguration: userConfig,
	})
	if err != nil {
		return err
	}

	mux := httpapi.NewMux(httpapi.MuxConfig{
		Aggregator: a.aggregator,
		Assets:     assetSvc,
		Registry:   a.registry,
		Metrics:    a.metrics,
		Logger:     a.logger,
		DataSource: string(a.cfg.Viewer.DataSource),
	})

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      server.ShutdownMiddleware(a.shutdown)(mux),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	graceful := server.NewGracefulHTTPServer(a.httpServer, a.shutdown)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := graceful.ListenAndServe(); err != nil {
			a.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the service down through the shutdown manager: the change
// feed and preloader stop first so nothing new enters the pipeline, then
// in-flight requests drain, then the HTTP server and record store close.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	a.logger.Info("initiating graceful shutdown")

	if a.cancel != nil {
		a.cancel()
	}

	if err := a.shutdown.Shutdown(ctx, "stop requested"); err != nil {
		a.logger.Warn("shutdown error", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		a.logger.Warn("shutdown timeout, some goroutines may not have finished")
	}

	a.logger.Info("dicomlens stopped")
	return nil
}

// cleanup releases whatever a failed Start managed to acquire.
func (a *App) cleanup() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
	if a.shutdown != nil {
		if err := a.shutdown.Shutdown(context.Background(), "startup failed"); err != nil {
			a.logger.Warn("cleanup error", zap.Error(err))
		}
	}
}

// Archive exposes the archive client, mainly for tests and diagnostics.
func (a *App) Archive() archive.Client {
	return a.archive
}

// WaitForShutdown blocks until a termination signal or context cancel.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}
