package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pacsuite/dicomlens/internal/archive"
	"github.com/pacsuite/dicomlens/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Archive.Type = config.ArchiveMemory
	cfg.Preload.Enabled = false
	return cfg
}

func TestAppStartStop(t *testing.T) {
	app, err := New(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	assert.Error(t, app.Start(ctx), "double start is rejected")
	require.NoError(t, app.Stop(ctx))
	assert.NoError(t, app.Stop(ctx), "double stop is harmless")
}

func TestAppPreloadPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Preload.Enabled = true
	cfg.Preload.PollInterval = 10 * time.Millisecond

	app, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	defer app.Stop(ctx)

	client, ok := app.Archive().(*archive.MemoryClient)
	require.True(t, ok)

	client.AddInstance("study1", "inst1", map[string]any{
		"0020,000d": "1.2.3",
		"0008,0018": "1.2.3.1.1",
	})

	// Change feed -> poller -> worker -> attached metadata.
	require.Eventually(t, func() bool {
		_, err := client.MetadataGet(context.Background(), "inst1", cfg.Cache.MetadataSlot)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestAppStopGoesThroughShutdownManager(t *testing.T) {
	cfg := testConfig(t)
	cfg.Preload.Enabled = true
	cfg.Preload.PollInterval = 10 * time.Millisecond

	app, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, app.Start(ctx))
	require.NoError(t, app.Stop(ctx))

	// The manager ran: new requests are rejected and the closers fired.
	assert.True(t, app.shutdown.IsShuttingDown())
	assert.False(t, app.shutdown.TrackRequest(), "requests after Stop must be rejected")

	select {
	case <-app.shutdown.ShutdownCh():
	default:
		t.Fatal("shutdown channel still open after Stop")
	}
}

func TestAppFailedStartReleasesResources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Viewer.DataSource = config.DataSourceDicomWeb

	app, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	require.Error(t, app.Start(context.Background()))
	assert.True(t, app.shutdown.IsShuttingDown(), "failed start must release acquired resources")
	assert.NoError(t, app.Stop(context.Background()), "stop after a failed start is harmless")
}

func TestAppDicomWebRequiresArchiveSupport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Viewer.DataSource = config.DataSourceDicomWeb

	app, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	// The in-memory archive has no DICOMweb endpoint.
	err = app.Start(context.Background())
	require.Error(t, err)
}

func TestAppPreloadSkippedInDicomWebMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Preload.Enabled = true
	cfg.Viewer.DataSource = config.DataSourceDicomWeb

	app, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, app.preloadEnabled())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Viewer.DataSource = "bogus"

	_, err := New(cfg, zap.NewNop())
	require.Error(t, err)
}
