package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/steptrack/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	counterFile := filepath.Join(t.TempDir(), "counter")
	require.NoError(t, os.WriteFile(counterFile, []byte("1234\n"), 0o644))

	cfg := &config.Config{DataDir: filepath.Join(t.TempDir(), "data")}
	cfg.Sensor.CounterFile = counterFile
	cfg.Tracking.PollInterval = time.Second
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestDaemonStartStop(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, d.GetStatus())

	require.NoError(t, d.Start(ctx))
	assert.Equal(t, StatusRunning, d.GetStatus())
	assert.True(t, d.Coordinator().IsTracking())

	// The polling loop picks the counter file up within a few periods.
	require.Eventually(t, func() bool {
		return d.Coordinator().GetCurrentSteps() == 1234
	}, 5*time.Second, 100*time.Millisecond)

	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, StatusStopped, d.GetStatus())
}

func TestDaemonPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))

	_, err = d.Coordinator().AddManualSteps(ctx, 500)
	require.NoError(t, err)
	require.NoError(t, d.Stop(ctx))

	// Same data dir, fresh process: the count and tracking state come back.
	d2, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, d2.Start(ctx))
	defer func() { require.NoError(t, d2.Stop(ctx)) }()

	assert.GreaterOrEqual(t, d2.Coordinator().GetCurrentSteps(), uint32(500))
	assert.True(t, d2.Coordinator().IsTracking())
}

func TestDaemonWithoutSensorStaysUp(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DataDir: filepath.Join(t.TempDir(), "data")}
	cfg.ApplyDefaults()

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))
	defer func() { require.NoError(t, d.Stop(ctx)) }()

	assert.Equal(t, StatusRunning, d.GetStatus())
	assert.False(t, d.Coordinator().IsTracking())

	// Manual entries still work without a sensor.
	total, err := d.Coordinator().AddManualSteps(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), total)
}

func TestDaemonConfigReloadAppliesTuning(t *testing.T) {
	cfg := testConfig(t)
	d, err := NewDaemon(cfg)
	require.NoError(t, err)

	next := *cfg
	next.Tracking.SyncThreshold = 10
	next.Tracking.PollInterval = 2 * time.Second
	d.onConfigReload(&next)

	// No crash and no restart required; the coordinator picked the values up.
	require.NoError(t, d.Stop(context.Background()))
}
