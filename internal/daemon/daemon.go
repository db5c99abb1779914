// Package daemon wires the step tracking coordinator into a long-running
// process: durable SQLite storage, sensor sources, the notification surface,
// signal-driven lifecycle transitions, config hot-reload, and the optional
// Prometheus endpoint.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/steptrack/internal/config"
	"git.home.luguber.info/inful/steptrack/internal/lifecycle"
	"git.home.luguber.info/inful/steptrack/internal/logfields"
	"git.home.luguber.info/inful/steptrack/internal/metrics"
	"git.home.luguber.info/inful/steptrack/internal/notify"
	"git.home.luguber.info/inful/steptrack/internal/sensor"
	"git.home.luguber.info/inful/steptrack/internal/store"
	"git.home.luguber.info/inful/steptrack/internal/tracker"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// Daemon owns the long-running process components around the coordinator.
type Daemon struct {
	cfg            *config.Config
	configFilePath string
	status         atomic.Value // Status

	store       store.Store
	coordinator *tracker.Coordinator
	signals     *lifecycle.Signals

	natsRenderer  *notify.NATSRenderer
	configWatcher *config.Watcher
	metricsServer *metricsServer
}

// NewDaemon creates a daemon without config file watching.
func NewDaemon(cfg *config.Config) (*Daemon, error) {
	return NewDaemonWithConfigFile(cfg, "")
}

// NewDaemonWithConfigFile creates a daemon that hot-reloads tuning values from
// configFilePath. An empty path disables watching.
func NewDaemonWithConfigFile(cfg *config.Config, configFilePath string) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	d := &Daemon{
		cfg:            cfg,
		configFilePath: configFilePath,
		signals:        lifecycle.NewSignals(),
	}
	d.status.Store(StatusStopped)

	st, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	d.store = st

	renderer, natsRenderer, err := buildRenderer(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	d.natsRenderer = natsRenderer

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		registry := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
		d.metricsServer = newMetricsServer(cfg.Metrics.Listen, registry)
	}

	coord, err := tracker.New(tracker.Options{
		Store:                  st,
		Candidates:             buildCandidates(cfg),
		Renderer:               renderer,
		Lifecycle:              d.signals,
		Metrics:                recorder,
		SyncThreshold:          cfg.Tracking.SyncThreshold,
		PollInterval:           cfg.Tracking.PollInterval,
		BackgroundPollInterval: cfg.Tracking.BackgroundPollInterval,
		PermissionTimeout:      cfg.Tracking.PermissionTimeout,
	})
	if err != nil {
		d.closeTransports()
		_ = st.Close()
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	d.coordinator = coord

	return d, nil
}

// OpenStore opens the durable SQLite store under cfg.DataDir, creating the
// directory if needed. Shared with the short-lived CLI subcommands.
func OpenStore(cfg *config.Config) (store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}
	dbPath := filepath.Join(cfg.DataDir, "steptrack.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", dbPath, err)
	}
	return st, nil
}

// buildRenderer assembles the notification surface: always the log renderer,
// plus NATS publishing when a URL is configured. A NATS connection failure is
// non-fatal; the surface degrades to logging only.
func buildRenderer(cfg *config.Config) (notify.Renderer, *notify.NATSRenderer, error) {
	logR := notify.NewLogRenderer()
	if cfg.Notify.NATSURL == "" {
		return logR, nil, nil
	}

	natsR, err := notify.NewNATSRenderer(cfg.Notify.NATSURL, cfg.Notify.Subject)
	if err != nil {
		slog.Warn("NATS unavailable, notifications degrade to log only", logfields.Error(err))
		return logR, nil, nil
	}
	return notify.NewMulti(logR, natsR), natsR, nil
}

// buildCandidates maps the configured sensor files onto the capability
// preference order. Daemon deployments have no push-capable hardware, so the
// pedometer slot stays empty and selection falls through to polling.
func buildCandidates(cfg *config.Config) []sensor.Capability {
	var health, counter sensor.PollingSource
	if cfg.Sensor.HealthFile != "" {
		health = sensor.NewFileSource(cfg.Sensor.HealthFile)
	}
	if cfg.Sensor.CounterFile != "" {
		counter = sensor.NewFileSource(cfg.Sensor.CounterFile)
	}
	return sensor.DefaultCandidates(nil, health, counter)
}

// Start initializes the coordinator and brings up the surrounding services.
// It returns once everything is running; the caller owns ctx and decides when
// to Stop.
func (d *Daemon) Start(ctx context.Context) error {
	d.status.Store(StatusStarting)
	slog.Info("Starting steptrack daemon", slog.String("data_dir", d.cfg.DataDir))

	go d.signals.Run(ctx)

	if d.metricsServer != nil {
		d.metricsServer.start()
	}

	if err := d.coordinator.Initialize(ctx); err != nil {
		d.status.Store(StatusStopped)
		return fmt.Errorf("coordinator initialization failed: %w", err)
	}
	for _, w := range d.coordinator.InitWarnings() {
		slog.Warn("Coordinator initialized with warning", logfields.Error(w))
	}

	if !d.coordinator.IsTracking() {
		if !d.coordinator.StartTracking(ctx) {
			slog.Warn("Tracking could not be started; daemon stays up for manual entries and status")
		}
	}

	if d.configFilePath != "" {
		w, err := config.NewWatcher(d.configFilePath, d.onConfigReload)
		if err != nil {
			slog.Warn("Config watcher unavailable, hot reload disabled", logfields.Error(err))
		} else if err := w.Start(ctx); err != nil {
			slog.Warn("Config watcher failed to start, hot reload disabled", logfields.Error(err))
		} else {
			d.configWatcher = w
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("Steptrack daemon running",
		slog.String("status", string(d.GetStatus())),
		slog.Bool("metrics", d.metricsServer != nil))
	return nil
}

// onConfigReload applies hot-reloadable tuning values. Structural settings
// (data dir, sensor files, NATS) require a restart and are ignored here.
func (d *Daemon) onConfigReload(cfg *config.Config) {
	d.coordinator.SetSyncThreshold(cfg.Tracking.SyncThreshold)
	d.coordinator.SetPollIntervals(cfg.Tracking.PollInterval, cfg.Tracking.BackgroundPollInterval)
	slog.Info("Applied reloaded tracking configuration",
		slog.Uint64("sync_threshold", uint64(cfg.Tracking.SyncThreshold)),
		slog.Duration("poll_interval", cfg.Tracking.PollInterval))
}

// Stop shuts the daemon down gracefully: the coordinator promotes and stops
// first so no observed steps are lost, then the transports and store close.
func (d *Daemon) Stop(ctx context.Context) error {
	d.status.Store(StatusStopping)
	slog.Info("Stopping steptrack daemon")

	if d.configWatcher != nil {
		d.configWatcher.Stop()
		d.configWatcher = nil
	}

	if err := d.coordinator.Destroy(ctx); err != nil {
		slog.Warn("Coordinator teardown reported an error", logfields.Error(err))
	}

	d.closeTransports()

	if err := d.store.Close(); err != nil {
		d.status.Store(StatusStopped)
		return fmt.Errorf("failed to close store: %w", err)
	}

	d.status.Store(StatusStopped)
	slog.Info("Steptrack daemon stopped")
	return nil
}

func (d *Daemon) closeTransports() {
	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		d.metricsServer.stop(shutdownCtx)
		cancel()
		d.metricsServer = nil
	}
	if d.natsRenderer != nil {
		d.natsRenderer.Close()
		d.natsRenderer = nil
	}
}

// GetStatus returns the daemon lifecycle status.
func (d *Daemon) GetStatus() Status {
	return d.status.Load().(Status)
}

// Coordinator exposes the running coordinator for in-process consumers.
func (d *Daemon) Coordinator() *tracker.Coordinator {
	return d.coordinator
}
