package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the configuration file and invokes a callback with the
// freshly loaded config on change. Rapid write bursts (editors, atomic
// renames) are debounced into a single reload.
type Watcher struct {
	configPath   string
	onReload     func(*Config)
	watcher      *fsnotify.Watcher
	stopChan     chan struct{}
	stopOnce     sync.Once
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewWatcher creates a watcher for configPath. onReload is called from the
// watcher goroutine; callers must make their own handoff thread-safe.
func NewWatcher(configPath string, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &Watcher{
		configPath:   absPath,
		onReload:     onReload,
		watcher:      fsw,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins monitoring the configuration file.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the directory containing the config file (more reliable than
	// watching the file directly, which breaks on atomic renames).
	configDir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}

	slog.Info("Starting configuration watcher", "config_path", w.configPath)

	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop stops the watcher. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		slog.Info("Stopping configuration watcher")
		close(w.stopChan)
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", "error", err)
		}
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(w.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Coalesce: a pending reload absorbs subsequent events.
			select {
			case w.reloadChan <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-w.reloadChan:
			timer := time.NewTimer(w.debounceTime)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-w.stopChan:
				timer.Stop()
				return
			case <-timer.C:
			}

			cfg, err := Load(w.configPath)
			if err != nil {
				slog.Error("Config reload failed, keeping previous config", "error", err)
				continue
			}
			slog.Info("Configuration reloaded", "config_path", w.configPath)
			w.onReload(cfg)
		}
	}
}
