package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/steptrack/internal/config"
	"git.home.luguber.info/inful/steptrack/internal/daemon"
	"git.home.luguber.info/inful/steptrack/internal/store"
	"git.home.luguber.info/inful/steptrack/internal/tracker"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct {
	} `cmd:"" help:"Run the step tracking daemon"`

	Status struct {
	} `cmd:"" help:"Print persisted tracking status"`

	History struct {
		From string `help:"Start date (YYYY-MM-DD), default 7 days ago"`
		To   string `help:"End date (YYYY-MM-DD), default today"`
	} `cmd:"" help:"Print per-day step records for a date range"`

	Add struct {
		Steps uint32 `arg:"" help:"Number of steps to add (must be positive)"`
	} `cmd:"" help:"Add manually entered steps"`
}

func main() {
	kctx := kong.Parse(&CLI)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if CLI.Verbose {
		cfg.Log.Level = config.LogLevelDebug
	}
	slog.SetDefault(cfg.Log.NewLogger())

	switch kctx.Command() {
	case "run":
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "status":
		if err := runStatus(cfg); err != nil {
			slog.Error("Status failed", "error", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(cfg, CLI.History.From, CLI.History.To); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	case "add <steps>":
		if err := runAdd(cfg, CLI.Add.Steps); err != nil {
			slog.Error("Add failed", "error", err)
			os.Exit(1)
		}
	}
}

func runDaemon(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.NewDaemonWithConfigFile(cfg, CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	slog.Info("Daemon started, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	return nil
}

func runStatus(cfg *config.Config) error {
	ctx := context.Background()

	st, err := daemon.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}()

	enabled, _, err := store.GetBool(ctx, st, store.KeyTrackingEnabled)
	if err != nil {
		return err
	}
	steps, _, err := store.GetUint32(ctx, st, store.KeyLastKnownSteps)
	if err != nil {
		return err
	}
	lastReset, _, err := store.GetString(ctx, st, store.KeyLastResetDate)
	if err != nil {
		return err
	}
	cp, err := store.GetCheckpoint(ctx, st)
	if err != nil {
		return err
	}

	fmt.Printf("Tracking enabled: %v\n", enabled)
	fmt.Printf("Last known steps: %d\n", steps)
	fmt.Printf("Tracked date:     %s\n", lastReset)
	if cp.LastSyncedAtMs > 0 {
		fmt.Printf("Last sync:        %d steps at %s\n",
			cp.LastSyncedSteps, time.UnixMilli(cp.LastSyncedAtMs).Format(time.RFC3339))
	} else {
		fmt.Println("Last sync:        never")
	}
	return nil
}

func runHistory(cfg *config.Config, from, to string) error {
	ctx := context.Background()

	if to == "" {
		to = time.Now().Format(store.DateLayout)
	}
	if from == "" {
		from = time.Now().AddDate(0, 0, -7).Format(store.DateLayout)
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(store.DateLayout, d); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d)
		}
	}

	st, err := daemon.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}()

	records, err := st.Range(ctx, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No records between %s and %s\n", from, to)
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %8d steps\n", r.Date, r.Steps)
	}
	return nil
}

// runAdd appends manual steps through a short-lived coordinator so the usual
// promotion and rollover rules apply to the write.
func runAdd(cfg *config.Config, steps uint32) error {
	ctx := context.Background()

	st, err := daemon.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}()

	coord, err := tracker.New(tracker.Options{Store: st})
	if err != nil {
		return err
	}
	if err := coord.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		if err := coord.Destroy(ctx); err != nil {
			slog.Warn("Coordinator teardown failed", "error", err)
		}
	}()

	total, err := coord.AddManualSteps(ctx, steps)
	if err != nil {
		return err
	}
	fmt.Printf("Added %d steps, today's total: %d\n", steps, total)
	return nil
}
