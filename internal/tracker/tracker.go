// Package tracker implements the step tracking coordinator: it owns all
// mutable tracking state, drives the selected sensor capability, throttles
// durable promotions, and fans updates out to listeners, the notification
// surface, and the persistence gateway.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/steptrack/internal/lifecycle"
	"git.home.luguber.info/inful/steptrack/internal/logfields"
	"git.home.luguber.info/inful/steptrack/internal/metrics"
	"git.home.luguber.info/inful/steptrack/internal/notify"
	"git.home.luguber.info/inful/steptrack/internal/sensor"
	"git.home.luguber.info/inful/steptrack/internal/store"
	"git.home.luguber.info/inful/steptrack/internal/trackerr"
)

// Default tuning values; all overridable via Options.
const (
	DefaultSyncThreshold          = 50
	DefaultPollInterval           = 5 * time.Second
	DefaultBackgroundPollInterval = 60 * time.Second
	DefaultPermissionTimeout      = 30 * time.Second
)

// Options configures a Coordinator. Store is required; everything else has a
// working default.
type Options struct {
	Store      store.Store
	Candidates []sensor.Capability
	Renderer   notify.Renderer
	Lifecycle  lifecycle.Notifier
	Metrics    metrics.Recorder

	SyncThreshold          uint32
	PollInterval           time.Duration
	BackgroundPollInterval time.Duration
	PermissionTimeout      time.Duration
}

// TrackingStatus is a value snapshot of coordinator state for observers.
type TrackingStatus struct {
	IsTracking              bool
	HasPermissions          bool
	ActiveCapabilityKind    sensor.Kind
	IsBackgroundLoopRunning bool
	SessionID               string
}

// Coordinator is the single long-lived owner of step tracking state. It is
// constructed once at process start and passed by handle to consumers; all
// external reads go through accessors returning copies, all writes through
// the documented methods.
type Coordinator struct {
	opts      Options
	sessionID string
	now       func() time.Time

	recorder metrics.Recorder
	renderer notify.Renderer
	registry *listenerRegistry
	loop     *refreshLoop

	syncThreshold  atomic.Uint32
	fgPollInterval atomic.Int64 // nanoseconds
	bgPollInterval atomic.Int64 // nanoseconds

	// mu guards all fields below. Async entry points (delta callbacks,
	// lifecycle signals, loop ticks) serialize through it so currentSteps
	// updates are never lost to a race.
	mu             sync.Mutex
	isTracking     bool
	currentSteps   uint32
	hasPermissions bool
	isInitialized  bool
	capability     sensor.Capability
	deltaUnsub     func()
	phase          lifecycle.Phase
	warnings       []error

	// Delta-capability session baseline: absolute = sessionStart + (reading -
	// deltaOffset). Re-baselined whenever a reading decreases (counter reset).
	sessionStart     uint32
	deltaOffset      uint32
	lastDeltaReading uint32
	haveDeltaReading bool

	// initMu guards the single-flight initialization handshake.
	initMu      sync.Mutex
	initStarted bool
	initDone    chan struct{}

	// opMu serializes startTracking/stopTracking/destroy so a second call
	// while one is in flight awaits the first instead of duplicating work.
	opMu sync.Mutex

	// promoteMu serializes promotions; a promotion always writes the steps
	// snapshot taken while holding it, keeping persisted values monotonic.
	promoteMu sync.Mutex

	lifecycleUnsub func()
}

// New creates an uninitialized Coordinator. Call Initialize before use;
// capability-dependent methods degrade to no-ops/zero until then.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, trackerr.InvalidInput("store", "persistence store is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}
	if opts.SyncThreshold == 0 {
		opts.SyncThreshold = DefaultSyncThreshold
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.BackgroundPollInterval <= 0 {
		opts.BackgroundPollInterval = DefaultBackgroundPollInterval
	}
	if opts.PermissionTimeout <= 0 {
		opts.PermissionTimeout = DefaultPermissionTimeout
	}

	c := &Coordinator{
		opts:      opts,
		sessionID: uuid.NewString(),
		now:       time.Now,
		recorder:  opts.Metrics,
		renderer:  opts.Renderer,
		registry:  newListenerRegistry(opts.Metrics),
		initDone:  make(chan struct{}),
		phase:     lifecycle.PhaseForeground,
	}
	c.loop = newRefreshLoop(c.tick)
	c.syncThreshold.Store(opts.SyncThreshold)
	c.fgPollInterval.Store(int64(opts.PollInterval))
	c.bgPollInterval.Store(int64(opts.BackgroundPollInterval))
	return c, nil
}

func (c *Coordinator) today() string {
	return c.now().Format(store.DateLayout)
}

// Initialize performs the startup protocol: lifecycle subscription, day
// reconciliation, count recovery, permission request, and capability
// selection, then resumes tracking if it was enabled before shutdown. Every
// sub-step failure is recorded as a warning and skipped; Initialize never
// aborts, so callers are never blocked indefinitely. Idempotent and
// single-flight: concurrent calls await the first.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.initMu.Lock()
	if c.initStarted {
		done := c.initDone
		c.initMu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.initStarted = true
	c.initMu.Unlock()
	defer close(c.initDone)

	start := c.now()

	if c.opts.Lifecycle != nil {
		c.lifecycleUnsub = c.opts.Lifecycle.Subscribe(c.onLifecycle)
	}

	if err := c.reconcileStartupCount(ctx); err != nil {
		c.warn("reconcile-startup-count", err)
	}

	if err := c.selectCapability(ctx); err != nil {
		c.warn("select-capability", err)
	}

	// Initialized before the resume step so StartTracking does not re-enter
	// initialization. Set true unconditionally: degraded is still initialized.
	c.mu.Lock()
	c.isInitialized = true
	c.mu.Unlock()

	enabled, found, err := store.GetBool(ctx, c.opts.Store, store.KeyTrackingEnabled)
	if err != nil {
		c.warn("read-enabled-flag", trackerr.PersistenceFailure("get "+store.KeyTrackingEnabled, err))
	}
	if found && enabled {
		c.opMu.Lock()
		resumed := c.startTrackingLocked(ctx)
		c.opMu.Unlock()
		if !resumed {
			c.warn("resume-tracking", trackerr.New(trackerr.CategoryCapability, trackerr.SeverityWarning,
				"tracking was enabled before shutdown but could not be resumed"))
		}
	}

	c.mu.Lock()
	warnCount := len(c.warnings)
	steps := c.currentSteps
	c.mu.Unlock()

	slog.Info("Step tracking coordinator initialized",
		logfields.SessionID(c.sessionID),
		logfields.Steps(steps),
		logfields.DurationMS(float64(c.now().Sub(start).Milliseconds())),
		slog.Int("warnings", warnCount))
	return nil
}

// reconcileStartupCount performs calendar-day reconciliation, then count
// recovery.
func (c *Coordinator) reconcileStartupCount(ctx context.Context) error {
	today := c.today()

	lastReset, found, err := store.GetString(ctx, c.opts.Store, store.KeyLastResetDate)
	if err != nil {
		return trackerr.PersistenceFailure("get "+store.KeyLastResetDate, err)
	}
	if found && lastReset != today {
		return c.rollover(ctx, lastReset, today)
	}
	if !found {
		if err := store.SetString(ctx, c.opts.Store, store.KeyLastResetDate, today); err != nil {
			return trackerr.PersistenceFailure("set "+store.KeyLastResetDate, err)
		}
	}

	// Recovery heuristic: take the larger of the cached last-known count and
	// today's historical record. Both are written by the promotion routine,
	// so the larger value is the more recent successful write; this guards
	// against undercounting from a stale cache.
	cached, _, err := store.GetUint32(ctx, c.opts.Store, store.KeyLastKnownSteps)
	if err != nil {
		return trackerr.PersistenceFailure("get "+store.KeyLastKnownSteps, err)
	}
	hist, err := c.opts.Store.GetSteps(ctx, today)
	if err != nil {
		return trackerr.PersistenceFailure("get daily steps", err)
	}

	steps := cached
	if hist > steps {
		steps = hist
	}

	c.mu.Lock()
	c.currentSteps = steps
	c.mu.Unlock()
	c.recorder.SetCurrentSteps(steps)
	return nil
}

// selectCapability picks a capability in preference order, then makes a
// bounded permission request.
func (c *Coordinator) selectCapability(ctx context.Context) error {
	capab, err := sensor.Select(ctx, c.opts.Candidates)
	if err != nil {
		return err
	}

	granted := c.requestPermission(ctx, capab)

	c.mu.Lock()
	c.capability = capab
	c.hasPermissions = granted
	c.mu.Unlock()

	if !granted {
		return trackerr.PermissionDenied(string(capab.Kind()))
	}
	return nil
}

// requestPermission prompts with a bounded context. A prompt that never
// resolves is treated as denial once the timeout expires, so a hung dialog
// cannot stall initialization.
func (c *Coordinator) requestPermission(ctx context.Context, capab sensor.Capability) bool {
	tctx, cancel := context.WithTimeout(ctx, c.opts.PermissionTimeout)
	defer cancel()

	granted, err := capab.RequestPermission(tctx)
	if err != nil {
		slog.Warn("Permission request failed, treating as denied",
			logfields.Capability(string(capab.Kind())), logfields.Error(err))
		return false
	}
	return granted
}

// StartTracking begins step tracking. Returns true immediately if already
// tracking. A failure to start the capability or loop leaves state unchanged
// and returns false; this is a reported, non-fatal condition.
func (c *Coordinator) StartTracking(ctx context.Context) bool {
	c.mu.Lock()
	tracking := c.isTracking
	initialized := c.isInitialized
	c.mu.Unlock()

	if tracking {
		return true
	}
	// Initialization runs before opMu is taken: the resume step inside
	// Initialize acquires opMu itself and must not find it already held by
	// this goroutine.
	if !initialized {
		_ = c.Initialize(ctx)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.startTrackingLocked(ctx)
}

// startTrackingLocked is the StartTracking body; the caller holds opMu.
func (c *Coordinator) startTrackingLocked(ctx context.Context) bool {
	c.mu.Lock()
	if c.isTracking {
		c.mu.Unlock()
		return true
	}
	capab := c.capability
	granted := c.hasPermissions
	c.mu.Unlock()

	if capab == nil {
		slog.Warn("Cannot start tracking: no sensor capability available")
		return false
	}

	if !granted {
		// Exactly one additional request; fail closed if still absent.
		granted = c.requestPermission(ctx, capab)
		c.mu.Lock()
		c.hasPermissions = granted
		c.mu.Unlock()
		if !granted {
			slog.Warn("Cannot start tracking: permission denied",
				logfields.Capability(string(capab.Kind())))
			return false
		}
	}

	var unsub func()
	if capab.Semantics() == sensor.SemanticsDelta {
		c.mu.Lock()
		c.sessionStart = c.currentSteps
		c.deltaOffset = 0
		c.haveDeltaReading = false
		c.mu.Unlock()

		u, err := capab.SubscribeDeltas(c.onDeltaReading)
		if err != nil && !errors.Is(err, sensor.ErrUnsupported) {
			slog.Warn("Capability start failed, tracking not started",
				logfields.Capability(string(capab.Kind())), logfields.Error(err))
			return false
		}
		unsub = u
	}

	if err := c.loop.start(c.currentPollInterval()); err != nil {
		if unsub != nil {
			unsub()
		}
		slog.Error("Failed to start background refresh loop", logfields.Error(err))
		return false
	}

	if err := store.SetBool(ctx, c.opts.Store, store.KeyTrackingEnabled, true); err != nil {
		// Soft failure: tracking proceeds, the flag is rewritten on the next
		// promotion-time rollover or stop.
		slog.Warn("Failed to persist tracking-enabled flag", logfields.Error(err))
	}

	c.mu.Lock()
	c.isTracking = true
	c.deltaUnsub = unsub
	steps := c.currentSteps
	c.mu.Unlock()

	c.showNotification(steps)
	slog.Info("Step tracking started",
		logfields.Capability(string(capab.Kind())), logfields.Steps(steps))
	return true
}

// StopTracking stops tracking after forcing one last promotion so no observed
// steps are lost. Idempotent no-op when not tracking.
func (c *Coordinator) StopTracking(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if !c.isTracking {
		c.mu.Unlock()
		return nil
	}
	unsub := c.deltaUnsub
	c.deltaUnsub = nil
	c.mu.Unlock()

	if err := c.promote(ctx, metrics.ReasonStop, true); err != nil {
		slog.Warn("Final promotion on stop failed", logfields.Error(err))
	}

	if unsub != nil {
		unsub()
	}
	if err := c.loop.stop(); err != nil {
		slog.Warn("Failed to stop refresh loop", logfields.Error(err))
	}
	if err := store.SetBool(ctx, c.opts.Store, store.KeyTrackingEnabled, false); err != nil {
		slog.Warn("Failed to clear tracking-enabled flag", logfields.Error(err))
	}

	c.mu.Lock()
	c.isTracking = false
	c.mu.Unlock()

	c.hideNotification()
	slog.Info("Step tracking stopped")
	return nil
}

// AddManualSteps adds user-entered steps and promotes unconditionally; manual
// entries are rare and user-initiated, so correctness beats batching. Returns
// the new total.
func (c *Coordinator) AddManualSteps(ctx context.Context, n uint32) (uint32, error) {
	if n == 0 {
		return c.GetCurrentSteps(), trackerr.InvalidInput("steps", "must be positive")
	}

	c.mu.Lock()
	if n > math.MaxUint32-c.currentSteps {
		steps := c.currentSteps
		c.mu.Unlock()
		return steps, trackerr.InvalidInput("steps", "would overflow the day counter")
	}
	c.currentSteps += n
	// Shift the delta baseline too, so the next sensor reading does not undo
	// the manual addition.
	c.sessionStart += n
	steps := c.currentSteps
	c.mu.Unlock()

	c.recorder.SetCurrentSteps(steps)
	c.registry.notifyAll(steps)

	if err := c.promote(ctx, metrics.ReasonManual, true); err != nil {
		slog.Warn("Manual step promotion failed", logfields.Error(err))
	}
	return steps, nil
}

// ForceSync promotes the current in-memory count unconditionally.
func (c *Coordinator) ForceSync(ctx context.Context) error {
	return c.promote(ctx, metrics.ReasonForced, true)
}

// Destroy stops tracking and tears down lifecycle hooks and the loop.
func (c *Coordinator) Destroy(ctx context.Context) error {
	err := c.StopTracking(ctx)

	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.lifecycleUnsub != nil {
		c.lifecycleUnsub()
		c.lifecycleUnsub = nil
	}
	if stopErr := c.loop.stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

// GetCurrentSteps returns today's in-memory step count.
func (c *Coordinator) GetCurrentSteps() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSteps
}

// IsTracking reports whether tracking is active.
func (c *Coordinator) IsTracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isTracking
}

// Subscribe registers a step-update listener; the returned func unsubscribes.
// Consumers must unsubscribe before disposal.
func (c *Coordinator) Subscribe(cb func(steps uint32)) func() {
	return c.registry.subscribe(cb)
}

// GetTrackingStatus returns a value snapshot of coordinator state.
func (c *Coordinator) GetTrackingStatus() TrackingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	kind := sensor.KindNone
	if c.capability != nil {
		kind = c.capability.Kind()
	}
	return TrackingStatus{
		IsTracking:              c.isTracking,
		HasPermissions:          c.hasPermissions,
		ActiveCapabilityKind:    kind,
		IsBackgroundLoopRunning: c.isTracking && c.loop.isRunning(),
		SessionID:               c.sessionID,
	}
}

// InitWarnings returns the non-fatal failures collected during initialization.
func (c *Coordinator) InitWarnings() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// SetSyncThreshold updates the promotion threshold at runtime.
func (c *Coordinator) SetSyncThreshold(n uint32) {
	if n == 0 {
		n = DefaultSyncThreshold
	}
	c.syncThreshold.Store(n)
}

// SetPollIntervals updates loop cadence at runtime and reschedules the
// running loop to match the current phase.
func (c *Coordinator) SetPollIntervals(foreground, background time.Duration) {
	if foreground > 0 {
		c.fgPollInterval.Store(int64(foreground))
	}
	if background > 0 {
		c.bgPollInterval.Store(int64(background))
	}
	if err := c.loop.reschedule(c.currentPollInterval()); err != nil {
		slog.Warn("Failed to reschedule refresh loop", logfields.Error(err))
	}
}

func (c *Coordinator) currentPollInterval() time.Duration {
	c.mu.Lock()
	background := c.phase == lifecycle.PhaseBackground
	c.mu.Unlock()

	if background {
		return time.Duration(c.bgPollInterval.Load())
	}
	return time.Duration(c.fgPollInterval.Load())
}

func (c *Coordinator) warn(stage string, err error) {
	c.mu.Lock()
	c.warnings = append(c.warnings, fmt.Errorf("%s: %w", stage, err))
	c.mu.Unlock()
	slog.Warn("Initialization step failed, continuing",
		slog.String("stage", stage), logfields.Error(err))
}

func (c *Coordinator) showNotification(steps uint32) {
	if c.renderer == nil {
		return
	}
	if err := c.renderer.Show(statusText(steps)); err != nil {
		slog.Warn("Failed to show notification", logfields.Error(err))
	}
}

func (c *Coordinator) updateNotification(steps uint32) {
	if c.renderer == nil {
		return
	}
	if err := c.renderer.Update(statusText(steps)); err != nil {
		slog.Warn("Failed to update notification", logfields.Error(err))
	}
}

func (c *Coordinator) hideNotification() {
	if c.renderer == nil {
		return
	}
	if err := c.renderer.Hide(); err != nil {
		slog.Warn("Failed to hide notification", logfields.Error(err))
	}
}

func statusText(steps uint32) string {
	return fmt.Sprintf("Steps today: %d", steps)
}
