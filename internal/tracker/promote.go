package tracker

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/steptrack/internal/lifecycle"
	"git.home.luguber.info/inful/steptrack/internal/logfields"
	"git.home.luguber.info/inful/steptrack/internal/metrics"
	"git.home.luguber.info/inful/steptrack/internal/sensor"
	"git.home.luguber.info/inful/steptrack/internal/store"
	"git.home.luguber.info/inful/steptrack/internal/trackerr"
)

// tick is the background refresh loop body. Errors are logged and retried on
// the next tick with the same capability; the coordinator never fails over to
// a different sensor mid-session, since independent baselines risk double
// counting.
func (c *Coordinator) tick() {
	c.recorder.IncLoopTick()

	ctx, cancel := context.WithTimeout(context.Background(), c.currentPollInterval())
	defer cancel()

	c.mu.Lock()
	capab := c.capability
	tracking := c.isTracking
	c.mu.Unlock()

	if !tracking || capab == nil {
		return
	}

	reading, err := capab.ReadCountSinceMidnight(ctx)
	if err != nil {
		c.recorder.IncSensorError(string(capab.Kind()))
		slog.Warn("Sensor read failed, retrying next tick",
			logfields.Capability(string(capab.Kind())), logfields.Error(err))
		return
	}

	absolute := reading
	if capab.Semantics() == sensor.SemanticsDelta {
		absolute = c.deltaToAbsolute(reading)
	}
	c.mergeReading(ctx, absolute)
}

// onDeltaReading handles push deliveries from a delta capability. This is an
// async entry point; it serializes against loop ticks through c.mu.
func (c *Coordinator) onDeltaReading(reading uint32) {
	ctx, cancel := context.WithTimeout(context.Background(), c.currentPollInterval())
	defer cancel()

	c.mergeReading(ctx, c.deltaToAbsolute(reading))
}

// deltaToAbsolute converts a cumulative-since-subscription reading into an
// absolute day total. A decreasing reading signals an underlying counter
// reset; the session is re-baselined at the current total, so the externally
// observed count never decreases.
func (c *Coordinator) deltaToAbsolute(reading uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.haveDeltaReading && reading < c.lastDeltaReading {
		c.sessionStart = c.currentSteps
		c.deltaOffset = reading
	}
	c.haveDeltaReading = true
	c.lastDeltaReading = reading

	return c.sessionStart + (reading - c.deltaOffset)
}

// mergeReading max-merges an absolute reading into currentSteps, then fans the
// change out and evaluates promotion eligibility. The max-merge keeps the
// count monotonic within a day regardless of sensor disagreement.
func (c *Coordinator) mergeReading(ctx context.Context, absolute uint32) {
	c.mu.Lock()
	changed := absolute > c.currentSteps
	if changed {
		c.currentSteps = absolute
	}
	steps := c.currentSteps
	c.mu.Unlock()

	if !changed {
		return
	}

	c.recorder.SetCurrentSteps(steps)
	c.registry.notifyAll(steps)

	if err := c.promote(ctx, metrics.ReasonThreshold, false); err != nil {
		slog.Warn("Promotion failed, in-memory state remains authoritative",
			logfields.Error(err))
	}
}

// promote writes in-memory state to durable storage and refreshes the
// notification. Without force, the write only happens once the distance from
// the checkpoint reaches the sync threshold; forced promotions (stop,
// backgrounding, manual entry, explicit sync) are unconditional. Promotions
// are serialized and always write the freshest snapshot, so an older value
// can never overwrite a newer persisted one.
func (c *Coordinator) promote(ctx context.Context, reason metrics.PromotionReason, force bool) error {
	c.promoteMu.Lock()
	defer c.promoteMu.Unlock()

	start := time.Now()

	// Opportunistic day-rollover check before every promotion.
	if err := c.maybeRollover(ctx); err != nil {
		slog.Warn("Day rollover check failed", logfields.Error(err))
	}

	c.mu.Lock()
	steps := c.currentSteps
	c.mu.Unlock()
	today := c.today()

	cp, err := store.GetCheckpoint(ctx, c.opts.Store)
	if err != nil {
		c.recorder.IncPromotion(reason, false)
		return trackerr.PersistenceFailure("get checkpoint", err)
	}

	if !force && absDiff(steps, cp.LastSyncedSteps) < c.syncThreshold.Load() {
		return nil
	}
	if steps < cp.LastSyncedSteps {
		// The checkpoint already holds a newer value for today.
		slog.Debug("Skipping stale promotion",
			logfields.Steps(steps), slog.Uint64("checkpoint", uint64(cp.LastSyncedSteps)))
		return nil
	}

	if err := store.SetUint32(ctx, c.opts.Store, store.KeyLastKnownSteps, steps); err != nil {
		c.recorder.IncPromotion(reason, false)
		return trackerr.PersistenceFailure("set "+store.KeyLastKnownSteps, err)
	}
	if err := c.opts.Store.UpsertDailySteps(ctx, today, steps); err != nil {
		c.recorder.IncPromotion(reason, false)
		return trackerr.PersistenceFailure("upsert daily steps", err)
	}
	next := store.Checkpoint{LastSyncedSteps: steps, LastSyncedAtMs: c.now().UnixMilli()}
	if err := store.SetCheckpoint(ctx, c.opts.Store, next); err != nil {
		c.recorder.IncPromotion(reason, false)
		return trackerr.PersistenceFailure("set checkpoint", err)
	}

	c.updateNotification(steps)
	c.recorder.IncPromotion(reason, true)
	c.recorder.ObservePromotionDuration(time.Since(start))

	slog.Debug("Promoted step count",
		logfields.Steps(steps), logfields.Reason(string(reason)), logfields.Date(today))
	return nil
}

// maybeRollover transitions the tracked date when the calendar day changed.
func (c *Coordinator) maybeRollover(ctx context.Context) error {
	today := c.today()

	lastReset, found, err := store.GetString(ctx, c.opts.Store, store.KeyLastResetDate)
	if err != nil {
		return trackerr.PersistenceFailure("get "+store.KeyLastResetDate, err)
	}
	if !found {
		if err := store.SetString(ctx, c.opts.Store, store.KeyLastResetDate, today); err != nil {
			return trackerr.PersistenceFailure("set "+store.KeyLastResetDate, err)
		}
		return nil
	}
	if lastReset == today {
		return nil
	}
	return c.rollover(ctx, lastReset, today)
}

// rollover finalizes the previous day's record, zeroes the counter and
// checkpoint, and notifies listeners with the new (zero) value so observers
// do not display stale cross-day counts.
func (c *Coordinator) rollover(ctx context.Context, prevDate, today string) error {
	slog.Info("Day rollover", logfields.Date(today), slog.String("previous", prevDate))

	prevHist, err := c.opts.Store.GetSteps(ctx, prevDate)
	if err != nil {
		return trackerr.PersistenceFailure("get previous daily steps", err)
	}
	cached, _, err := store.GetUint32(ctx, c.opts.Store, store.KeyLastKnownSteps)
	if err != nil {
		return trackerr.PersistenceFailure("get "+store.KeyLastKnownSteps, err)
	}

	c.mu.Lock()
	inMemory := c.currentSteps
	c.mu.Unlock()

	// Finalize yesterday from the best available evidence. In-memory steps
	// still belong to the previous day when the process lived across
	// midnight; at startup they are zero and the persisted values decide.
	final := prevHist
	if cached > final {
		final = cached
	}
	if inMemory > final {
		final = inMemory
	}
	if final > 0 {
		if err := c.opts.Store.UpsertDailySteps(ctx, prevDate, final); err != nil {
			return trackerr.PersistenceFailure("finalize previous day", err)
		}
	}

	c.mu.Lock()
	c.currentSteps = 0
	c.sessionStart = 0
	c.deltaOffset = c.lastDeltaReading
	initialized := c.isInitialized
	tracking := c.isTracking
	c.mu.Unlock()

	if err := store.SetUint32(ctx, c.opts.Store, store.KeyLastKnownSteps, 0); err != nil {
		return trackerr.PersistenceFailure("reset "+store.KeyLastKnownSteps, err)
	}
	zero := store.Checkpoint{LastSyncedSteps: 0, LastSyncedAtMs: c.now().UnixMilli()}
	if err := store.SetCheckpoint(ctx, c.opts.Store, zero); err != nil {
		return trackerr.PersistenceFailure("reset checkpoint", err)
	}
	if err := store.SetString(ctx, c.opts.Store, store.KeyLastResetDate, today); err != nil {
		return trackerr.PersistenceFailure("set "+store.KeyLastResetDate, err)
	}
	if initialized {
		if err := store.SetBool(ctx, c.opts.Store, store.KeyTrackingEnabled, tracking); err != nil {
			return trackerr.PersistenceFailure("rewrite "+store.KeyTrackingEnabled, err)
		}
	}

	c.recorder.SetCurrentSteps(0)
	c.registry.notifyAll(0)
	return nil
}

// onLifecycle reacts to host foreground/background transitions. This is an
// async entry point; promotion and state updates serialize through the usual
// locks.
func (c *Coordinator) onLifecycle(phase lifecycle.Phase) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.mu.Lock()
	c.phase = phase
	tracking := c.isTracking
	capab := c.capability
	deltaDown := c.deltaUnsub == nil
	c.mu.Unlock()

	if !tracking {
		return
	}

	switch phase {
	case lifecycle.PhaseBackground:
		// Unconditional promotion so accumulated but unpromoted steps are
		// never lost at a suspension boundary.
		if err := c.promote(ctx, metrics.ReasonBackground, true); err != nil {
			slog.Warn("Background promotion failed", logfields.Error(err))
		}
		// The loop slows down but keeps running while tracking.
		if err := c.loop.reschedule(time.Duration(c.bgPollInterval.Load())); err != nil {
			slog.Warn("Failed to slow refresh loop", logfields.Error(err))
		}

	case lifecycle.PhaseForeground:
		// Resynchronize immediately to cover drift accumulated while
		// suspended.
		if capab != nil && capab.Semantics() == sensor.SemanticsAbsolute {
			if reading, err := capab.ReadCountSinceMidnight(ctx); err == nil {
				c.mergeReading(ctx, reading)
			} else {
				c.recorder.IncSensorError(string(capab.Kind()))
				slog.Warn("Resume resync read failed", logfields.Error(err))
			}
		}
		// Restart the push subscription if the host tore it down.
		if capab != nil && capab.Semantics() == sensor.SemanticsDelta && deltaDown {
			if u, err := capab.SubscribeDeltas(c.onDeltaReading); err == nil {
				c.mu.Lock()
				c.deltaUnsub = u
				c.mu.Unlock()
			} else {
				slog.Warn("Failed to restore delta subscription", logfields.Error(err))
			}
		}
		if !c.loop.isRunning() {
			if err := c.loop.start(time.Duration(c.fgPollInterval.Load())); err != nil {
				slog.Error("Failed to restart refresh loop", logfields.Error(err))
			}
		} else if err := c.loop.reschedule(time.Duration(c.fgPollInterval.Load())); err != nil {
			slog.Warn("Failed to speed up refresh loop", logfields.Error(err))
		}
	}
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
