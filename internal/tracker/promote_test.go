package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/steptrack/internal/lifecycle"
	"git.home.luguber.info/inful/steptrack/internal/sensor"
	"git.home.luguber.info/inful/steptrack/internal/store"
)

func TestDayRolloverAtInitialize(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	c := newTestCoordinator(t, Options{
		Store:      mem,
		Candidates: []sensor.Capability{newDeltaCapability()},
	})

	yesterday := c.now().AddDate(0, 0, -1).Format(store.DateLayout)
	require.NoError(t, store.SetString(ctx, mem, store.KeyLastResetDate, yesterday))
	require.NoError(t, store.SetUint32(ctx, mem, store.KeyLastKnownSteps, 8000))
	require.NoError(t, store.SetCheckpoint(ctx, mem, store.Checkpoint{LastSyncedSteps: 8000}))

	require.NoError(t, c.Initialize(ctx))

	assert.Zero(t, c.GetCurrentSteps(), "the new day starts at zero")

	finalized, err := mem.GetSteps(ctx, yesterday)
	require.NoError(t, err)
	assert.Equal(t, uint32(8000), finalized, "previous day is finalized from the cached count")

	cp, err := store.GetCheckpoint(ctx, mem)
	require.NoError(t, err)
	assert.Zero(t, cp.LastSyncedSteps, "checkpoint resets with the day")

	lastReset, found, err := store.GetString(ctx, mem, store.KeyLastResetDate)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, c.today(), lastReset)
}

func TestRolloverDuringPromotionWhileRunning(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	capab := newDeltaCapability()
	c := newTestCoordinator(t, Options{
		Store:        mem,
		Candidates:   []sensor.Capability{capab},
		PollInterval: time.Hour, // keep the loop quiet while the clock moves
	})
	require.NoError(t, c.Initialize(ctx))
	require.True(t, c.StartTracking(ctx))

	capab.push(4500)
	require.Equal(t, uint32(4500), c.GetCurrentSteps())

	// Simulate midnight passing: the coordinator clock jumps a day ahead,
	// so the next promotion crosses a date boundary.
	prevDay := c.today()
	base := c.now()
	c.now = func() time.Time { return base.AddDate(0, 0, 1) }

	require.NoError(t, c.ForceSync(ctx))

	finalized, err := mem.GetSteps(ctx, prevDay)
	require.NoError(t, err)
	assert.Equal(t, uint32(4500), finalized, "in-memory steps finalize the previous day")
	assert.Zero(t, c.GetCurrentSteps())

	// Tracking must survive the rollover with the enabled flag intact.
	assert.True(t, c.IsTracking())
	enabled, found, err := store.GetBool(ctx, mem, store.KeyTrackingEnabled)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, enabled)

	// Counting resumes from zero; the delta baseline was re-anchored, so the
	// next reading does not replay the previous day's total.
	capab.push(4600)
	assert.Equal(t, uint32(100), c.GetCurrentSteps())
}

func TestBackgroundTransitionForcesPromotion(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	capab := newDeltaCapability()
	c := newTestCoordinator(t, Options{
		Store:         mem,
		Candidates:    []sensor.Capability{capab},
		SyncThreshold: 50,
	})
	require.NoError(t, c.Initialize(ctx))
	require.True(t, c.StartTracking(ctx))

	require.NoError(t, store.SetCheckpoint(ctx, mem, store.Checkpoint{LastSyncedSteps: 4995}))
	capab.push(5000) // 5 below threshold, would not promote on its own

	c.onLifecycle(lifecycle.PhaseBackground)

	cp, err := store.GetCheckpoint(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, uint32(5000), cp.LastSyncedSteps,
		"backgrounding must persist unpromoted steps")
	assert.True(t, c.IsTracking(), "tracking continues in the background")
}

func TestForegroundResyncForAbsoluteCapability(t *testing.T) {
	ctx := context.Background()
	capab := newAbsoluteCapability()
	c := newTestCoordinator(t, Options{
		Candidates:   []sensor.Capability{capab},
		PollInterval: time.Hour, // keep the loop out of the way
	})
	require.NoError(t, c.Initialize(ctx))
	require.True(t, c.StartTracking(ctx))

	c.onLifecycle(lifecycle.PhaseBackground)

	// Steps accumulate while suspended; the resume resync picks them up
	// without waiting for the next tick.
	capab.setReading(777)
	c.onLifecycle(lifecycle.PhaseForeground)

	assert.Equal(t, uint32(777), c.GetCurrentSteps())
}

func TestForegroundRestoresDeltaSubscription(t *testing.T) {
	ctx := context.Background()
	capab := newDeltaCapability()
	c := newTestCoordinator(t, Options{Candidates: []sensor.Capability{capab}})
	require.NoError(t, c.Initialize(ctx))
	require.True(t, c.StartTracking(ctx))

	// Host tore the subscription down while suspended.
	c.mu.Lock()
	c.deltaUnsub = nil
	c.mu.Unlock()

	c.onLifecycle(lifecycle.PhaseForeground)

	capab.mu.Lock()
	subs := capab.subscribeCalls
	capab.mu.Unlock()
	assert.Equal(t, 2, subs, "foreground must restore a torn-down subscription")
}

func TestPromotionSkipsStaleWrite(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	c := newTestCoordinator(t, Options{
		Store:      mem,
		Candidates: []sensor.Capability{newDeltaCapability()},
	})
	require.NoError(t, c.Initialize(ctx))

	// Checkpoint ahead of memory: another writer promoted a newer value.
	require.NoError(t, store.SetCheckpoint(ctx, mem, store.Checkpoint{LastSyncedSteps: 900}))
	c.mu.Lock()
	c.currentSteps = 300
	c.mu.Unlock()

	require.NoError(t, c.ForceSync(ctx))

	cp, err := store.GetCheckpoint(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, uint32(900), cp.LastSyncedSteps,
		"an older in-memory value never overwrites a newer checkpoint")
}

func TestPromotionFailureKeepsMemoryAuthoritative(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	capab := newDeltaCapability()
	c := newTestCoordinator(t, Options{
		Store:      mem,
		Candidates: []sensor.Capability{capab},
	})
	require.NoError(t, c.Initialize(ctx))
	require.True(t, c.StartTracking(ctx))

	mem.FailNext = errors.New("disk full")
	capab.push(200) // promotion attempt fails, update must survive

	assert.Equal(t, uint32(200), c.GetCurrentSteps())

	// Next forced promotion succeeds and catches up.
	require.NoError(t, c.ForceSync(ctx))
	cp, err := store.GetCheckpoint(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), cp.LastSyncedSteps)
}
