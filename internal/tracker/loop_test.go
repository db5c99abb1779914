package tracker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshLoopTicksAndStops(t *testing.T) {
	var ticks atomic.Int64
	l := newRefreshLoop(func() { ticks.Add(1) })

	require.NoError(t, l.start(10*time.Millisecond))
	require.NoError(t, l.start(10*time.Millisecond)) // idempotent
	assert.True(t, l.isRunning())

	require.Eventually(t, func() bool {
		return ticks.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, l.stop())
	require.NoError(t, l.stop()) // idempotent
	assert.False(t, l.isRunning())

	stopped := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load(), "no ticks after stop")
}

func TestRefreshLoopRescheduleInPlace(t *testing.T) {
	var ticks atomic.Int64
	l := newRefreshLoop(func() { ticks.Add(1) })

	require.NoError(t, l.start(time.Hour))
	require.NoError(t, l.reschedule(10*time.Millisecond))

	require.Eventually(t, func() bool {
		return ticks.Load() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, l.stop())
}

func TestRefreshLoopRescheduleWhenStoppedIsNoOp(t *testing.T) {
	l := newRefreshLoop(func() {})
	assert.NoError(t, l.reschedule(time.Second))
}

func TestRefreshLoopSurvivesPanickingTick(t *testing.T) {
	var ticks atomic.Int64
	l := newRefreshLoop(func() {
		if ticks.Add(1) == 1 {
			panic("tick bug")
		}
	})

	require.NoError(t, l.start(10*time.Millisecond))
	defer func() { _ = l.stop() }()

	require.Eventually(t, func() bool {
		return ticks.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond, "loop keeps ticking after a panic")
}
