package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/steptrack/internal/metrics"
)

type panicCountingRecorder struct {
	metrics.NoopRecorder
	mu     sync.Mutex
	panics int
}

func (r *panicCountingRecorder) IncListenerPanic() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panics++
}

func TestListenerFanOutSurvivesPanic(t *testing.T) {
	rec := &panicCountingRecorder{}
	reg := newListenerRegistry(rec)

	var got1, got3 uint32
	reg.subscribe(func(steps uint32) { got1 = steps })
	reg.subscribe(func(steps uint32) { panic("listener bug") })
	reg.subscribe(func(steps uint32) { got3 = steps })

	reg.notifyAll(1234)

	assert.Equal(t, uint32(1234), got1)
	assert.Equal(t, uint32(1234), got3, "panic in one listener must not break fan-out")
	assert.Equal(t, 1, rec.panics)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	reg := newListenerRegistry(nil)

	calls := 0
	unsub1 := reg.subscribe(func(uint32) { calls++ })
	unsub2 := reg.subscribe(func(uint32) { calls++ })
	assert.Equal(t, 2, reg.count())

	unsub1()
	unsub1() // second call is a no-op
	assert.Equal(t, 1, reg.count())

	reg.notifyAll(7)
	assert.Equal(t, 1, calls)

	unsub2()
	assert.Zero(t, reg.count())
}

func TestListenerMaySubscribeReentrantly(t *testing.T) {
	reg := newListenerRegistry(nil)

	var inner bool
	reg.subscribe(func(uint32) {
		reg.subscribe(func(uint32) { inner = true })
	})

	reg.notifyAll(1) // registers the inner listener
	reg.notifyAll(2)
	assert.True(t, inner)
}
