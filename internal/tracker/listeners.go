package tracker

import (
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/steptrack/internal/logfields"
	"git.home.luguber.info/inful/steptrack/internal/metrics"
)

// listenerRegistry is a multi-subscriber registry for step updates. Listeners
// are invoked synchronously in no particular order; a panicking listener is
// recovered and logged so it cannot break fan-out to the others. The registry
// never retains a listener past its unsubscribe call.
type listenerRegistry struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[uint64]func(uint32)
	recorder  metrics.Recorder
}

func newListenerRegistry(recorder metrics.Recorder) *listenerRegistry {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &listenerRegistry{
		listeners: make(map[uint64]func(uint32)),
		recorder:  recorder,
	}
}

// subscribe registers cb and returns an idempotent unsubscribe func.
func (r *listenerRegistry) subscribe(cb func(steps uint32)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.listeners[id] = cb

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.listeners, id)
		})
	}
}

// notifyAll invokes every live listener with steps. Callbacks run outside the
// registry lock so a listener may subscribe or unsubscribe reentrantly.
func (r *listenerRegistry) notifyAll(steps uint32) {
	r.mu.Lock()
	cbs := make([]func(uint32), 0, len(r.listeners))
	for _, cb := range r.listeners {
		cbs = append(cbs, cb)
	}
	r.mu.Unlock()

	for _, cb := range cbs {
		r.invoke(cb, steps)
	}
}

func (r *listenerRegistry) invoke(cb func(uint32), steps uint32) {
	defer func() {
		if rec := recover(); rec != nil {
			r.recorder.IncListenerPanic()
			slog.Error("Step listener panicked", slog.Any("panic", rec), logfields.Steps(steps))
		}
	}()
	cb(steps)
}

func (r *listenerRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}
