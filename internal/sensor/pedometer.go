package sensor

import (
	"context"
	"sync"
	"sync/atomic"

	"git.home.luguber.info/inful/steptrack/internal/trackerr"
)

// Pedometer is the push-capable hardware pedometer capability. Readings are
// cumulative since subscription start; a decreasing reading signals an
// underlying counter reset and is the subscriber's cue to re-baseline.
type Pedometer struct {
	source PushSource

	mu          sync.Mutex
	cancel      func()
	lastReading atomic.Uint32
}

// NewPedometer wraps a push source as a capability.
func NewPedometer(source PushSource) *Pedometer {
	return &Pedometer{source: source}
}

func (p *Pedometer) Kind() Kind           { return KindPedometer }
func (p *Pedometer) Semantics() Semantics { return SemanticsDelta }

func (p *Pedometer) CheckAvailability(ctx context.Context) bool {
	return p.source != nil && p.source.Available()
}

func (p *Pedometer) RequestPermission(ctx context.Context) (bool, error) {
	if p.source == nil {
		return false, trackerr.CapabilityUnavailable()
	}
	return p.source.RequestAccess(ctx)
}

// ReadCountSinceMidnight returns the latest cumulative reading delivered by
// the push subscription. Zero until the first delivery.
func (p *Pedometer) ReadCountSinceMidnight(ctx context.Context) (uint32, error) {
	return p.lastReading.Load(), nil
}

// SubscribeDeltas starts push delivery. Only one subscription is active at a
// time; subscribing again replaces the previous one.
func (p *Pedometer) SubscribeDeltas(cb func(uint32)) (func(), error) {
	if p.source == nil {
		return nil, trackerr.CapabilityUnavailable()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	cancel, err := p.source.Subscribe(func(reading uint32) {
		p.lastReading.Store(reading)
		cb(reading)
	})
	if err != nil {
		return nil, trackerr.CapabilityStartFailed(string(KindPedometer), err)
	}
	p.cancel = cancel

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.cancel != nil {
				p.cancel()
				p.cancel = nil
			}
		})
	}, nil
}
