// Package lifecycle delivers host lifecycle transitions (foreground and
// background) to subscribers. In daemon deployments the transitions are driven
// by OS signals; tests drive them directly.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"git.home.luguber.info/inful/steptrack/internal/logfields"
)

// Phase is an observed host lifecycle state.
type Phase string

const (
	PhaseForeground Phase = "foreground"
	PhaseBackground Phase = "background"
)

// Notifier delivers phase transitions to subscribers.
type Notifier interface {
	// Subscribe registers cb for transitions. The returned func unsubscribes
	// and is idempotent.
	Subscribe(cb func(Phase)) (unsubscribe func())
}

// Signals is a Notifier driven by OS signals: SIGUSR1 backgrounds the host,
// SIGUSR2 foregrounds it. This mirrors how a mobile host would suspend and
// resume the process.
type Signals struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(Phase)
}

// NewSignals creates an unstarted signal notifier.
func NewSignals() *Signals {
	return &Signals{subs: make(map[uint64]func(Phase))}
}

// Subscribe registers cb for transitions.
func (s *Signals) Subscribe(cb func(Phase)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs[id] = cb

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}

// Emit delivers a phase transition to all subscribers. Exposed so tests and
// the daemon shutdown path can inject transitions directly.
func (s *Signals) Emit(phase Phase) {
	s.mu.Lock()
	cbs := make([]func(Phase), 0, len(s.subs))
	for _, cb := range s.subs {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(phase)
	}
}

// Run listens for lifecycle signals until ctx is canceled.
func (s *Signals) Run(ctx context.Context) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			phase := PhaseForeground
			if sig == syscall.SIGUSR1 {
				phase = PhaseBackground
			}
			slog.Info("Host lifecycle transition", logfields.Phase(string(phase)))
			s.Emit(phase)
		}
	}
}
