// Package notify renders the single persistent step-count status surface.
// All operations are idempotent: Update and Hide are safe without a prior
// Show, and repeated calls are harmless.
package notify

import (
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/steptrack/internal/logfields"
)

// Renderer displays a single replaceable status surface.
type Renderer interface {
	Show(text string) error
	Update(text string) error
	Hide() error
}

// LogRenderer writes the status surface to the structured log. It is the
// default renderer for headless deployments.
type LogRenderer struct {
	mu      sync.Mutex
	visible bool
	last    string
}

// NewLogRenderer creates a log-backed renderer.
func NewLogRenderer() *LogRenderer {
	return &LogRenderer{}
}

func (r *LogRenderer) Show(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = true
	r.last = text
	slog.Info("Status notification shown", slog.String("text", text))
	return nil
}

func (r *LogRenderer) Update(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if text == r.last && r.visible {
		return nil
	}
	r.visible = true
	r.last = text
	slog.Debug("Status notification updated", slog.String("text", text))
	return nil
}

func (r *LogRenderer) Hide() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.visible {
		return nil
	}
	r.visible = false
	r.last = ""
	slog.Info("Status notification hidden")
	return nil
}

// Multi fans a status surface out to several renderers. Individual failures
// are logged and do not stop delivery to the remaining renderers.
type Multi struct {
	renderers []Renderer
}

// NewMulti combines renderers; nil entries are dropped.
func NewMulti(renderers ...Renderer) *Multi {
	m := &Multi{}
	for _, r := range renderers {
		if r != nil {
			m.renderers = append(m.renderers, r)
		}
	}
	return m
}

func (m *Multi) Show(text string) error   { return m.each(func(r Renderer) error { return r.Show(text) }) }
func (m *Multi) Update(text string) error { return m.each(func(r Renderer) error { return r.Update(text) }) }
func (m *Multi) Hide() error              { return m.each(func(r Renderer) error { return r.Hide() }) }

func (m *Multi) each(fn func(Renderer) error) error {
	for _, r := range m.renderers {
		if err := fn(r); err != nil {
			slog.Warn("Notification renderer failed", logfields.Error(err))
		}
	}
	return nil
}
