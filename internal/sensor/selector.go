package sensor

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/steptrack/internal/logfields"
	"git.home.luguber.info/inful/steptrack/internal/trackerr"
)

// Select picks the first available capability from candidates, which must be
// ordered by preference (push-capable sensors before polling ones). Selection
// happens exactly once per process; failures after selection never trigger a
// mid-session failover, since switching sensors mid-day risks double counting.
func Select(ctx context.Context, candidates []Capability) (Capability, error) {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if c.CheckAvailability(ctx) {
			slog.Info("Selected step sensor capability", logfields.Capability(string(c.Kind())))
			return c, nil
		}
		slog.Debug("Capability unavailable, trying next", logfields.Capability(string(c.Kind())))
	}
	return nil, trackerr.CapabilityUnavailable()
}

// DefaultCandidates assembles the production preference order from the
// platform sources. Nil sources yield capabilities that report unavailable.
func DefaultCandidates(push PushSource, health, counter PollingSource) []Capability {
	return []Capability{
		NewPedometer(push),
		NewHealthStore(health),
		NewDeviceCounter(counter),
	}
}
