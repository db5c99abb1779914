package sensor

import (
	"context"

	"git.home.luguber.info/inful/steptrack/internal/trackerr"
)

// HealthStore is the polling capability over the OS health data store. It
// returns absolute day-totals and requires a user-facing permission prompt.
type HealthStore struct {
	source PollingSource
}

// NewHealthStore wraps a polling source as the health-store capability.
func NewHealthStore(source PollingSource) *HealthStore {
	return &HealthStore{source: source}
}

func (h *HealthStore) Kind() Kind           { return KindHealthStore }
func (h *HealthStore) Semantics() Semantics { return SemanticsAbsolute }

func (h *HealthStore) CheckAvailability(ctx context.Context) bool {
	return h.source != nil && h.source.Available()
}

func (h *HealthStore) RequestPermission(ctx context.Context) (bool, error) {
	if h.source == nil {
		return false, trackerr.CapabilityUnavailable()
	}
	return h.source.RequestAccess(ctx)
}

func (h *HealthStore) ReadCountSinceMidnight(ctx context.Context) (uint32, error) {
	n, err := h.source.ReadDayTotal(ctx)
	if err != nil {
		return 0, trackerr.TransientSensorError(string(KindHealthStore), err)
	}
	return n, nil
}

func (h *HealthStore) SubscribeDeltas(func(uint32)) (func(), error) {
	return nil, ErrUnsupported
}

// DeviceCounter is the polling capability over the raw device step counter.
// No permission prompt is required; availability is the only gate.
type DeviceCounter struct {
	source PollingSource
}

// NewDeviceCounter wraps a polling source as the device-counter capability.
func NewDeviceCounter(source PollingSource) *DeviceCounter {
	return &DeviceCounter{source: source}
}

func (d *DeviceCounter) Kind() Kind           { return KindDeviceCounter }
func (d *DeviceCounter) Semantics() Semantics { return SemanticsAbsolute }

func (d *DeviceCounter) CheckAvailability(ctx context.Context) bool {
	return d.source != nil && d.source.Available()
}

func (d *DeviceCounter) RequestPermission(ctx context.Context) (bool, error) {
	if d.source == nil {
		return false, trackerr.CapabilityUnavailable()
	}
	return d.source.RequestAccess(ctx)
}

func (d *DeviceCounter) ReadCountSinceMidnight(ctx context.Context) (uint32, error) {
	n, err := d.source.ReadDayTotal(ctx)
	if err != nil {
		return 0, trackerr.TransientSensorError(string(KindDeviceCounter), err)
	}
	return n, nil
}

func (d *DeviceCounter) SubscribeDeltas(func(uint32)) (func(), error) {
	return nil, ErrUnsupported
}
