// Package sensor abstracts platform-specific sources of step counts behind a
// single capability contract. Exactly one capability is active per process,
// selected once at coordinator initialization in a fixed preference order.
package sensor

import (
	"context"
	"errors"
)

// Kind identifies a capability variant.
type Kind string

const (
	KindNone          Kind = "none"
	KindPedometer     Kind = "pedometer"     // push-capable hardware pedometer
	KindHealthStore   Kind = "healthstore"   // polling OS health data store
	KindDeviceCounter Kind = "devicecounter" // polling raw device counter
)

// Semantics declares how a capability's readings must be interpreted. A
// capability is never both: delta readings need session-baseline tracking,
// absolute readings are safe to merge directly.
type Semantics string

const (
	// SemanticsAbsolute readings are day-totals since midnight.
	SemanticsAbsolute Semantics = "absolute"
	// SemanticsDelta readings are cumulative since subscription start and may
	// decrease when the underlying counter resets.
	SemanticsDelta Semantics = "delta"
)

// ErrUnsupported is returned by SubscribeDeltas on polling-only capabilities.
var ErrUnsupported = errors.New("delta subscription not supported by this capability")

// Capability is the contract the coordinator consumes.
type Capability interface {
	Kind() Kind
	Semantics() Semantics

	// CheckAvailability reports whether the backing platform source exists.
	// Evaluated once during selection and cached by the caller.
	CheckAvailability(ctx context.Context) bool

	// RequestPermission prompts for platform access. Callers bound the context;
	// expiry is treated as denial.
	RequestPermission(ctx context.Context) (bool, error)

	// ReadCountSinceMidnight returns the current reading. For absolute
	// capabilities this is the day-total; for delta capabilities it is the
	// cumulative delta since subscription start.
	ReadCountSinceMidnight(ctx context.Context) (uint32, error)

	// SubscribeDeltas registers cb for push readings. Returns ErrUnsupported
	// for polling capabilities. The returned func unsubscribes and is
	// idempotent.
	SubscribeDeltas(cb func(reading uint32)) (unsubscribe func(), err error)
}
