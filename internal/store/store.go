// Package store is the persistence gateway for step tracking: a small durable
// key-value store for tracker state plus a day-keyed historical step log.
package store

import (
	"context"
	"time"
)

// Well-known keys in the key-value store.
const (
	KeyTrackingEnabled = "tracking_enabled"
	KeyLastKnownSteps  = "last_known_steps"
	KeyLastResetDate   = "last_reset_date"
	KeySyncCheckpoint  = "sync_checkpoint"
)

// DateLayout is the canonical day key format.
const DateLayout = "2006-01-02"

// Checkpoint is the singleton promotion checkpoint. It exists purely to decide
// whether a promotion to durable storage is warranted.
type Checkpoint struct {
	LastSyncedSteps uint32 `json:"last_synced_steps"`
	LastSyncedAtMs  int64  `json:"last_synced_at_ms"`
}

// DailyStepRecord is one persisted row per calendar date. Rows are created on
// first sync of a new day, updated in place thereafter, and never deleted by
// the coordinator.
type DailyStepRecord struct {
	Date      string    `json:"date"`
	Steps     uint32    `json:"steps"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KV defines raw keyed byte access.
type KV interface {
	// Get returns the value for key. found is false when the key is absent;
	// err is reserved for actual read failures.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set writes the value for key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error
}

// History defines the day-keyed historical step log.
type History interface {
	// UpsertDailySteps creates or updates the record for date.
	UpsertDailySteps(ctx context.Context, date string, steps uint32) error

	// GetSteps returns the step count for date, or zero when no record exists.
	GetSteps(ctx context.Context, date string) (uint32, error)

	// Range returns records with from <= date <= to, ordered by date.
	Range(ctx context.Context, from, to string) ([]DailyStepRecord, error)
}

// Store combines the gateway surfaces with lifecycle management.
type Store interface {
	KV
	History
	Close() error
}
