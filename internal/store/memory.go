package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and as a fallback when the
// durable store cannot be opened. It supports error injection so callers can
// exercise soft-failure paths.
type MemoryStore struct {
	mu    sync.RWMutex
	kv    map[string][]byte
	daily map[string]DailyStepRecord

	// FailNext, when set, is returned by the next mutating call and cleared.
	FailNext error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		kv:    make(map[string][]byte),
		daily: make(map[string]DailyStepRecord),
	}
}

func (m *MemoryStore) takeInjectedError() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// Get returns the value for key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.kv[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set writes the value for key.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjectedError(); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.kv[key] = v
	return nil
}

// UpsertDailySteps creates or updates the record for date.
func (m *MemoryStore) UpsertDailySteps(ctx context.Context, date string, steps uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjectedError(); err != nil {
		return err
	}
	m.daily[date] = DailyStepRecord{Date: date, Steps: steps, UpdatedAt: time.Now()}
	return nil
}

// GetSteps returns the step count for date, or zero when no record exists.
func (m *MemoryStore) GetSteps(ctx context.Context, date string) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.daily[date].Steps, nil
}

// Range returns records with from <= date <= to, ordered by date.
func (m *MemoryStore) Range(ctx context.Context, from, to string) ([]DailyStepRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []DailyStepRecord
	for date, r := range m.daily {
		if date >= from && date <= to {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
