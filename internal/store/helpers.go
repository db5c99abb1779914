package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// Typed accessors layered over the raw KV surface. All values are stored as
// human-readable text (JSON for structs) so the database stays inspectable.

// GetUint32 reads key as a uint32; absent keys return (0, false, nil).
func GetUint32(ctx context.Context, kv KV, key string) (uint32, bool, error) {
	raw, found, err := kv.Get(ctx, key)
	if err != nil || !found {
		return 0, false, err
	}
	n, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s as uint32: %w", key, err)
	}
	return uint32(n), true, nil
}

// SetUint32 writes key as a decimal uint32.
func SetUint32(ctx context.Context, kv KV, key string, value uint32) error {
	return kv.Set(ctx, key, []byte(strconv.FormatUint(uint64(value), 10)))
}

// GetBool reads key as a bool; absent keys return (false, false, nil).
func GetBool(ctx context.Context, kv KV, key string) (bool, bool, error) {
	raw, found, err := kv.Get(ctx, key)
	if err != nil || !found {
		return false, false, err
	}
	b, err := strconv.ParseBool(string(raw))
	if err != nil {
		return false, false, fmt.Errorf("parse %s as bool: %w", key, err)
	}
	return b, true, nil
}

// SetBool writes key as "true"/"false".
func SetBool(ctx context.Context, kv KV, key string, value bool) error {
	return kv.Set(ctx, key, []byte(strconv.FormatBool(value)))
}

// GetString reads key as a string; absent keys return ("", false, nil).
func GetString(ctx context.Context, kv KV, key string) (string, bool, error) {
	raw, found, err := kv.Get(ctx, key)
	if err != nil || !found {
		return "", false, err
	}
	return string(raw), true, nil
}

// SetString writes key as a raw string.
func SetString(ctx context.Context, kv KV, key, value string) error {
	return kv.Set(ctx, key, []byte(value))
}

// GetCheckpoint reads the promotion checkpoint; a zero checkpoint is returned
// when none has been written yet.
func GetCheckpoint(ctx context.Context, kv KV) (Checkpoint, error) {
	raw, found, err := kv.Get(ctx, KeySyncCheckpoint)
	if err != nil || !found {
		return Checkpoint{}, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// SetCheckpoint writes the promotion checkpoint.
func SetCheckpoint(ctx context.Context, kv KV, cp Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	return kv.Set(ctx, KeySyncCheckpoint, raw)
}
