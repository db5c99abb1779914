package sensor

import (
	"context"
	"os"
	"strconv"
	"strings"
)

// PollingSource is the platform hook behind the polling capabilities. The OS
// integration lives behind this seam so adapters stay testable.
type PollingSource interface {
	// Available reports whether the source exists on this host.
	Available() bool

	// RequestAccess prompts for access; expiry of ctx is treated as denial.
	RequestAccess(ctx context.Context) (bool, error)

	// ReadDayTotal returns the absolute step total since midnight.
	ReadDayTotal(ctx context.Context) (uint32, error)
}

// PushSource is the platform hook behind the push-capable pedometer.
type PushSource interface {
	Available() bool
	RequestAccess(ctx context.Context) (bool, error)

	// Subscribe starts delivery of cumulative readings since subscription
	// start. Readings may decrease when the hardware counter resets.
	Subscribe(cb func(reading uint32)) (cancel func(), err error)
}

// FileSource is a PollingSource backed by a file holding a decimal count.
// It stands in for platform counter APIs in daemon deployments and tests.
type FileSource struct {
	Path string

	// Grant controls RequestAccess; file-backed counters need no prompt.
	Grant bool
}

// NewFileSource creates a file-backed source that always grants access.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, Grant: true}
}

func (f *FileSource) Available() bool {
	if f.Path == "" {
		return false
	}
	_, err := os.Stat(f.Path)
	return err == nil
}

func (f *FileSource) RequestAccess(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		return f.Grant, nil
	}
}

func (f *FileSource) ReadDayTotal(ctx context.Context) (uint32, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
