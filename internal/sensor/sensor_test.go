package sensor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePushSource struct {
	available bool
	grant     bool
	deliver   func(uint32) // captured callback
	canceled  bool
	subErr    error
}

func (f *fakePushSource) Available() bool { return f.available }

func (f *fakePushSource) RequestAccess(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		return f.grant, nil
	}
}

func (f *fakePushSource) Subscribe(cb func(uint32)) (func(), error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.deliver = cb
	return func() { f.canceled = true }, nil
}

type fakePollingSource struct {
	available bool
	grant     bool
	total     uint32
	readErr   error
}

func (f *fakePollingSource) Available() bool { return f.available }

func (f *fakePollingSource) RequestAccess(ctx context.Context) (bool, error) {
	return f.grant, nil
}

func (f *fakePollingSource) ReadDayTotal(ctx context.Context) (uint32, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.total, nil
}

func TestPedometerDeliversAndTracksLastReading(t *testing.T) {
	src := &fakePushSource{available: true, grant: true}
	p := NewPedometer(src)

	assert.Equal(t, SemanticsDelta, p.Semantics())

	var got []uint32
	unsub, err := p.SubscribeDeltas(func(r uint32) { got = append(got, r) })
	require.NoError(t, err)

	src.deliver(10)
	src.deliver(25)
	assert.Equal(t, []uint32{10, 25}, got)

	// Read reflects the last push reading.
	n, err := p.ReadCountSinceMidnight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(25), n)

	unsub()
	assert.True(t, src.canceled)
	unsub() // idempotent
}

func TestPedometerSubscribeFailure(t *testing.T) {
	src := &fakePushSource{available: true, grant: true, subErr: errors.New("hw busy")}
	p := NewPedometer(src)

	_, err := p.SubscribeDeltas(func(uint32) {})
	require.Error(t, err)
}

func TestPollingCapabilitiesReadAbsoluteTotals(t *testing.T) {
	hs := NewHealthStore(&fakePollingSource{available: true, grant: true, total: 8000})
	assert.Equal(t, SemanticsAbsolute, hs.Semantics())

	n, err := hs.ReadCountSinceMidnight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(8000), n)

	_, err = hs.SubscribeDeltas(func(uint32) {})
	assert.ErrorIs(t, err, ErrUnsupported)

	dc := NewDeviceCounter(&fakePollingSource{available: true, grant: true, total: 123})
	n, err = dc.ReadCountSinceMidnight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(123), n)
}

func TestSelectPrefersPushOverPolling(t *testing.T) {
	push := &fakePushSource{available: true, grant: true}
	poll := &fakePollingSource{available: true, grant: true}

	c, err := Select(context.Background(), []Capability{
		NewPedometer(push),
		NewHealthStore(poll),
		NewDeviceCounter(poll),
	})
	require.NoError(t, err)
	assert.Equal(t, KindPedometer, c.Kind())
}

func TestSelectFallsThroughUnavailable(t *testing.T) {
	c, err := Select(context.Background(), []Capability{
		NewPedometer(&fakePushSource{available: false}),
		NewHealthStore(&fakePollingSource{available: false}),
		NewDeviceCounter(&fakePollingSource{available: true, grant: true, total: 1}),
	})
	require.NoError(t, err)
	assert.Equal(t, KindDeviceCounter, c.Kind())
}

func TestSelectNoCapability(t *testing.T) {
	_, err := Select(context.Background(), []Capability{
		NewPedometer(&fakePushSource{}),
		NewHealthStore(&fakePollingSource{}),
	})
	require.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter")
	src := NewFileSource(path)
	assert.False(t, src.Available())

	require.NoError(t, os.WriteFile(path, []byte("4230\n"), 0o644))
	assert.True(t, src.Available())

	n, err := src.ReadDayTotal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(4230), n)

	require.NoError(t, os.WriteFile(path, []byte("not-a-number"), 0o644))
	_, err = src.ReadDayTotal(context.Background())
	require.Error(t, err)
}
