package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRenderer struct {
	calls []string
	fail  bool
}

func (r *recordingRenderer) Show(text string) error {
	r.calls = append(r.calls, "show:"+text)
	if r.fail {
		return errors.New("render failed")
	}
	return nil
}

func (r *recordingRenderer) Update(text string) error {
	r.calls = append(r.calls, "update:"+text)
	if r.fail {
		return errors.New("render failed")
	}
	return nil
}

func (r *recordingRenderer) Hide() error {
	r.calls = append(r.calls, "hide")
	if r.fail {
		return errors.New("render failed")
	}
	return nil
}

func TestLogRendererIdempotence(t *testing.T) {
	r := NewLogRenderer()

	// Update and Hide with no prior Show must not fail.
	require.NoError(t, r.Update("Steps: 100"))
	require.NoError(t, r.Hide())
	require.NoError(t, r.Hide())

	require.NoError(t, r.Show("Steps: 200"))
	require.NoError(t, r.Update("Steps: 200")) // no-op, same text
	require.NoError(t, r.Hide())
}

func TestMultiContinuesPastFailures(t *testing.T) {
	failing := &recordingRenderer{fail: true}
	healthy := &recordingRenderer{}

	m := NewMulti(failing, nil, healthy)

	require.NoError(t, m.Show("Steps: 1234"))
	require.NoError(t, m.Update("Steps: 1300"))
	require.NoError(t, m.Hide())

	// The failing renderer did not block the healthy one.
	assert.Equal(t, []string{"show:Steps: 1234", "update:Steps: 1300", "hide"}, healthy.calls)
	assert.Len(t, failing.calls, 3)
}
