package trackerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	e := New(CategoryInput, SeverityError, "invalid input")
	assert.Equal(t, "input (error): invalid input", e.Error())

	cause := errors.New("disk full")
	w := Wrap(cause, CategoryPersistence, SeverityWarning, "write failed")
	assert.Equal(t, "persistence (warning): write failed: disk full", w.Error())
	assert.Equal(t, cause, errors.Unwrap(w))
}

func TestCategoryChecks(t *testing.T) {
	e := PermissionDenied("pedometer")
	require.True(t, IsCategory(e, CategoryPermission))
	require.False(t, IsCategory(e, CategoryInput))
	assert.Equal(t, CategoryPermission, GetCategory(e))

	// Wrapped in a plain error chain, classification still resolves.
	chained := fmt.Errorf("initialize: %w", e)
	assert.True(t, IsCategory(chained, CategoryPermission))

	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
}

func TestRetryability(t *testing.T) {
	transient := TransientSensorError("healthstore", errors.New("timeout"))
	assert.True(t, IsRetryable(transient))

	denied := PermissionDenied("pedometer")
	assert.False(t, IsRetryable(denied))
}

func TestWithContext(t *testing.T) {
	e := InvalidInput("steps", "must be positive")
	require.NotNil(t, e.Context)
	assert.Equal(t, "steps", e.Context["field"])
	assert.Equal(t, "must be positive", e.Context["reason"])
}
