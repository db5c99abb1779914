package trackerr

// Convenience constructors for the tracking error taxonomy.

// PermissionDenied indicates the platform refused (or never granted) step
// sensor access. Tracking methods degrade to false/zero, never panic.
func PermissionDenied(capability string) *TrackError {
	return New(CategoryPermission, SeverityWarning, "step sensor permission denied").
		WithContext("capability", capability)
}

// CapabilityUnavailable indicates no usable sensor backend exists on this host.
func CapabilityUnavailable() *TrackError {
	return New(CategoryCapability, SeverityWarning, "no usable step sensor capability")
}

// CapabilityStartFailed indicates the selected capability could not be started.
func CapabilityStartFailed(capability string, cause error) *TrackError {
	return Wrap(cause, CategoryCapability, SeverityError, "capability start failed").
		WithContext("capability", capability)
}

// PersistenceFailure wraps an I/O error from the persistence gateway. Soft
// failure: in-memory state remains authoritative until the next promotion.
func PersistenceFailure(op string, cause error) *TrackError {
	return Wrap(cause, CategoryPersistence, SeverityWarning, "persistence operation failed").
		WithContext("operation", op)
}

// InvalidInput rejects a caller-supplied value synchronously.
func InvalidInput(field, reason string) *TrackError {
	return New(CategoryInput, SeverityError, "invalid input").
		WithContext("field", field).
		WithContext("reason", reason)
}

// TransientSensorError marks a single failed poll/read; retried on the next
// loop tick, never escalated.
func TransientSensorError(capability string, cause error) *TrackError {
	e := Wrap(cause, CategorySensor, SeverityWarning, "sensor read failed")
	e.Retryable = true
	return e.WithContext("capability", capability)
}

// InternalError wraps an unexpected failure.
func InternalError(message string, cause error) *TrackError {
	return Wrap(cause, CategoryInternal, SeverityError, message)
}
