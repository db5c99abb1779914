package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeySteps      = "steps"
	KeyDelta      = "delta"
	KeyCapability = "capability"
	KeyDate       = "date"
	KeyReason     = "reason"
	KeySessionID  = "session_id"
	KeyPhase      = "phase"
	KeyDurationMS = "duration_ms"
	KeyKVKey      = "kv_key"
	KeySubject    = "subject"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Steps(n uint32) slog.Attr         { return slog.Uint64(KeySteps, uint64(n)) }
func Delta(n int64) slog.Attr          { return slog.Int64(KeyDelta, n) }
func Capability(kind string) slog.Attr { return slog.String(KeyCapability, kind) }
func Date(d string) slog.Attr          { return slog.String(KeyDate, d) }
func Reason(r string) slog.Attr        { return slog.String(KeyReason, r) }
func SessionID(id string) slog.Attr    { return slog.String(KeySessionID, id) }
func Phase(p string) slog.Attr         { return slog.String(KeyPhase, p) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func KVKey(k string) slog.Attr         { return slog.String(KeyKVKey, k) }
func Subject(s string) slog.Attr       { return slog.String(KeySubject, s) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
