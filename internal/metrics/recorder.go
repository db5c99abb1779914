// Package metrics defines observability hooks for the step tracking
// coordinator. Implementations may forward to Prometheus; the NoopRecorder is
// the default when metrics are not configured.
package metrics

import "time"

// PromotionReason labels why a promotion to durable storage happened.
type PromotionReason string

const (
	ReasonThreshold  PromotionReason = "threshold"
	ReasonForced     PromotionReason = "forced"
	ReasonBackground PromotionReason = "background"
	ReasonManual     PromotionReason = "manual"
	ReasonStop       PromotionReason = "stop"
	ReasonRollover   PromotionReason = "rollover"
)

// Recorder defines observability hooks for tracking metrics. All methods must
// be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	SetCurrentSteps(n uint32)
	IncPromotion(reason PromotionReason, success bool)
	ObservePromotionDuration(d time.Duration)
	IncLoopTick()
	IncSensorError(capability string)
	IncListenerPanic()
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) SetCurrentSteps(uint32)                 {}
func (NoopRecorder) IncPromotion(PromotionReason, bool)     {}
func (NoopRecorder) ObservePromotionDuration(time.Duration) {}
func (NoopRecorder) IncLoopTick()                           {}
func (NoopRecorder) IncSensorError(string)                  {}
func (NoopRecorder) IncListenerPanic()                      {}
