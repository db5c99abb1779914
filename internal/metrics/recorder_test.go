package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.SetCurrentSteps(100)
	r.IncPromotion(ReasonThreshold, true)
	r.ObservePromotionDuration(time.Millisecond)
	r.IncLoopTick()
	r.IncSensorError("pedometer")
	r.IncListenerPanic()
}

func TestPrometheusRecorderRegistersAndCounts(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.SetCurrentSteps(4230)
	r.IncPromotion(ReasonForced, true)
	r.IncPromotion(ReasonThreshold, false)
	r.ObservePromotionDuration(5 * time.Millisecond)
	r.IncLoopTick()
	r.IncLoopTick()
	r.IncSensorError("healthstore")
	r.IncListenerPanic()

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]bool{}
	for _, f := range families {
		byName[f.GetName()] = true
	}
	assert.True(t, byName["steptrack_current_steps"])
	assert.True(t, byName["steptrack_promotions_total"])
	assert.True(t, byName["steptrack_refresh_loop_ticks_total"])
	assert.True(t, byName["steptrack_sensor_errors_total"])
}

func TestPrometheusRecorderNilSafety(t *testing.T) {
	var r *PrometheusRecorder
	r.SetCurrentSteps(1)
	r.IncPromotion(ReasonManual, true)
	r.ObservePromotionDuration(time.Second)
	r.IncLoopTick()
	r.IncSensorError("devicecounter")
	r.IncListenerPanic()
}
