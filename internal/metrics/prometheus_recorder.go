package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	currentSteps      prom.Gauge
	promotions        *prom.CounterVec
	promotionDuration prom.Histogram
	loopTicks         prom.Counter
	sensorErrors      *prom.CounterVec
	listenerPanics    prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.currentSteps = prom.NewGauge(prom.GaugeOpts{
			Namespace: "steptrack",
			Name:      "current_steps",
			Help:      "Current in-memory step count for today",
		})
		pr.promotions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "steptrack",
			Name:      "promotions_total",
			Help:      "Durable promotions by reason and result",
		}, []string{"reason", "result"})
		pr.promotionDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "steptrack",
			Name:      "promotion_duration_seconds",
			Help:      "Duration of promotion (persist + notify) operations",
			Buckets:   prom.DefBuckets,
		})
		pr.loopTicks = prom.NewCounter(prom.CounterOpts{
			Namespace: "steptrack",
			Name:      "refresh_loop_ticks_total",
			Help:      "Background refresh loop tick count",
		})
		pr.sensorErrors = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "steptrack",
			Name:      "sensor_errors_total",
			Help:      "Failed sensor reads by capability",
		}, []string{"capability"})
		pr.listenerPanics = prom.NewCounter(prom.CounterOpts{
			Namespace: "steptrack",
			Name:      "listener_panics_total",
			Help:      "Listener callbacks recovered from panic during fan-out",
		})
		reg.MustRegister(pr.currentSteps, pr.promotions, pr.promotionDuration, pr.loopTicks, pr.sensorErrors, pr.listenerPanics)
	})
	return pr
}

func (p *PrometheusRecorder) SetCurrentSteps(n uint32) {
	if p == nil || p.currentSteps == nil {
		return
	}
	p.currentSteps.Set(float64(n))
}

func (p *PrometheusRecorder) IncPromotion(reason PromotionReason, success bool) {
	if p == nil || p.promotions == nil {
		return
	}
	result := "failed"
	if success {
		result = "success"
	}
	p.promotions.WithLabelValues(string(reason), result).Inc()
}

func (p *PrometheusRecorder) ObservePromotionDuration(d time.Duration) {
	if p == nil || p.promotionDuration == nil {
		return
	}
	p.promotionDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncLoopTick() {
	if p == nil || p.loopTicks == nil {
		return
	}
	p.loopTicks.Inc()
}

func (p *PrometheusRecorder) IncSensorError(capability string) {
	if p == nil || p.sensorErrors == nil {
		return
	}
	p.sensorErrors.WithLabelValues(capability).Inc()
}

func (p *PrometheusRecorder) IncListenerPanic() {
	if p == nil || p.listenerPanics == nil {
		return
	}
	p.listenerPanics.Inc()
}
