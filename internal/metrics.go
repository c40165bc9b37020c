package fsrpad

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fsrpad",
		Name:      "ticks_total",
		Help:      "Total sampler ticks",
	})

	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fsrpad",
		Name:      "hits_total",
		Help:      "Total detected hits",
	})

	releasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fsrpad",
		Name:      "releases_total",
		Help:      "Total released hits",
	})

	pressureEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fsrpad",
		Name:      "pressure_events_total",
		Help:      "Total pressure step changes, by kind (raw, confirmed)",
	}, []string{"kind"})

	hitVelocityHist = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fsrpad",
		Name:      "hit_velocity",
		Help:      "Hit velocity scaled to 0..127",
		Buckets:   prometheus.LinearBuckets(8, 8, 16),
	})

	releaseVelocityHist = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fsrpad",
		Name:      "release_velocity",
		Help:      "Release velocity",
		Buckets:   prometheus.LinearBuckets(8, 8, 16),
	})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fsrpad",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a transport queue was full",
	}, []string{"transport"})
)

// MetricsHandler counts the events of a pad.
type MetricsHandler struct {
	nSteps uint16
}

// NewMetricsHandler returns a handler for a pad with nSteps steps.
func NewMetricsHandler(nSteps uint16) *MetricsHandler {
	return &MetricsHandler{nSteps: nSteps}
}

func (m *MetricsHandler) OnPressureRaw(float32, uint16) {
	pressureEventsTotal.WithLabelValues("raw").Inc()
}

func (m *MetricsHandler) OnPressure(float32, uint16) {
	pressureEventsTotal.WithLabelValues("confirmed").Inc()
}

func (m *MetricsHandler) OnHit(velocity uint16) {
	hitsTotal.Inc()
	hitVelocityHist.Observe(float64(scale7(velocity, m.nSteps)))
}

func (m *MetricsHandler) OnRelease(velocity uint8) {
	releasesTotal.Inc()
	releaseVelocityHist.Observe(float64(velocity))
}

// scale7 maps a step of an nSteps resolution to 0..127.
func scale7(step, nSteps uint16) uint8 {
	if nSteps <= 1 {
		return 0
	}
	if step >= nSteps-1 {
		return 127
	}
	return uint8(uint32(step) * 127 / uint32(nSteps-1))
}
