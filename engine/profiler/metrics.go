package profiler

import (
	"net/http"
	"time"

	"github.com/Carmen-Shannon/oxy-vr/engine/quality"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports the quality controller's state as Prometheus collectors. Gauges follow the
// latest frame; counters advance by the change in the controller's cumulative totals.
type Metrics struct {
	level                prometheus.Gauge
	utilization          prometheus.Gauge
	supersampling        prometheus.Gauge
	viewportPixels       prometheus.Gauge
	reprojecting         prometheus.Gauge
	adaptations          *prometheus.CounterVec
	droppedFrames        prometheus.Counter
	telemetryUnavailable prometheus.Counter
	submitErrors         prometheus.Counter
	fenceWaitAttempts    prometheus.Histogram

	last quality.FrameStats
}

// NewMetrics creates the collectors and registers them with reg.
//
// Parameters:
//   - reg: the registerer, typically a dedicated *prometheus.Registry
//
// Returns:
//   - *Metrics: the metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		level: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oxyvr_quality_level",
			Help: "Current adaptive quality level",
		}),
		utilization: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oxyvr_utilization",
			Help: "GPU utilization of the last frame as a fraction of the frame budget",
		}),
		supersampling: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oxyvr_actual_supersampling",
			Help: "Supersampling factor applied to the recommended render size",
		}),
		viewportPixels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oxyvr_viewport_pixels",
			Help: "Per-eye viewport area in pixels",
		}),
		reprojecting: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oxyvr_interleaved_reprojection",
			Help: "1 while interleaved reprojection is forced",
		}),
		adaptations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oxyvr_adaptations_total",
			Help: "Quality level changes by direction",
		}, []string{"direction"}),
		droppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "oxyvr_dropped_frames_total",
			Help: "Frames the compositor reported as dropped",
		}),
		telemetryUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "oxyvr_telemetry_unavailable_total",
			Help: "Frames without compositor timing",
		}),
		submitErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "oxyvr_submit_errors_total",
			Help: "Eye submissions rejected by the compositor",
		}),
		fenceWaitAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "oxyvr_fence_wait_attempts",
			Help:    "Polls needed per frame before the other resolve buffer's fence signaled",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// Record updates the collectors from one frame's stats.
//
// Parameters:
//   - stats: the controller stats of the frame just completed
func (m *Metrics) Record(stats quality.FrameStats) {
	m.level.Set(float64(stats.Level))
	m.utilization.Set(stats.Utilization)
	m.supersampling.Set(stats.ActualSupersampling)
	m.viewportPixels.Set(float64(stats.Viewport.Pixels()))
	if stats.InterleavedReprojection {
		m.reprojecting.Set(1)
	} else {
		m.reprojecting.Set(0)
	}

	addDelta(m.adaptations.WithLabelValues("up"), stats.AdaptationsUp, m.last.AdaptationsUp)
	addDelta(m.adaptations.WithLabelValues("down"), stats.AdaptationsDown, m.last.AdaptationsDown)
	addDelta(m.droppedFrames, stats.DroppedFrames, m.last.DroppedFrames)
	addDelta(m.telemetryUnavailable, stats.TelemetryUnavailable, m.last.TelemetryUnavailable)
	addDelta(m.submitErrors, stats.SubmitErrors, m.last.SubmitErrors)
	if stats.FenceWaits > m.last.FenceWaits {
		m.fenceWaitAttempts.Observe(float64(stats.FenceWaitAttempts))
	}
	m.last = stats
}

// addDelta advances c by the growth of a cumulative total. A total that went backwards belongs
// to a new controller and is counted from zero.
func addDelta(c prometheus.Counter, now, before int) {
	if now < before {
		before = 0
	}
	if d := now - before; d > 0 {
		c.Add(float64(d))
	}
}

// NewServer returns an HTTP server exposing the registry on /metrics.
//
// Parameters:
//   - addr: the listen address
//   - gatherer: the registry to expose
//
// Returns:
//   - *http.Server: the unstarted server
func NewServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
