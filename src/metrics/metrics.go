// Package metrics exposes Prometheus collectors for the capture loop and the
// translation backends. All methods are safe on a nil *Metrics so components
// can run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors and their private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	captureFailures prometheus.Counter
	emptyText       prometheus.Counter
	skippedFrames   prometheus.Counter
	reused          prometheus.Counter
	loopErrors      *prometheus.CounterVec
	running         prometheus.Gauge
	cycleDuration   prometheus.Histogram
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screentrans_cycles_total",
			Help: "Capture-translate cycles that reached the capture step",
		}),
		captureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screentrans_capture_failures_total",
			Help: "Screen captures that returned an error",
		}),
		emptyText: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screentrans_ocr_empty_total",
			Help: "Cycles where OCR recognized no text",
		}),
		skippedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screentrans_ocr_skipped_frames_total",
			Help: "Frames whose OCR was skipped because they matched the previous frame",
		}),
		reused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screentrans_translation_reused_total",
			Help: "Cycles that reused the cached translation instead of calling the backend",
		}),
		loopErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screentrans_loop_errors_total",
			Help: "Loop failures by stage",
		}, []string{"stage"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screentrans_loop_running",
			Help: "1 while the capture loop is running",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screentrans_cycle_duration_seconds",
			Help:    "Time spent in capture, recognition and translation per cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screentrans_translate_requests_total",
			Help: "Translation dispatches by engine and outcome",
		}, []string{"engine", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screentrans_translate_duration_seconds",
			Help:    "Translation backend latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"engine"}),
	}
	m.registry.MustRegister(
		m.cycles, m.captureFailures, m.emptyText, m.skippedFrames, m.reused,
		m.loopErrors, m.running, m.cycleDuration, m.requests, m.requestDuration,
	)
	return m
}

func (m *Metrics) Cycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) CaptureFailed() {
	if m != nil {
		m.captureFailures.Inc()
	}
}

func (m *Metrics) EmptyText() {
	if m != nil {
		m.emptyText.Inc()
	}
}

func (m *Metrics) FrameSkipped() {
	if m != nil {
		m.skippedFrames.Inc()
	}
}

func (m *Metrics) TranslationReused() {
	if m != nil {
		m.reused.Inc()
	}
}

// LoopError counts a swallowed failure; stage is "translate", "sink" or "recognizer".
func (m *Metrics) LoopError(stage string) {
	if m != nil {
		m.loopErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}

// TranslateRequest records one dispatch. outcome is "ok", "skipped" or an
// error kind.
func (m *Metrics) TranslateRequest(engine, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(engine, outcome).Inc()
	if outcome != "skipped" {
		m.requestDuration.WithLabelValues(engine).Observe(d.Seconds())
	}
}

// Registry exposes the underlying registry (tests, custom handlers).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
