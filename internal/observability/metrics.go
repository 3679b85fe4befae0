package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Frames composed, by render mode.
	FramesRenderedTotal *prometheus.CounterVec

	// Time to compose one frame.
	RenderDuration prometheus.Histogram

	// Bundle rebuilds by result (ok, error).
	BundleRebuildsTotal *prometheus.CounterVec

	// Time to rebuild and publish one bundle.
	BundleRebuildDuration prometheus.Histogram

	// OpenWeather calls by outcome. Watch for: error vs success ratio.
	WeatherFetchesTotal *prometheus.CounterVec

	// OpenWeather latency. Watch for: p95 > 2s (upstream degradation).
	WeatherFetchDuration *prometheus.HistogramVec

	// Snapshot cache hits by backend.
	CacheHitsTotal *prometheus.CounterVec

	// Snapshots discarded as malformed.
	SnapshotsRejectedTotal prometheus.Counter

	// Completed lightning strobes.
	LightningFlashesTotal prometheus.Counter

	// Effect layers in the live bundle.
	ActiveEffects prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	FramesRenderedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesRenderedTotal",
			Help: "Total number of composed frames",
		},
		[]string{"mode"},
	)
	RenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "renderDurationSeconds",
			Help:    "Frame composition latency in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)
	BundleRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundleRebuildsTotal",
			Help: "Total number of render state rebuilds",
		},
		[]string{"result"},
	)
	BundleRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bundleRebuildDurationSeconds",
			Help:    "Render state rebuild latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
	)
	WeatherFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherFetchesTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherFetchDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of snapshot cache hits",
		},
		[]string{"cacheType"},
	)
	SnapshotsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotsRejectedTotal",
			Help: "Total number of malformed weather snapshots discarded",
		},
	)
	LightningFlashesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lightningFlashesTotal",
			Help: "Total number of completed lightning strobes",
		},
	)
	ActiveEffects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "activeEffects",
			Help: "Number of effect layers in the live render state",
		},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		FramesRenderedTotal, RenderDuration,
		BundleRebuildsTotal, BundleRebuildDuration,
		WeatherFetchesTotal, WeatherFetchDuration, CacheHitsTotal,
		SnapshotsRejectedTotal, LightningFlashesTotal, ActiveEffects,
		HTTPRequestsTotal, HTTPRequestDuration,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
