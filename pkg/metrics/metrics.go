// Package metrics exposes the service's Prometheus instruments on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "voxcad"

// Collector holds the service's metrics.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	commandsTotal *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	buildsTotal   *prometheus.CounterVec
	buildsWaiting prometheus.Gauge

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	transcribeDuration *prometheus.HistogramVec
	transcribeErrors   *prometheus.CounterVec
}

// NewCollector registers all instruments, plus the Go runtime and process
// collectors, on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		commandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_parsed_total",
			Help:      "Parsed commands by recognized shape kind",
		}, []string{"kind"}),
		buildDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "build_duration_seconds",
			Help:      "Time to build, mesh and encode a model",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"kind"}),
		buildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "builds_total",
			Help:      "Model builds by kind and outcome",
		}, []string{"kind", "status"}),
		buildsWaiting: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "builds_waiting",
			Help:      "Requests waiting for the build pipeline",
		}),

		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_hits_total",
			Help:      "Model cache hits",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_misses_total",
			Help:      "Model cache misses",
		}),

		transcribeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "transcribe_duration_seconds",
			Help:      "Speech transcription latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"backend"}),
		transcribeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transcribe_errors_total",
			Help:      "Failed transcriptions by backend",
		}, []string{"backend"}),
	}
}

// Registry returns the registry the instruments live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand counts a parse outcome. kind is "unknown" for unrecognized
// commands.
func (c *Collector) RecordCommand(kind string) {
	c.commandsTotal.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordBuild(kind string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.buildsTotal.WithLabelValues(kind, status).Inc()
	if err == nil {
		c.buildDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// BuildWaiting adjusts the number of requests queued for the pipeline.
func (c *Collector) BuildWaiting(delta float64) {
	c.buildsWaiting.Add(delta)
}

func (c *Collector) RecordCacheHit()  { c.cacheHits.Inc() }
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

func (c *Collector) RecordTranscription(backend string, duration time.Duration, err error) {
	if err != nil {
		c.transcribeErrors.WithLabelValues(backend).Inc()
		return
	}
	c.transcribeDuration.WithLabelValues(backend).Observe(duration.Seconds())
}
