// Package metrics exposes observer activity as Prometheus metrics.
//
// A nil *Recorder is valid and records nothing, so components take one as
// an optional dependency.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagelens/pagelens/pkg/duration"
)

// Namespace prefixes every metric name.
const Namespace = "pagelens"

// Recorder owns a private registry and the observer collectors.
type Recorder struct {
	registry *prometheus.Registry

	observations *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	fetchSeconds prometheus.Histogram
	endpoints    *prometheus.CounterVec
	secrets      *prometheus.CounterVec
	domains      *prometheus.CounterVec
	sinkErrors   *prometheus.CounterVec
	flushes      prometheus.Counter
	captures     *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered.
func New() (*Recorder, error) {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.observations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "observations_total",
		Help:      "Page observations consumed by kind",
	}, []string{"kind"})
	r.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "script_fetches_total",
		Help:      "Script body fetches by outcome",
	}, []string{"outcome"})
	r.fetchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "script_fetch_duration_seconds",
		Help:      "Script body fetch latency",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	r.endpoints = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "endpoints_total",
		Help:      "Extracted endpoints by category",
	}, []string{"category"})
	r.secrets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "secrets_total",
		Help:      "Secret findings by severity",
	}, []string{"severity"})
	r.domains = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "domains_total",
		Help:      "First sightings of hosts by locality",
	}, []string{"locality"})
	r.sinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "sink_errors_total",
		Help:      "Storage sink failures by operation",
	}, []string{"op"})
	r.flushes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "flushes_total",
		Help:      "Buffered result flushes",
	})
	r.captures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "captures_total",
		Help:      "Finished page captures by end reason",
	}, []string{"reason"})

	for _, c := range []prometheus.Collector{
		r.observations, r.fetches, r.fetchSeconds, r.endpoints, r.secrets,
		r.domains, r.sinkErrors, r.flushes, r.captures,
	} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observation counts one consumed observation.
func (r *Recorder) Observation(kind string) {
	if r == nil {
		return
	}
	r.observations.WithLabelValues(kind).Inc()
}

// Fetch records a script fetch outcome ("ok" or "error") and its latency.
func (r *Recorder) Fetch(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(outcome).Inc()
	r.fetchSeconds.Observe(took.Seconds())
}

// Endpoints adds n extracted endpoints for category.
func (r *Recorder) Endpoints(category string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.endpoints.WithLabelValues(category).Add(float64(n))
}

// Secret counts one secret finding.
func (r *Recorder) Secret(severity string) {
	if r == nil {
		return
	}
	r.secrets.WithLabelValues(severity).Inc()
}

// Domain counts the first sighting of a host.
func (r *Recorder) Domain(local bool) {
	if r == nil {
		return
	}
	label := "third_party"
	if local {
		label = "local"
	}
	r.domains.WithLabelValues(label).Inc()
}

// SinkError counts a failed storage operation.
func (r *Recorder) SinkError(op string) {
	if r == nil {
		return
	}
	r.sinkErrors.WithLabelValues(op).Inc()
}

// Flush counts one flush of buffered results.
func (r *Recorder) Flush() {
	if r == nil {
		return
	}
	r.flushes.Inc()
}

// Capture counts one finished capture.
func (r *Recorder) Capture(reason string) {
	if r == nil {
		return
	}
	r.captures.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: duration.ReadHeaderTimeout}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", slog.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
