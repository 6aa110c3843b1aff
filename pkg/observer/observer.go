// Package observer coordinates the analysis engines for one page load.
//
// An Observer consumes a Source of observations, hands every resource URL
// to the domain categorizer and the snapshot engine, fetches JavaScript
// bodies for the endpoint extractor and the secret scanner, and flushes
// buffered results to a Sink on a fixed interval. Engine state is only
// mutated from the goroutine running Run.
package observer

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/duration"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/metrics"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
	"github.com/pagelens/pagelens/pkg/telemetry"
)

// ErrAlreadyRunning is returned by Run on an observer that already ran.
var ErrAlreadyRunning = errors.New("observer: already running")

// State is the lifecycle position of an observer.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateFinalized State = "finalized"
)

// Fetcher downloads a resource body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Sink is the write half of the storage boundary.
type Sink interface {
	SaveJSFiles(urls []string) error
	SaveEndpoints(url string, result *endpoints.Result, ts time.Time) error
	SaveSecrets(url string, findings []secrets.Finding, ts time.Time) error
	SaveSnapshot(snap *snapshot.Snapshot) error
	SaveSuspiciousDomains(stats domains.Stats, records []domains.Record) error
}

// Observer drives one page capture.
type Observer struct {
	pageURL string
	domain  string
	src     Source
	fetcher Fetcher
	sink    Sink

	logger         *slog.Logger
	metrics        *metrics.Recorder
	tracer         trace.Tracer
	now            func() time.Time
	flushInterval  time.Duration
	captureTimeout time.Duration
	concurrency    int

	extractor  *endpoints.Extractor
	scanner    *secrets.Scanner
	categories *domains.Categorizer
	snapshots  *snapshot.Engine

	extractorOpts []endpoints.Option
	scannerOpts   []secrets.Option
	domainOpts    []domains.Option

	stopCh   chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	state  State
	report Report

	// Owned by the Run goroutine.
	fetched map[string]bool
	buf     buffer
	sinkOff bool
}

type endpointBatch struct {
	url    string
	result *endpoints.Result
	ts     time.Time
}

type secretBatch struct {
	url      string
	findings []secrets.Finding
	ts       time.Time
}

type buffer struct {
	jsFiles      []string
	endpoints    []endpointBatch
	secrets      []secretBatch
	domainsDirty bool
}

func (b *buffer) empty() bool {
	return len(b.jsFiles) == 0 && len(b.endpoints) == 0 && len(b.secrets) == 0 && !b.domainsDirty
}

// Option configures an Observer.
type Option func(*Observer)

// WithLogger sets a custom structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Observer) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records activity on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Observer) { o.metrics = r }
}

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Observer) {
		if tp != nil {
			o.tracer = tp.Tracer(telemetry.TracerName)
		}
	}
}

// WithClock overrides the time source used for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Observer) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFlushInterval sets how often buffered results are sent to the sink.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Observer) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

// WithCaptureTimeout bounds the capture window.
func WithCaptureTimeout(d time.Duration) Option {
	return func(o *Observer) {
		if d > 0 {
			o.captureTimeout = d
		}
	}
}

// WithConcurrency sets the number of concurrent script fetches.
func WithConcurrency(n int) Option {
	return func(o *Observer) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithDomain overrides the snapshot domain, which defaults to the page host.
func WithDomain(d string) Option {
	return func(o *Observer) { o.domain = d }
}

// WithExtractorOptions passes options to the endpoint extractor.
func WithExtractorOptions(opts ...endpoints.Option) Option {
	return func(o *Observer) { o.extractorOpts = append(o.extractorOpts, opts...) }
}

// WithScannerOptions passes options to the secret scanner.
func WithScannerOptions(opts ...secrets.Option) Option {
	return func(o *Observer) { o.scannerOpts = append(o.scannerOpts, opts...) }
}

// WithDomainOptions passes options to the domain categorizer.
func WithDomainOptions(opts ...domains.Option) Option {
	return func(o *Observer) { o.domainOpts = append(o.domainOpts, opts...) }
}

// New creates an idle observer for pageURL with fresh engines. fetcher and
// sink may be nil: script bodies are then not analyzed and results are
// only kept in memory.
func New(pageURL string, src Source, fetcher Fetcher, sink Sink, opts ...Option) *Observer {
	o := &Observer{
		pageURL:        pageURL,
		src:            src,
		fetcher:        fetcher,
		sink:           sink,
		logger:         slog.Default(),
		tracer:         otel.GetTracerProvider().Tracer(telemetry.TracerName),
		now:            time.Now,
		flushInterval:  duration.FlushInterval,
		captureTimeout: duration.CaptureTimeout,
		concurrency:    defaults.ConcurrencyLow,
		stopCh:         make(chan struct{}),
		state:          StateIdle,
		fetched:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.domain == "" {
		if u, err := url.Parse(pageURL); err == nil {
			o.domain = strings.ToLower(u.Hostname())
		}
	}

	o.extractor = endpoints.NewExtractor(o.extractorOpts...)
	o.scanner = secrets.NewScanner(o.scannerOpts...)
	o.categories = domains.New(pageURL, o.domainOpts...)
	o.snapshots = snapshot.NewEngine(snapshot.WithLogger(o.logger))
	o.report = Report{PageURL: pageURL, State: StateIdle}
	return o
}

// State returns the lifecycle state.
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Stop ends the capture. It is safe to call more than once and from any
// goroutine.
func (o *Observer) Stop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
}

// Extractor returns the page's endpoint extractor.
func (o *Observer) Extractor() *endpoints.Extractor { return o.extractor }

// Scanner returns the page's secret scanner.
func (o *Observer) Scanner() *secrets.Scanner { return o.scanner }

// Domains returns the page's domain categorizer.
func (o *Observer) Domains() *domains.Categorizer { return o.categories }

// Snapshots returns the page's snapshot engine.
func (o *Observer) Snapshots() *snapshot.Engine { return o.snapshots }
