package observer

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/finding"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
	"github.com/pagelens/pagelens/pkg/workerpool"
)

// End reasons reported by Report and the captures metric.
const (
	EndSourceClosed = "source_closed"
	EndStopped      = "stopped"
	EndTimeout      = "timeout"
	EndCanceled     = "canceled"
)

type fetchResult struct {
	url  string
	body []byte
	err  error
	took time.Duration
}

// Run captures the page until the source closes and queued fetches are
// done, Stop is called, the capture timeout fires or ctx is done, then
// finalizes the snapshot and flushes everything once. Boundary failures
// are logged, never returned. Run may be called once.
func (o *Observer) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrAlreadyRunning
	}
	o.state = StateCapturing
	o.report.State = StateCapturing
	o.report.StartedAt = o.now()
	o.mu.Unlock()

	ctx, span := o.tracer.Start(ctx, "observer.capture",
		trace.WithAttributes(attribute.String("page.url", o.pageURL)))
	defer span.End()

	id, err := o.snapshots.Start(o.domain, o.pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot start")
		o.update(func(r *Report) {
			o.state = StateIdle
			r.State = StateIdle
			r.StartedAt = time.Time{}
		})
		return err
	}
	o.update(func(r *Report) { r.SnapshotID = id })
	o.logger.Info("capture started", slog.String("page", o.pageURL), slog.String("snapshot", id))

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool := workerpool.New(o.concurrency, workerpool.WithLogger(o.logger))
	results := make(chan fetchResult, defaults.ChannelSmall)

	flush := time.NewTicker(o.flushInterval)
	defer flush.Stop()
	timeout := time.NewTimer(o.captureTimeout)
	defer timeout.Stop()

	var events <-chan Observation
	if o.src != nil {
		events = o.src.Events()
	}

	var backlog []string
	inflight := 0
	reason := ""
	for reason == "" {
		if events == nil && inflight == 0 && len(backlog) == 0 {
			reason = EndSourceClosed
			break
		}
		select {
		case ob, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			backlog = o.handle(ob, backlog)
		case res := <-results:
			inflight--
			o.analyzeFetch(res)
		case <-flush.C:
			o.flush(ctx)
		case <-timeout.C:
			reason = EndTimeout
		case <-o.stopCh:
			reason = EndStopped
		case <-ctx.Done():
			reason = EndCanceled
		}
		backlog, inflight = o.dispatch(fetchCtx, pool, results, backlog, inflight)
	}

	// Pending fetches are dropped on stop.
	cancel()
	pool.Close()
	o.finalize(ctx, reason)
	span.SetAttributes(attribute.String("capture.end_reason", reason))
	return nil
}

func (o *Observer) dispatch(ctx context.Context, pool *workerpool.Pool, results chan<- fetchResult, backlog []string, inflight int) ([]string, int) {
	for len(backlog) > 0 {
		u := backlog[0]
		if !pool.TrySubmit(func() { o.fetch(ctx, u, results) }) {
			break
		}
		backlog = backlog[1:]
		inflight++
	}
	return backlog, inflight
}

func (o *Observer) fetch(ctx context.Context, u string, results chan<- fetchResult) {
	ctx, span := o.tracer.Start(ctx, "observer.fetch",
		trace.WithAttributes(attribute.String("url.full", u)))
	defer span.End()

	start := time.Now()
	body, err := o.fetcher.Fetch(ctx, u)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("body.size", len(body)))
	}

	select {
	case results <- fetchResult{url: u, body: body, err: err, took: time.Since(start)}:
	case <-ctx.Done():
	}
}

func (o *Observer) handle(ob Observation, backlog []string) []string {
	o.metrics.Observation(string(ob.Kind))
	o.update(func(r *Report) { r.Observations++ })

	switch ob.Kind {
	case KindReady:
		if ob.Environment != nil {
			o.snapshots.SetEnvironment(*ob.Environment)
		}
		if ob.DOMContentLoaded > 0 || ob.LoadTime > 0 {
			o.snapshots.SetPageTiming(ob.DOMContentLoaded, ob.LoadTime)
		}
		o.snapshots.SetCSP(ob.CSP)
	case KindDocument:
		refs, _ := o.snapshots.CaptureDocument(ob.HTML)
		o.snapshots.SetCSP(ob.CSP)
		o.analyzeText(o.pageURL, ob.HTML, secrets.ContentHTML)
		for _, ref := range refs {
			backlog = o.observeURL(Observation{URL: ref.URL, ResourceType: string(ref.Type)}, backlog, false)
		}
	case KindResource:
		return o.observeURL(ob, backlog, true)
	case KindTiming:
		return o.observeURL(ob, backlog, false)
	default:
		o.logger.Debug("ignoring observation", slog.String("kind", string(ob.Kind)))
	}
	return backlog
}

// observeURL routes one URL to the categorizer, the snapshot and the fetch
// backlog. Only requests count toward a host's request count; timing and
// document references register a host the first time it is seen.
func (o *Observer) observeURL(ob Observation, backlog []string, request bool) []string {
	u, ok := NormalizeURL(ob.URL, o.pageURL)
	if !ok {
		o.logger.Debug("skipping url", slog.String("url", ob.URL))
		return backlog
	}

	if request || !o.hostKnown(u) {
		o.categorize(u, ob.ResourceType)
	}

	js := IsJavaScript(u)
	typ := snapshot.TypeForResource(ob.ResourceType)
	if typ == snapshot.TypeUnknown {
		typ = ""
		if js {
			typ = snapshot.TypeScript
		}
	}
	o.snapshots.AddAsset(u, typ, ob.Metadata)
	if ob.Size > 0 || ob.LoadTime > 0 {
		o.snapshots.RecordTiming(u, ob.Size, ob.LoadTime)
	}

	if !js && typ != snapshot.TypeScript {
		return backlog
	}
	if o.fetched[u] {
		return backlog
	}
	o.fetched[u] = true
	o.buf.jsFiles = append(o.buf.jsFiles, u)
	o.update(func(r *Report) { r.JSFiles++ })
	if o.fetcher != nil {
		backlog = append(backlog, u)
	}
	return backlog
}

func (o *Observer) hostKnown(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	_, ok := o.categories.Lookup(parsed.Hostname())
	return ok
}

func (o *Observer) categorize(u, resourceType string) {
	rec, err := o.categories.Categorize(u, resourceType)
	if err != nil {
		o.logger.Debug("categorize failed", slog.String("url", u), slog.Any("error", err))
		return
	}
	o.buf.domainsDirty = true
	if rec.RequestCount == 1 {
		o.metrics.Domain(rec.IsLocal)
		if o.categories.ShouldAlert(rec) {
			o.logger.Warn("suspicious domain",
				slog.String("host", rec.Hostname),
				slog.Int("risk", rec.RiskScore),
				slog.Bool("secure", rec.Secure))
		}
	}
}

func (o *Observer) analyzeFetch(res fetchResult) {
	if res.err != nil {
		o.metrics.Fetch("error", res.took)
		o.update(func(r *Report) { r.FetchErrors++ })
		o.logger.Warn("script fetch failed", slog.String("url", res.url), slog.Any("error", res.err))
		return
	}
	o.metrics.Fetch("ok", res.took)
	o.analyzeText(res.url, string(res.body), secrets.ContentJavaScript)
}

func (o *Observer) analyzeText(source, text string, ct secrets.ContentType) {
	if text == "" {
		return
	}
	ts := o.now()

	if r := o.extractor.Extract(text, source); !r.Empty() {
		o.buf.endpoints = append(o.buf.endpoints, endpointBatch{url: source, result: r, ts: ts})
		for _, c := range endpoints.Categories() {
			o.metrics.Endpoints(string(c), len(r.Values(c)))
		}
	}

	sr := o.scanner.Scan(text, source, ct)
	if len(sr.Findings) == 0 {
		return
	}
	o.buf.secrets = append(o.buf.secrets, secretBatch{url: source, findings: sr.Findings, ts: ts})
	for _, f := range sr.Findings {
		o.metrics.Secret(f.Severity.String())
		if f.Severity == finding.Critical {
			o.logger.Warn("critical secret detected",
				slog.String("type", f.Type),
				slog.String("source", source),
				slog.Int("line", f.Line))
		}
	}
}

func (o *Observer) flush(ctx context.Context) {
	if o.buf.empty() {
		return
	}
	buf := o.buf
	o.buf = buffer{}
	if o.sink == nil || o.sinkOff {
		return
	}

	_, span := o.tracer.Start(ctx, "observer.flush")
	defer span.End()
	o.metrics.Flush()

	if len(buf.jsFiles) > 0 {
		if err := o.sink.SaveJSFiles(buf.jsFiles); err != nil {
			o.disableSink(span, "save_js_files", err)
			return
		}
	}
	for _, b := range buf.endpoints {
		if err := o.sink.SaveEndpoints(b.url, b.result, b.ts); err != nil {
			o.disableSink(span, "save_endpoints", err)
			return
		}
	}
	for _, b := range buf.secrets {
		if err := o.sink.SaveSecrets(b.url, b.findings, b.ts); err != nil {
			o.disableSink(span, "save_secrets", err)
			return
		}
	}
	if buf.domainsDirty {
		if err := o.sink.SaveSuspiciousDomains(o.categories.Stats(), o.categories.Suspicious()); err != nil {
			o.disableSink(span, "save_suspicious_domains", err)
		}
	}
}

func (o *Observer) disableSink(span trace.Span, op string, err error) {
	o.sinkOff = true
	o.metrics.SinkError(op)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	o.update(func(r *Report) { r.SinkDisabled = true })
	o.logger.Error("storage sink failed, disabling further sends",
		slog.String("op", op), slog.Any("error", err))
}

func (o *Observer) finalize(ctx context.Context, reason string) {
	ctx, span := o.tracer.Start(ctx, "observer.finalize")
	defer span.End()

	id, ok := o.snapshots.Stop()
	o.flush(ctx)
	if ok && o.sink != nil && !o.sinkOff {
		if snap, found := o.snapshots.Get(id); found {
			if err := o.sink.SaveSnapshot(snap); err != nil {
				o.disableSink(span, "save_snapshot", err)
			}
		}
	}

	o.metrics.Capture(reason)
	o.update(func(r *Report) {
		r.State = StateFinalized
		r.EndReason = reason
		r.FinishedAt = o.now()
	})
	o.mu.Lock()
	o.state = StateFinalized
	o.mu.Unlock()

	o.logger.Info("capture finalized",
		slog.String("page", o.pageURL),
		slog.String("snapshot", id),
		slog.String("reason", reason))
}
