package browser

import (
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/pagelens/pagelens/pkg/observer"
)

type request struct {
	url     string
	typ     network.ResourceType
	started time.Time
	script  bool

	// pending holds the resource observation of a script until its body
	// has been read, so the fetcher finds it cached.
	pending *observer.Observation
}

// tracker turns CDP network events into observations. It keeps the
// in-flight requests and the bodies of finished scripts.
type tracker struct {
	mu       sync.Mutex
	pageURL  string
	inflight map[network.RequestID]*request
	bodies   map[string][]byte
	csp      string
	maxBody  int
}

func newTracker(pageURL string, maxBody int) *tracker {
	return &tracker{
		pageURL:  pageURL,
		inflight: make(map[network.RequestID]*request),
		bodies:   make(map[string][]byte),
		maxBody:  maxBody,
	}
}

// resourceType maps CDP and resource-timing initiator names onto the
// names the snapshot classifier knows.
func resourceType(t string) string {
	switch strings.ToLower(t) {
	case "xmlhttprequest":
		return "xhr"
	case "beacon", "ping":
		return "beacon"
	case "other", "preflight", "cspviolationreport", "signedexchange", "fedcm", "prefetch":
		return ""
	}
	return strings.ToLower(t)
}

func (t *tracker) requestWillBeSent(e *network.EventRequestWillBeSent) (observer.Observation, bool) {
	if e.Request == nil || e.Request.URL == "" {
		return observer.Observation{}, false
	}
	r := &request{
		url:    e.Request.URL,
		typ:    e.Type,
		script: e.Type == network.ResourceTypeScript,
	}
	if e.Timestamp != nil {
		r.started = e.Timestamp.Time()
	}
	meta := map[string]string{}
	if e.Initiator != nil && e.Initiator.URL != "" {
		meta["initiator"] = e.Initiator.URL
	}
	ob := observer.Observation{
		Kind:         observer.KindResource,
		URL:          e.Request.URL,
		ResourceType: resourceType(string(e.Type)),
		Metadata:     meta,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[e.RequestID] = r
	if r.script {
		r.pending = &ob
		return observer.Observation{}, false
	}
	return ob, true
}

func (t *tracker) responseReceived(e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.inflight[e.RequestID]; ok {
		if strings.Contains(strings.ToLower(e.Response.MimeType), "javascript") {
			r.script = true
		}
	}
	if e.Type == network.ResourceTypeDocument && e.Response.URL == t.pageURL && t.csp == "" {
		t.csp = header(e.Response.Headers, "content-security-policy")
	}
}

// finished is what a completed request yields.
type finished struct {
	timing observer.Observation

	// resource is the held-back resource observation of a script.
	resource *observer.Observation

	// scriptURL is set when the body should be kept.
	scriptURL string
}

func (t *tracker) loadingFinished(e *network.EventLoadingFinished) (finished, bool) {
	t.mu.Lock()
	r, ok := t.inflight[e.RequestID]
	delete(t.inflight, e.RequestID)
	t.mu.Unlock()
	if !ok {
		return finished{}, false
	}

	var ms float64
	if e.Timestamp != nil && !r.started.IsZero() {
		ms = float64(e.Timestamp.Time().Sub(r.started)) / float64(time.Millisecond)
	}
	ob := observer.Observation{
		Kind:         observer.KindTiming,
		URL:          r.url,
		ResourceType: resourceType(string(r.typ)),
		Size:         int64(e.EncodedDataLength),
		LoadTime:     ms,
	}
	f := finished{timing: ob, resource: r.pending}
	if r.script {
		f.scriptURL = r.url
	}
	return f, true
}

// loadingFailed drops the request and returns a held-back resource
// observation, if any; failed loads are still part of the page.
func (t *tracker) loadingFailed(e *network.EventLoadingFailed) (observer.Observation, bool) {
	t.mu.Lock()
	r, ok := t.inflight[e.RequestID]
	delete(t.inflight, e.RequestID)
	t.mu.Unlock()
	if !ok || r.pending == nil {
		return observer.Observation{}, false
	}
	return *r.pending, true
}

func (t *tracker) storeBody(url string, body []byte) {
	if t.maxBody > 0 && len(body) > t.maxBody {
		body = body[:t.maxBody]
	}
	t.mu.Lock()
	t.bodies[url] = body
	t.mu.Unlock()
}

func (t *tracker) body(url string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.bodies[url]
	return b, ok
}

func (t *tracker) documentCSP() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.csp
}

func header(h network.Headers, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
