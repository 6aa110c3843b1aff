package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/pkg/observer"
)

func mono(t time.Time) *cdp.MonotonicTime {
	m := cdp.MonotonicTime(t)
	return &m
}

func TestResourceType(t *testing.T) {
	cases := map[string]string{
		"Script":         "script",
		"Stylesheet":     "stylesheet",
		"XHR":            "xhr",
		"xmlhttprequest": "xhr",
		"img":            "img",
		"Ping":           "beacon",
		"Other":          "",
		"Preflight":      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, resourceType(in), in)
	}
}

func TestTrackerImage(t *testing.T) {
	tr := newTracker("https://example.com/", 0)
	start := time.Unix(1000, 0)

	ob, ok := tr.requestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "1",
		Request:   &network.Request{URL: "https://example.com/logo.png"},
		Timestamp: mono(start),
		Type:      network.ResourceTypeImage,
		Initiator: &network.Initiator{URL: "https://example.com/"},
	})
	require.True(t, ok)
	assert.Equal(t, observer.KindResource, ob.Kind)
	assert.Equal(t, "image", ob.ResourceType)
	assert.Equal(t, "https://example.com/", ob.Metadata["initiator"])

	f, ok := tr.loadingFinished(&network.EventLoadingFinished{
		RequestID:         "1",
		Timestamp:         mono(start.Add(250 * time.Millisecond)),
		EncodedDataLength: 4096,
	})
	require.True(t, ok)
	assert.Equal(t, observer.KindTiming, f.timing.Kind)
	assert.Equal(t, int64(4096), f.timing.Size)
	assert.InDelta(t, 250, f.timing.LoadTime, 0.001)
	assert.Empty(t, f.scriptURL)
	assert.Nil(t, f.resource)

	_, ok = tr.loadingFinished(&network.EventLoadingFinished{RequestID: "1"})
	assert.False(t, ok, "finished twice")
}

func TestTrackerHoldsScriptsUntilFinished(t *testing.T) {
	tr := newTracker("https://example.com/", 0)

	_, ok := tr.requestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "7",
		Request:   &network.Request{URL: "https://example.com/app.js"},
		Type:      network.ResourceTypeScript,
	})
	assert.False(t, ok)

	f, ok := tr.loadingFinished(&network.EventLoadingFinished{RequestID: "7", EncodedDataLength: 10})
	require.True(t, ok)
	assert.Equal(t, "https://example.com/app.js", f.scriptURL)
	require.NotNil(t, f.resource)
	assert.Equal(t, "script", f.resource.ResourceType)
	assert.Zero(t, f.timing.LoadTime)
}

func TestTrackerScriptByMimeType(t *testing.T) {
	tr := newTracker("https://example.com/", 0)

	_, ok := tr.requestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "2",
		Request:   &network.Request{URL: "https://example.com/api/jsonp?cb=x"},
		Type:      network.ResourceTypeXHR,
	})
	require.True(t, ok)
	tr.responseReceived(&network.EventResponseReceived{
		RequestID: "2",
		Type:      network.ResourceTypeXHR,
		Response:  &network.Response{URL: "https://example.com/api/jsonp?cb=x", MimeType: "application/javascript"},
	})

	f, ok := tr.loadingFinished(&network.EventLoadingFinished{RequestID: "2"})
	require.True(t, ok)
	assert.Equal(t, "https://example.com/api/jsonp?cb=x", f.scriptURL)
	assert.Nil(t, f.resource, "already emitted")
}

func TestTrackerFailedScriptStillReported(t *testing.T) {
	tr := newTracker("https://example.com/", 0)
	tr.requestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "3",
		Request:   &network.Request{URL: "https://cdn.example.net/lib.js"},
		Type:      network.ResourceTypeScript,
	})

	ob, ok := tr.loadingFailed(&network.EventLoadingFailed{RequestID: "3", ErrorText: "net::ERR_BLOCKED_BY_CLIENT"})
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.net/lib.js", ob.URL)

	_, ok = tr.loadingFailed(&network.EventLoadingFailed{RequestID: "3"})
	assert.False(t, ok)
}

func TestTrackerDocumentCSP(t *testing.T) {
	tr := newTracker("https://example.com/", 0)
	tr.responseReceived(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			URL:     "https://example.com/",
			Headers: network.Headers{"Content-Security-Policy": "default-src 'self'"},
		},
	})
	assert.Equal(t, "default-src 'self'", tr.documentCSP())
}

func TestTrackerBodies(t *testing.T) {
	tr := newTracker("https://example.com/", 4)
	tr.storeBody("https://example.com/a.js", []byte("abcdefgh"))

	b, ok := tr.body("https://example.com/a.js")
	require.True(t, ok)
	assert.Equal(t, "abcd", string(b))

	_, ok = tr.body("https://example.com/b.js")
	assert.False(t, ok)
}

func TestProbeObservations(t *testing.T) {
	p, err := decodeProbe(`{
		"html": "<html><head></head><body></body></html>",
		"dom_content_loaded": 320.5,
		"load": 910,
		"csp": "script-src 'self'",
		"resources": [
			{"url": "https://example.com/app.js", "type": "script", "size": 2048, "duration": 120.25},
			{"url": "", "type": "img", "size": 1, "duration": 1}
		],
		"environment": {"viewport": "1920x1080", "locale": "en-US", "user_agent": "UA", "local_storage_bytes": 12, "session_storage_bytes": 0, "cookie_bytes": 30}
	}`)
	require.NoError(t, err)

	obs := p.observations("")
	require.Len(t, obs, 3)
	assert.Equal(t, observer.KindDocument, obs[0].Kind)
	assert.Equal(t, "script-src 'self'", obs[0].CSP)

	assert.Equal(t, observer.KindTiming, obs[1].Kind)
	assert.Equal(t, int64(2048), obs[1].Size)
	assert.Equal(t, 120.25, obs[1].LoadTime)

	ready := obs[2]
	assert.Equal(t, observer.KindReady, ready.Kind)
	assert.Equal(t, 320.5, ready.DOMContentLoaded)
	assert.Equal(t, 910.0, ready.LoadTime)
	require.NotNil(t, ready.Environment)
	assert.Equal(t, "en-US", ready.Environment.Locale)
	assert.Equal(t, 30, ready.Environment.CookieBytes)

	obs = p.observations("default-src 'none'")
	assert.Equal(t, "default-src 'none'", obs[0].CSP)

	_, err = decodeProbe("not json")
	assert.Error(t, err)
}

type stubFetcher struct {
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	return []byte("fallback"), nil
}

func TestSessionFetch(t *testing.T) {
	s := New("https://example.com/", Options{})
	_, err := s.Fetch(context.Background(), "https://example.com/a.js")
	assert.True(t, errors.Is(err, ErrNotStarted))

	s.tracker.storeBody("https://example.com/a.js", []byte("cached"))
	b, err := s.Fetch(context.Background(), "https://example.com/a.js")
	require.NoError(t, err)
	assert.Equal(t, "cached", string(b))

	fb := &stubFetcher{}
	s = New("https://example.com/", Options{}, WithFallback(fb))
	b, err = s.Fetch(context.Background(), "https://example.com/b.js")
	require.NoError(t, err)
	assert.Equal(t, "fallback", string(b))
	assert.Equal(t, []string{"https://example.com/b.js"}, fb.calls)
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New("https://example.com/", Options{Settle: -1})
	assert.Equal(t, 1920, s.opts.Width)
	assert.Equal(t, 1080, s.opts.Height)
	assert.Zero(t, s.opts.Settle)
	assert.Positive(t, s.opts.NavigateTimeout)
	assert.Positive(t, s.opts.MaxBodyBytes)

	base := len(New("https://example.com/", Options{Headless: true}).allocatorOptions())
	withAll := len(New("https://example.com/", Options{Headless: true, UserAgent: "x", ExecPath: "/bin/chrome", Proxy: "http://p:8080"}).allocatorOptions())
	assert.Equal(t, base+3, withAll)
}
