package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/javascript")
		w.Write([]byte(`fetch("/api/v1/users")`))
	}))
	defer srv.Close()

	f := NewFetcher(WithClient(srv.Client()), WithRate(0))
	body, err := f.Fetch(context.Background(), srv.URL+"/app.js")
	require.NoError(t, err)
	assert.Equal(t, `fetch("/api/v1/users")`, string(body))
	assert.True(t, strings.HasPrefix(gotUA, "pagelens/"))
	assert.Contains(t, gotAccept, "javascript")
}

func TestFetcher_Status(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewFetcher(WithClient(srv.Client()), WithRate(0))
	_, err := f.Fetch(context.Background(), srv.URL+"/missing.js")
	assert.True(t, errors.Is(err, ErrStatus))
}

func TestFetcher_TooLarge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	f := NewFetcher(WithClient(srv.Client()), WithRate(0), WithMaxBytes(1024))
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestFetcher_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	f := NewFetcher(WithClient(srv.Client()), WithRate(0))
	_, err := f.Fetch(ctx, srv.URL)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := New(Config{})
	assert.Equal(t, DefaultConfig().Timeout, c.Timeout)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 8, tr.MaxConnsPerHost)

	c = New(Config{Proxy: "http://proxy.internal:3128"})
	tr = c.Transport.(*http.Transport)
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	u, err := tr.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy.internal:3128", u.Host)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	err := classify(&url.Error{Op: "Get", URL: "https://nx.invalid", Err: &net.DNSError{Err: "no such host", Name: "nx.invalid"}})
	assert.True(t, errors.Is(err, ErrDNS))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classify(plain))
}
