package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/pkg/config"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/export"
	"github.com/pagelens/pagelens/pkg/finding"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/storage"
)

// Assembled at runtime so the source never holds a full key.
var fakeKey = "AKIA" + "ZXCVBNMASDFGHJKL"

const appJS = `
fetch("/api/users");
const ws = new WebSocket("wss://live.example.com/socket");
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://example.com/app.js"))
	assert.True(t, isURL("http://example.com"))
	assert.False(t, isURL("dist/app.js"))
	assert.False(t, isURL("file:///tmp/app.js"))
}

func TestScanTargetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(path, []byte(appJS+`const key = "`+fakeKey+`";`), 0o600))

	out := scanTarget(context.Background(), path, "https://example.com/",
		newFetcher(config.Default()), endpoints.NewExtractor(), secrets.NewScanner())
	require.Empty(t, out.Error)
	assert.Contains(t, out.Result.Endpoints, "/api/users")
	assert.Contains(t, out.Resolved, "https://example.com/api/users")
	require.NotEmpty(t, out.Findings)
	assert.Equal(t, fakeKey, out.Findings[0].Raw)
	assert.Equal(t, secrets.ContentJavaScript, out.Findings[0].ContentType)
}

func TestScanTargetURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = io.WriteString(w, appJS)
	}))
	defer srv.Close()

	target := srv.URL + "/static/app.js"
	out := scanTarget(context.Background(), target, "",
		newFetcher(config.Default()), endpoints.NewExtractor(), secrets.NewScanner())
	require.Empty(t, out.Error)
	assert.Contains(t, out.Result.WebSockets, "wss://live.example.com/socket")
	// Relative endpoints resolve against the fetched URL.
	assert.Contains(t, out.Resolved, srv.URL+"/api/users")
}

func TestScanTargetMissingFile(t *testing.T) {
	out := scanTarget(context.Background(), filepath.Join(t.TempDir(), "nope.js"), "",
		newFetcher(config.Default()), endpoints.NewExtractor(), secrets.NewScanner())
	assert.NotEmpty(t, out.Error)
	assert.Nil(t, out.Result)
}

func TestSaveOutcomes(t *testing.T) {
	store, err := storage.New("")
	require.NoError(t, err)

	outcomes := []scanOutcome{
		{
			Source:   "https://example.com/app.js",
			Result:   &endpoints.Result{Endpoints: []string{"/api/users"}},
			Findings: []secrets.Finding{{Type: "AWS Access Key ID", Severity: finding.Critical, Raw: fakeKey}},
		},
		{Source: "local/app.js", Result: &endpoints.Result{}},
		{Source: "https://example.com/broken.js", Error: "boom"},
	}
	saveOutcomes(store, outcomes, quietLogger())

	assert.Equal(t, []string{"https://example.com/app.js"}, store.GetJSFiles())
	assert.Len(t, store.GetEndpoints(), 1)
	secretsSaved := store.GetSecrets()
	require.Len(t, secretsSaved, 1)
	assert.Equal(t, fakeKey, secretsSaved[0].Findings[0].Raw)
}

func TestGateTripped(t *testing.T) {
	outcomes := []scanOutcome{{Findings: []secrets.Finding{{Severity: finding.Medium}}}}
	assert.True(t, gateTripped(outcomes, finding.Low))
	assert.True(t, gateTripped(outcomes, finding.Medium))
	assert.False(t, gateTripped(outcomes, finding.High))
	assert.False(t, gateTripped(nil, finding.Info))
}

func TestEngineOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	ext, sc, dom := engineOptions(cfg)
	assert.Len(t, ext, 1)
	assert.Len(t, sc, 2)
	assert.Len(t, dom, 2)
}

func TestBrowserOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.Headless = false
	cfg.Browser.Width = 800
	opts := browserOptions(cfg)
	assert.False(t, opts.Headless)
	assert.Equal(t, 800, opts.Width)
	assert.Equal(t, int(cfg.Fetch.MaxBytes), opts.MaxBodyBytes)
}

func TestJoinNames(t *testing.T) {
	assert.Equal(t, "json, csv", joinNames([]export.Format{export.FormatJSON, export.FormatCSV}))
	assert.Equal(t, "(memory)", storeLabel(""))
}
