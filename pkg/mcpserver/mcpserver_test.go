package mcpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/finding"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
	"github.com/pagelens/pagelens/pkg/storage"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Fake key assembled at runtime so the source never holds a full match.
var testKey = "AKIA" + "QWERTYUIOPASDFGH"

type fixture struct {
	store    *storage.Store
	snapA    string
	snapB    string
	pageURL  string
	scriptJS string
}

func seedStore(t *testing.T) fixture {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)

	f := fixture{store: store, pageURL: "https://example.com/", scriptJS: "https://example.com/app.js"}

	tick := baseTime
	eng := snapshot.NewEngine(snapshot.WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}))

	_, err = eng.Start("example.com", f.pageURL)
	require.NoError(t, err)
	eng.AddAsset(f.scriptJS, snapshot.TypeScript, nil)
	eng.AddAsset("https://example.com/old.css", snapshot.TypeStylesheet, nil)
	eng.RecordTiming(f.scriptJS, 1000, 50)
	id, ok := eng.Stop()
	require.True(t, ok)
	f.snapA = id

	_, err = eng.Start("example.com", f.pageURL)
	require.NoError(t, err)
	eng.AddAsset(f.scriptJS, snapshot.TypeScript, nil)
	eng.AddAsset("https://cdn.other.net/new.js", snapshot.TypeScript, nil)
	eng.RecordTiming(f.scriptJS, 4000, 90)
	id, ok = eng.Stop()
	require.True(t, ok)
	f.snapB = id

	for _, snap := range eng.List() {
		require.NoError(t, store.SaveSnapshot(snap))
	}

	require.NoError(t, store.SaveJSFiles([]string{f.scriptJS, "https://cdn.other.net/new.js"}))
	require.NoError(t, store.SaveEndpoints(f.scriptJS, &endpoints.Result{
		URLs:      []string{"https://api.example.com/v1/users"},
		Endpoints: []string{"/api/orders", "/api/cart"},
		GraphQL:   []string{"/graphql"},
	}, baseTime))
	require.NoError(t, store.SaveSecrets(f.scriptJS, []secrets.Finding{
		{Type: "AWS Access Key ID", Category: secrets.CategoryCloud, Severity: finding.Critical, Value: "AKIA...ASDF", Raw: testKey, Line: 4},
		{Type: "Generic Token", Category: "generic", Severity: finding.Low, Value: "tok_...", Raw: "tok_1234567890", Line: 9},
	}, baseTime))
	require.NoError(t, store.SaveSuspiciousDomains(
		domains.Stats{Total: 2, Local: 1, ThirdParty: 1},
		[]domains.Record{{Hostname: "cdn.other.net", Categories: []domains.Category{"cdn"}, RiskScore: 6, FirstSeen: baseTime}},
	))
	return f
}

func connect(t *testing.T, srv *Server) *mcp.ClientSession {
	t.Helper()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.MCPServer().Run(ctx, serverTransport) }()

	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, res.IsError
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	require.NoError(t, jsonutil.Unmarshal([]byte(text), &v))
	return v
}

func TestListTools(t *testing.T) {
	cs := connect(t, New(Config{}))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Tools, 10)

	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
		require.NotNil(t, tool.Annotations, tool.Name)
		assert.True(t, tool.Annotations.ReadOnlyHint, tool.Name)
	}
	for _, want := range []string{"get_stats", "get_secrets", "compare_snapshots", "export_data", "categorize_url"} {
		assert.True(t, names[want], want)
	}
}

func TestNewWithoutStore(t *testing.T) {
	cs := connect(t, New(Config{}))
	text, isErr := call(t, cs, "get_stats", nil)
	require.False(t, isErr)
	stats := decode[storage.Stats](t, text)
	assert.Zero(t, stats.JSFiles)
	assert.Zero(t, stats.Secrets)
}

func TestGetStats(t *testing.T) {
	f := seedStore(t)
	cs := connect(t, New(Config{Store: f.store}))

	text, isErr := call(t, cs, "get_stats", nil)
	require.False(t, isErr)
	stats := decode[storage.Stats](t, text)
	assert.Equal(t, 2, stats.JSFiles)
	assert.Equal(t, 2, stats.Secrets)
	assert.Equal(t, 2, stats.Snapshots)
	assert.Equal(t, 1, stats.SuspiciousDomains)
}

func TestGetEndpoints(t *testing.T) {
	f := seedStore(t)
	cs := connect(t, New(Config{Store: f.store}))

	text, _ := call(t, cs, "get_endpoints", nil)
	all := decode[endpointsResponse](t, text)
	assert.Equal(t, 4, all.Total)
	require.Len(t, all.Items, 4)
	assert.Equal(t, f.scriptJS, all.Items[0].Source)

	text, _ = call(t, cs, "get_endpoints", map[string]any{"category": "GraphQL"})
	gql := decode[endpointsResponse](t, text)
	require.Equal(t, 1, gql.Total)
	assert.Equal(t, "/graphql", gql.Items[0].Value)

	text, _ = call(t, cs, "get_endpoints", map[string]any{"limit": 1})
	limited := decode[endpointsResponse](t, text)
	assert.Equal(t, 4, limited.Total)
	assert.Len(t, limited.Items, 1)

	text, _ = call(t, cs, "get_endpoints", map[string]any{"source": "nowhere.js"})
	none := decode[endpointsResponse](t, text)
	assert.Zero(t, none.Total)
	assert.NotNil(t, none.Items)
}

func TestGetSecrets(t *testing.T) {
	f := seedStore(t)
	cs := connect(t, New(Config{Store: f.store}))

	text, isErr := call(t, cs, "get_secrets", nil)
	require.False(t, isErr)
	assert.NotContains(t, text, testKey)
	resp := decode[secretsResponse](t, text)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, finding.Critical, resp.Findings[0].Severity)
	assert.Equal(t, f.scriptJS, resp.Findings[0].Source)
	assert.Empty(t, resp.Findings[0].Raw)

	text, _ = call(t, cs, "get_secrets", map[string]any{"min_severity": "high"})
	high := decode[secretsResponse](t, text)
	require.Equal(t, 1, high.Total)
	assert.Equal(t, "AWS Access Key ID", high.Findings[0].Type)

	text, _ = call(t, cs, "get_secrets", map[string]any{"type": "generic token"})
	typed := decode[secretsResponse](t, text)
	assert.Equal(t, 1, typed.Total)

	text, _ = call(t, cs, "get_secrets", map[string]any{"source": "other.net"})
	empty := decode[secretsResponse](t, text)
	assert.Zero(t, empty.Total)
	assert.NotNil(t, empty.Findings)
}

func TestGetDomains(t *testing.T) {
	f := seedStore(t)
	cs := connect(t, New(Config{Store: f.store}))

	text, _ := call(t, cs, "get_domains", nil)
	data := decode[storage.DomainData](t, text)
	assert.Equal(t, 2, data.Stats.Total)
	require.Len(t, data.Suspicious, 1)
	assert.Equal(t, "cdn.other.net", data.Suspicious[0].Hostname)
}

func TestGetSnapshots(t *testing.T) {
	f := seedStore(t)
	cs := connect(t, New(Config{Store: f.store}))

	text, _ := call(t, cs, "get_snapshots", nil)
	list := decode[[]snapshotSummary](t, text)
	require.Len(t, list, 2)
	assert.Equal(t, f.snapA, list[0].ID)
	assert.Equal(t, "example.com", list[0].Domain)

	text, isErr := call(t, cs, "get_snapshots", map[string]any{"id": f.snapB})
	require.False(t, isErr)
	full := decode[snapshot.Snapshot](t, text)
	assert.Equal(t, f.snapB, full.ID)
	assert.NotEmpty(t, full.Assets)

	text, isErr = call(t, cs, "get_snapshots", map[string]any{"id": "missing"})
	assert.True(t, isErr)
	assert.Contains(t, text, "recovery_steps")
}

func TestCompareSnapshots(t *testing.T) {
	f := seedStore(t)
	cs := connect(t, New(Config{Store: f.store}))

	text, isErr := call(t, cs, "compare_snapshots", map[string]any{"before": f.snapA, "after": f.snapB})
	require.False(t, isErr, text)
	resp := decode[compareResponse](t, text)
	assert.Contains(t, resp.Added, "https://cdn.other.net/new.js")
	assert.Contains(t, resp.Removed, "https://example.com/old.css")
	require.Len(t, resp.Modified, 1)
	assert.Equal(t, f.scriptJS, resp.Modified[0].URL)

	_, isErr = call(t, cs, "compare_snapshots", map[string]any{"before": f.snapA})
	assert.True(t, isErr)

	text, isErr = call(t, cs, "compare_snapshots", map[string]any{"before": f.snapA, "after": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, "get_snapshots")
}

func TestExportData(t *testing.T) {
	f := seedStore(t)
	cs := connect(t, New(Config{Store: f.store}))

	text, isErr := call(t, cs, "export_data", map[string]any{"format": "csv", "data": "secrets"})
	require.False(t, isErr, text)
	assert.True(t, strings.HasPrefix(text, "type,category,value"))
	assert.NotContains(t, text, testKey)
	assert.NotContains(t, text, "endpoint,")

	text, isErr = call(t, cs, "export_data", map[string]any{"format": "sarif"})
	require.False(t, isErr)
	assert.Contains(t, text, `"version": "2.1.0"`)

	_, isErr = call(t, cs, "export_data", map[string]any{"format": "pdf"})
	assert.True(t, isErr)

	_, isErr = call(t, cs, "export_data", map[string]any{"format": "xml"})
	assert.True(t, isErr)

	_, isErr = call(t, cs, "export_data", map[string]any{"format": "json", "data": "cookies"})
	assert.True(t, isErr)
}

func TestScanText(t *testing.T) {
	cs := connect(t, New(Config{}))

	text, isErr := call(t, cs, "scan_text", map[string]any{
		"text":   "const cfg = { key: \"" + testKey + "\" };",
		"source": "config.js",
	})
	require.False(t, isErr)
	assert.NotContains(t, text, testKey)
	res := decode[secrets.ScanResult](t, text)
	require.NotEmpty(t, res.Findings)
	assert.Equal(t, finding.Critical, res.Findings[0].Severity)
	assert.Equal(t, secrets.ContentJavaScript, res.Findings[0].ContentType)

	text, _ = call(t, cs, "scan_text", map[string]any{
		"text":         "// " + testKey,
		"content_type": "javascript",
	})
	assert.Empty(t, decode[secrets.ScanResult](t, text).Findings)
}

func TestExtractEndpoints(t *testing.T) {
	cs := connect(t, New(Config{}))

	text, isErr := call(t, cs, "extract_endpoints", map[string]any{
		"text":     `fetch("/api/users"); const ws = new WebSocket("wss://rt.example.com/socket");`,
		"base_url": "https://example.com/",
	})
	require.False(t, isErr)
	var resp struct {
		Endpoints  []string `json:"endpoints"`
		WebSockets []string `json:"websockets"`
		Resolved   []string `json:"resolved"`
	}
	require.NoError(t, jsonutil.Unmarshal([]byte(text), &resp))
	assert.Contains(t, resp.Endpoints, "/api/users")
	assert.Contains(t, resp.WebSockets, "wss://rt.example.com/socket")
	assert.Contains(t, resp.Resolved, "https://example.com/api/users")
}

func TestCategorizeURL(t *testing.T) {
	cs := connect(t, New(Config{}))

	text, isErr := call(t, cs, "categorize_url", map[string]any{
		"url":      "http://www.google-analytics.com/collect",
		"page_url": "https://shop.example.com/",
	})
	require.False(t, isErr, text)
	var resp struct {
		Hostname   string             `json:"hostname"`
		IsLocal    bool               `json:"is_local"`
		Secure     bool               `json:"secure"`
		Categories []domains.Category `json:"categories"`
		RiskScore  int                `json:"risk_score"`
	}
	require.NoError(t, jsonutil.Unmarshal([]byte(text), &resp))
	assert.Equal(t, "www.google-analytics.com", resp.Hostname)
	assert.False(t, resp.IsLocal)
	assert.False(t, resp.Secure)
	assert.Contains(t, resp.Categories, domains.Category("analytics"))
	assert.Positive(t, resp.RiskScore)

	_, isErr = call(t, cs, "categorize_url", map[string]any{"url": "not a url"})
	assert.True(t, isErr)
}

func TestResources(t *testing.T) {
	cs := connect(t, New(Config{}))
	ctx := context.Background()

	res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "pagelens://version"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, `"export_data"`)

	res, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "pagelens://secret-patterns"})
	require.NoError(t, err)
	patterns := decode[[]patternInfo](t, res.Contents[0].Text)
	assert.NotEmpty(t, patterns)
	for _, p := range patterns {
		assert.NotEmpty(t, p.Name)
		assert.NotEmpty(t, p.Severity)
	}
}

func TestTriagePrompt(t *testing.T) {
	cs := connect(t, New(Config{}))
	ctx := context.Background()

	res, err := cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "triage_capture", Arguments: map[string]string{"focus": "Domains"}})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "get_secrets")
	assert.Contains(t, text.Text, "Spend most of the review on domains.")

	_, err = cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "triage_capture", Arguments: map[string]string{"focus": "everything"}})
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(Config{})
	h := srv.HTTPHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	srv.MarkReady()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
