package endpoints

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestExtract_Categories(t *testing.T) {
	t.Parallel()

	code := `
		fetch("/api/users");
		axios.post('/api/orders', body);
		$.getJSON("/legacy/items.json");
		xhr.open("POST", "/v2/login");
		const routes = [{ path: "/dashboard/:id", component: Dash }];
		app.get('/health/check', handler);
		const ws = new WebSocket("wss://live.example.com/socket");
		const q = gql` + "`query GetUser($id: ID!) { user(id: $id) { name } }`" + `;
		const gqlURL = "https://example.com/graphql";
		const uploadUrl = "/files/upload";
		const docs = "https://example.com/swagger/index.html";
	`

	e := NewExtractor(WithClock(fixedClock))
	res := e.Extract(code, "app.js")

	assert.Contains(t, res.Endpoints, "/api/users")
	assert.Contains(t, res.Endpoints, "/api/orders")
	assert.Contains(t, res.Endpoints, "/legacy/items.json")
	assert.Contains(t, res.Endpoints, "/v2/login")
	assert.Contains(t, res.Routes, "/dashboard/:id")
	assert.Contains(t, res.Routes, "/health/check")
	assert.Contains(t, res.WebSockets, "wss://live.example.com/socket")
	assert.Contains(t, res.GraphQL, "query GetUser")
	assert.Contains(t, res.GraphQL, "https://example.com/graphql")
	assert.Contains(t, res.Uploads, "/files/upload")
	assert.Contains(t, res.Docs, "https://example.com/swagger/index.html")
	assert.Contains(t, res.URLs, "https://example.com/graphql")

	assert.Equal(t, "app.js", res.Meta.Source)
	assert.Equal(t, len(code), res.Meta.InputLength)
	assert.Equal(t, fixedClock(), res.Meta.Timestamp)
}

func TestExtract_VersionedRouteOnce(t *testing.T) {
	t.Parallel()

	code := strings.Repeat(`load("https://api.example.com/v1/users"); `, 5)
	res := NewExtractor().Extract(code, "")

	count := 0
	for _, v := range res.Routes {
		if v == "/v1/users" {
			count++
		}
	}
	assert.Equal(t, 1, count, "routes: %v", res.Routes)
}

func TestExtract_SortedAndUnique(t *testing.T) {
	t.Parallel()

	code := `fetch("/zeta/one"); fetch("/alpha/two"); fetch("/zeta/one"); fetch("/mid/three");`
	res := NewExtractor().Extract(code, "")

	assert.Equal(t, []string{"/alpha/two", "/mid/three", "/zeta/one"}, res.Endpoints)
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	code := `fetch("/a/b"); var u = "https://x.example.com/p?q=1"; router.post("/items/new", h);`
	e := NewExtractor(WithClock(fixedClock))

	first := e.Extract(code, "")
	second := e.Extract(code, "")
	for _, c := range Categories() {
		assert.Equal(t, first.Values(c), second.Values(c), "category %s", c)
	}
}

func TestExtract_StripsCommentsAndLogging(t *testing.T) {
	t.Parallel()

	code := `
		/* fetch("/api/hidden-block") */
		// fetch("/api/hidden-line")
		console.log("/api/logged-value");
		fetch("/api/visible");
		var accept = "application/json, */*";
		var cdn = "//cdn.example.com/lib.js";
	`
	res := NewExtractor().Extract(code, "")

	assert.Equal(t, []string{"/api/visible"}, res.Endpoints)
	assert.NotContains(t, res.URLs, "/api/logged-value")
	assert.Contains(t, res.URLs, "//cdn.example.com/lib.js")
}

func TestExtract_MIMEWildcardsDoNotOpenComments(t *testing.T) {
	t.Parallel()

	code := `input.accept="image/*";fetch("/api/users");h.Accept="application/json, */*";`
	res := NewExtractor().Extract(code, "")
	assert.Contains(t, res.Endpoints, "/api/users")
}

func TestExtract_Denylist(t *testing.T) {
	t.Parallel()

	assert.False(t, keep("true"))
	assert.False(t, keep("null"))
	assert.False(t, keep("function"))
	assert.False(t, keep("/../"))
	assert.False(t, keep("a = b"))
	assert.False(t, keep("abc"))
	assert.False(t, keep(strings.Repeat("a", maxLength)))
	assert.True(t, keep("/api"))
	assert.True(t, keep(strings.Repeat("a", maxLength-1)))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{`"/api/x"`, "/api/x"},
		{"`/api/x`", "/api/x"},
		{`\/api\/x`, "/api/x"},
		{`  '/api/x'  `, "/api/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(tt.in), "normalize(%q)", tt.in)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	t.Parallel()

	res := NewExtractor().Extract("", "")
	for _, c := range Categories() {
		assert.NotNil(t, res.Values(c), "category %s", c)
		assert.Empty(t, res.Values(c), "category %s", c)
	}
	assert.True(t, res.Empty())
}

func TestExtract_Truncates(t *testing.T) {
	t.Parallel()

	code := `fetch("/api/early");` + strings.Repeat(" ", 100) + `fetch("/api/late");`
	res := NewExtractor(WithMaxScanBytes(40)).Extract(code, "")

	assert.True(t, res.Meta.Truncated)
	assert.Equal(t, []string{"/api/early"}, res.Endpoints)
}

func TestExtractor_Aggregates(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	e.Extract(`fetch("/api/one"); fetch("/api/two");`, "a.js")
	e.Extract(`fetch("/api/two"); fetch("/api/three");`, "b.js")
	e.Extract(`fetch("/api/ignored");`, "")

	assert.Equal(t, []string{"a.js", "b.js"}, e.Sources())

	all := e.AllEndpoints()
	assert.Equal(t, []string{"/api/one", "/api/three", "/api/two"}, all[CategoryEndpoints])
	assert.Equal(t, 3, e.Totals()[CategoryEndpoints])

	r, ok := e.Result("b.js")
	require.True(t, ok)
	assert.Equal(t, "b.js", r.Meta.Source)

	e.Clear()
	assert.Empty(t, e.Sources())
	assert.Equal(t, 0, e.Totals()[CategoryEndpoints])
}

func TestResolve(t *testing.T) {
	t.Parallel()

	res := &Result{
		URLs:      []string{"https://cdn.example.com/app.js", "//static.example.com/a.css"},
		Endpoints: []string{"/api/users", "%zz"},
		Routes:    []string{"/api/users"},
	}
	got := Resolve(res, "https://www.example.com/page")

	assert.Equal(t, []string{
		"https://cdn.example.com/app.js",
		"https://static.example.com/a.css",
		"https://www.example.com/api/users",
	}, got)
}
