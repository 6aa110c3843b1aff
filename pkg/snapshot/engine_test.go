package snapshot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(10 * time.Millisecond)
		return t
	}
}

func newTestEngine() *Engine {
	return NewEngine(WithClock(fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))))
}

func TestEngine_StopWithoutStart(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	id, ok := e.Stop()
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Empty(t, e.List())
}

func TestEngine_AddWithoutCaptureIsIgnored(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, ok := e.AddAsset("https://example.com/app.js", TypeScript, nil)
	assert.False(t, ok)
	_, ok = e.AddInlineAsset(TypeScript, "var a = 1", nil)
	assert.False(t, ok)
	assert.False(t, e.RecordTiming("https://example.com/app.js", 10, 5))
	refs, ok := e.CaptureDocument("<script src=/x.js></script>")
	assert.False(t, ok)
	assert.Empty(t, refs)
}

func TestEngine_StartWhileActive(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	id, err := e.Start("", "https://example.com/")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "example.com_"))

	_, err = e.Start("", "https://example.com/")
	assert.True(t, errors.Is(err, ErrCaptureActive))

	active, ok := e.Active()
	assert.True(t, ok)
	assert.Equal(t, id, active)
}

func TestEngine_InvalidURLDropped(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, err := e.Start("example.com", "https://example.com/")
	require.NoError(t, err)

	_, ok := e.AddAsset("::not a url", TypeScript, nil)
	assert.False(t, ok)
	_, ok = e.AddAsset("/relative/only.js", TypeScript, nil)
	assert.False(t, ok)

	id, _ := e.Stop()
	snap, ok := e.Get(id)
	require.True(t, ok)
	assert.Empty(t, snap.Assets)
}

func TestEngine_InlineContentTruncated(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, err := e.Start("example.com", "https://example.com/")
	require.NoError(t, err)

	body := strings.Repeat("a", 12000)
	aid, ok := e.AddInlineAsset(TypeScript, body, nil)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(aid, "inline-"))

	id, _ := e.Stop()
	snap, _ := e.Get(id)
	a := snap.Assets[aid]
	require.NotNil(t, a)
	assert.Len(t, a.Content, 10000)
	assert.Equal(t, int64(12000), a.Size)
	assert.True(t, a.Inline)
}

func TestEngine_CriticalPathOrderedByLoadTime(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, err := e.Start("example.com", "https://example.com/")
	require.NoError(t, err)

	css, ok := e.AddAsset("https://example.com/site.css", TypeStylesheet, nil)
	require.True(t, ok)
	js, ok := e.AddAsset("https://example.com/app.js", TypeScript, nil)
	require.True(t, ok)
	_, ok = e.AddAsset("https://example.com/lazy.js", TypeScript, map[string]string{"defer": ""})
	require.True(t, ok)
	_, ok = e.AddAsset("https://example.com/logo.png", "", nil)
	require.True(t, ok)

	require.True(t, e.RecordTiming("https://example.com/site.css", 2048, 120))
	require.True(t, e.RecordTiming("https://example.com/app.js", 4096, 80))

	id, ok := e.Stop()
	require.True(t, ok)
	snap, _ := e.Get(id)
	require.NotNil(t, snap.AssetMap)

	path := snap.AssetMap.CriticalPath
	require.Len(t, path, 2)
	assert.Equal(t, js, path[0].ID)
	assert.Equal(t, css, path[1].ID)

	require.Len(t, snap.AssetMap.Dependencies, 1)
	assert.Equal(t, js, snap.AssetMap.Dependencies[0].AssetID)
	assert.Equal(t, "DOMContentLoaded", snap.AssetMap.Dependencies[0].Blocks)
}

func TestEngine_CriticalPathTiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, err := e.Start("example.com", "https://example.com/")
	require.NoError(t, err)

	css, _ := e.AddAsset("https://example.com/site.css", TypeStylesheet, nil)
	js, _ := e.AddAsset("https://example.com/app.js", TypeScript, nil)

	id, _ := e.Stop()
	snap, _ := e.Get(id)
	path := snap.AssetMap.CriticalPath
	require.Len(t, path, 2)
	assert.Equal(t, css, path[0].ID)
	assert.Equal(t, js, path[1].ID)
}

func TestEngine_MetricsAndSecurity(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, err := e.Start("example.com", "https://example.com/")
	require.NoError(t, err)

	e.AddAsset("http://cdn.other.net/lib.js", TypeScript, nil)
	e.AddAsset("https://cdn.other.net/lib.css", TypeStylesheet, map[string]string{"integrity": "sha384-abc"})
	e.AddAsset("https://example.com/main.js", TypeScript, map[string]string{"async": ""})
	e.AddInlineAsset(TypeScript, "console.log(1)", nil)
	e.RecordTiming("http://cdn.other.net/lib.js", 100, 50)
	e.RecordTiming("https://cdn.other.net/lib.css", 300, 200)
	e.RecordTiming("https://example.com/main.js", 200, 30)

	id, _ := e.Stop()
	snap, _ := e.Get(id)

	p := snap.Performance
	assert.Equal(t, 3, p.RequestCount)
	assert.Equal(t, int64(600), p.TotalSize)
	assert.Equal(t, 2, p.CrossOriginCount)
	assert.Equal(t, 1, p.IntegrityCount)
	assert.InDelta(t, 66.67, p.HTTPSPercent, 0.01)
	assert.InDelta(t, 200.0, p.AverageSize, 0.001)
	assert.InDelta(t, 200.0, p.LoadTime, 0.001)

	assert.Equal(t, []string{"http://cdn.other.net/lib.js"}, snap.Security.MixedContent)
	assert.Equal(t, []string{"http://cdn.other.net/lib.js"}, snap.AssetMap.Security.MissingIntegrity)
	assert.Equal(t, []string{"http://cdn.other.net/lib.js", "https://cdn.other.net/lib.css"},
		snap.AssetMap.Security.CrossOrigin)
	assert.Len(t, snap.AssetMap.ByDomain["cdn.other.net"], 2)
}

func TestEngine_DuplicateURLMergesMetadata(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, err := e.Start("example.com", "https://example.com/")
	require.NoError(t, err)

	a, _ := e.AddAsset("https://example.com/app.js", TypeScript, nil)
	b, _ := e.AddAsset("https://example.com/app.js", TypeScript, map[string]string{"integrity": "sha256-x"})
	assert.Equal(t, a, b)

	id, _ := e.Stop()
	snap, _ := e.Get(id)
	require.Len(t, snap.Assets, 1)
	assert.True(t, snap.Assets[a].Security.HasIntegrity)
}

func TestEngine_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, _ = e.Start("example.com", "https://example.com/")
	e.AddAsset("https://example.com/app.js", TypeScript, nil)
	id, _ := e.Stop()

	snap, _ := e.Get(id)
	for k := range snap.Assets {
		delete(snap.Assets, k)
	}
	again, _ := e.Get(id)
	assert.Len(t, again.Assets, 1)
}

func TestEngine_SnapshotIDsUnique(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := NewEngine(WithClock(func() time.Time { return now }))

	a, err := e.Start("example.com", "https://example.com/")
	require.NoError(t, err)
	e.Stop()
	b, err := e.Start("example.com", "https://example.com/")
	require.NoError(t, err)
	e.Stop()

	assert.NotEqual(t, a, b)
	assert.Len(t, e.List(), 2)
}

func TestEngine_Compare(t *testing.T) {
	t.Parallel()

	e := newTestEngine()

	_, _ = e.Start("example.com", "https://example.com/")
	e.AddAsset("https://example.com/a.js", TypeScript, nil)
	e.AddAsset("https://example.com/b.js", TypeScript, nil)
	e.RecordTiming("https://example.com/b.js", 100, 10)
	first, _ := e.Stop()

	_, _ = e.Start("example.com", "https://example.com/")
	e.AddAsset("https://example.com/b.js", TypeScript, nil)
	e.AddAsset("https://example.com/c.js", TypeScript, nil)
	e.RecordTiming("https://example.com/b.js", 150, 10)
	second, _ := e.Stop()

	cmp, err := e.Compare(first, second)
	require.NoError(t, err)
	require.Len(t, cmp.Added, 1)
	assert.Equal(t, "https://example.com/c.js", cmp.Added[0].URL)
	require.Len(t, cmp.Removed, 1)
	assert.Equal(t, "https://example.com/a.js", cmp.Removed[0].URL)
	require.Len(t, cmp.Modified, 1)
	assert.Equal(t, int64(100), cmp.Modified[0].SizeBefore)
	assert.Equal(t, int64(150), cmp.Modified[0].SizeAfter)
	assert.Equal(t, int64(50), cmp.Delta.TotalSize)

	rev, err := e.Compare(second, first)
	require.NoError(t, err)
	assert.Equal(t, cmp.Added[0].URL, rev.Removed[0].URL)
	assert.Equal(t, cmp.Removed[0].URL, rev.Added[0].URL)
	assert.Equal(t, -cmp.Delta.TotalSize, rev.Delta.TotalSize)

	_, err = e.Compare(first, "missing")
	assert.True(t, errors.Is(err, ErrSnapshotNotFound))
}

func TestEngine_Clear(t *testing.T) {
	t.Parallel()

	e := newTestEngine()
	_, _ = e.Start("example.com", "https://example.com/")
	e.Stop()
	_, _ = e.Start("example.com", "https://example.com/")
	e.Clear()

	assert.Empty(t, e.List())
	_, ok := e.Active()
	assert.False(t, ok)
}
