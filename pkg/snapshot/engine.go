// Package snapshot records the assets a page loads during a capture window
// and compares captures with each other.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/strutil"
)

var (
	// ErrSnapshotNotFound is returned when a snapshot id is unknown.
	ErrSnapshotNotFound = errors.New("snapshot: not found")

	// ErrCaptureActive is returned by Start while another capture runs.
	ErrCaptureActive = errors.New("snapshot: capture already active")
)

// Engine owns one active capture at a time plus the table of finished
// snapshots. It is safe for concurrent use.
type Engine struct {
	logger      *slog.Logger
	now         func() time.Time
	inlineLimit int

	mu        sync.Mutex
	active    *Snapshot
	snapshots map[string]*Snapshot
	order     []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:      slog.Default(),
		now:         time.Now,
		inlineLimit: defaults.InlineContentLimit,
		snapshots:   make(map[string]*Snapshot),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a capture for pageURL. domain defaults to the page host.
func (e *Engine) Start(domain, pageURL string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		return "", fmt.Errorf("%w: %s", ErrCaptureActive, e.active.ID)
	}

	var host, scheme string
	if u, err := url.Parse(pageURL); err == nil {
		host = strings.ToLower(u.Hostname())
		scheme = strings.ToLower(u.Scheme)
	}
	if domain == "" {
		domain = host
	}
	if host == "" {
		host = strings.ToLower(domain)
	}

	start := e.now()
	id := fmt.Sprintf("%s_%d", domain, start.UnixMilli())
	for n := 2; e.snapshots[id] != nil; n++ {
		id = fmt.Sprintf("%s_%d-%d", domain, start.UnixMilli(), n)
	}

	e.active = &Snapshot{
		ID:         id,
		Domain:     domain,
		URL:        pageURL,
		StartTime:  start,
		Assets:     make(map[string]*Asset),
		Security:   Security{MixedContent: make([]string, 0)},
		pageHost:   host,
		pageSecure: scheme == "https",
	}
	return id, nil
}

// Active returns the id of the running capture.
func (e *Engine) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return "", false
	}
	return e.active.ID, true
}

// AddAsset registers an external resource in the active capture. Invalid
// URLs are logged and dropped. An empty type is inferred from the URL.
// Adding a known URL merges metadata into the existing asset.
func (e *Engine) AddAsset(rawURL string, typ AssetType, meta map[string]string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addAssetLocked(rawURL, typ, meta)
}

func (e *Engine) addAssetLocked(rawURL string, typ AssetType, meta map[string]string) (string, bool) {
	if e.active == nil {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || u.Scheme == "" {
		e.logger.Warn("dropping asset with invalid url", slog.String("url", rawURL))
		return "", false
	}

	snap := e.active
	id := AssetID(rawURL)
	if a, ok := snap.Assets[id]; ok {
		mergeMeta(a, meta)
		if a.Type == TypeUnknown && typ != "" {
			a.Type = typ
		}
		a.Security.HasIntegrity = a.Metadata["integrity"] != ""
		return id, true
	}

	if typ == "" {
		typ = Classify(u)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	a := &Asset{
		ID:        id,
		URL:       rawURL,
		Type:      typ,
		Domain:    host,
		Path:      u.Path,
		Protocol:  scheme,
		Sequence:  snap.nextSeq,
		FirstSeen: e.now(),
	}
	mergeMeta(a, meta)
	a.Security = AssetSecurity{
		Secure:       scheme == "https" || scheme == "wss",
		CrossOrigin:  host != snap.pageHost,
		HasIntegrity: a.Metadata["integrity"] != "",
	}
	snap.nextSeq++
	snap.Assets[id] = a
	return id, true
}

// AddInlineAsset registers inline script or style content. Content beyond
// the inline limit is truncated.
func (e *Engine) AddInlineAsset(typ AssetType, content string, meta map[string]string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addInlineLocked(typ, content, meta)
}

func (e *Engine) addInlineLocked(typ AssetType, content string, meta map[string]string) (string, bool) {
	if e.active == nil {
		return "", false
	}
	snap := e.active
	a := &Asset{
		ID:        "inline-" + uuid.NewString(),
		Inline:    true,
		Type:      typ,
		Domain:    snap.pageHost,
		Sequence:  snap.nextSeq,
		FirstSeen: e.now(),
		Content:   strutil.Clip(content, e.inlineLimit),
		Size:      int64(len(content)),
		Security:  AssetSecurity{Secure: snap.pageSecure},
	}
	mergeMeta(a, meta)
	snap.nextSeq++
	snap.Assets[a.ID] = a
	return a.ID, true
}

// RecordTiming applies size and load time to the asset for rawURL,
// creating it when it was not referenced before.
func (e *Engine) RecordTiming(rawURL string, size int64, loadTimeMS float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.addAssetLocked(rawURL, "", nil)
	if !ok {
		return false
	}
	a := e.active.Assets[id]
	if size > 0 {
		a.Size = size
	}
	if loadTimeMS > 0 {
		a.LoadTime = loadTimeMS
	}
	return true
}

// SetEnvironment records the browsing context of the active capture.
func (e *Engine) SetEnvironment(env Environment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.active.Environment = env
	}
}

// SetCSP records the page's Content-Security-Policy.
func (e *Engine) SetCSP(policy string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setCSPLocked(policy)
}

func (e *Engine) setCSPLocked(policy string) {
	if e.active == nil || policy == "" {
		return
	}
	e.active.Security.HasCSP = true
	e.active.Security.CSP = policy
}

// SetPageTiming records navigation timing of the page in milliseconds.
func (e *Engine) SetPageTiming(domContentLoaded, load float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.active.Performance.DOMContentLoaded = domContentLoaded
		e.active.Performance.LoadTime = load
	}
}

// Stop finalizes the active capture and returns its id. It returns false
// and changes nothing when no capture is active.
func (e *Engine) Stop() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.active
	if snap == nil {
		return "", false
	}

	snap.EndTime = e.now()
	if snap.EndTime.Before(snap.StartTime) {
		snap.EndTime = snap.StartTime
	}
	snap.Duration = float64(snap.EndTime.Sub(snap.StartTime)) / float64(time.Millisecond)
	snap.AssetMap = buildAssetMap(snap)
	snap.Security.MixedContent = snap.AssetMap.Security.MixedContent
	computeMetrics(snap)

	e.snapshots[snap.ID] = snap
	e.order = append(e.order, snap.ID)
	e.active = nil
	return snap.ID, true
}

// Get returns a copy of a finished snapshot.
func (e *Engine) Get(id string) (*Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.snapshots[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// List returns copies of every finished snapshot in stop order.
func (e *Engine) List() []*Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Snapshot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.snapshots[id].Clone())
	}
	return out
}

// Compare diffs two finished snapshots.
func (e *Engine) Compare(idA, idB string) (*Comparison, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.snapshots[idA]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, idA)
	}
	b, ok := e.snapshots[idB]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, idB)
	}
	return Diff(a, b), nil
}

// Clear drops every finished snapshot and any active capture.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = nil
	e.snapshots = make(map[string]*Snapshot)
	e.order = nil
}

func mergeMeta(a *Asset, meta map[string]string) {
	if len(meta) == 0 {
		return
	}
	if a.Metadata == nil {
		a.Metadata = make(map[string]string, len(meta))
	}
	for k, v := range meta {
		a.Metadata[k] = v
	}
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Assets = make(map[string]*Asset, len(s.Assets))
	for id, a := range s.Assets {
		ac := *a
		if a.Metadata != nil {
			ac.Metadata = make(map[string]string, len(a.Metadata))
			for k, v := range a.Metadata {
				ac.Metadata[k] = v
			}
		}
		c.Assets[id] = &ac
	}
	c.Security.MixedContent = append([]string(nil), s.Security.MixedContent...)
	if s.AssetMap != nil {
		c.AssetMap = s.AssetMap.clone()
	}
	return &c
}

// Ordered returns the assets of s by first reference.
func (s *Snapshot) Ordered() []*Asset {
	out := make([]*Asset, 0, len(s.Assets))
	for _, a := range s.Assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
