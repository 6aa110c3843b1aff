// Package storage persists observer results in a single JSON document and
// answers read queries from it.
//
// Writes return errors so the observer can stop sending; reads fail soft,
// logging the cause and returning empty values. With no base path the
// store is memory-only.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/finding"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
)

// FileName is the name of the state document under the base directory.
const FileName = "pagelens.json"

// EndpointEntry is one persisted extraction batch.
type EndpointEntry struct {
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Timestamp time.Time         `json:"timestamp"`
	Result    *endpoints.Result `json:"result"`
}

// SecretEntry is one persisted batch of secret findings.
type SecretEntry struct {
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Timestamp time.Time         `json:"timestamp"`
	Findings  []secrets.Finding `json:"findings"`
}

// DomainData is the latest domain summary of the observed page.
type DomainData struct {
	Stats      domains.Stats    `json:"stats"`
	Suspicious []domains.Record `json:"suspicious"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Stats summarizes persisted state.
type Stats struct {
	JSFiles           int                      `json:"js_files"`
	EndpointSources   int                      `json:"endpoint_sources"`
	Endpoints         int                      `json:"endpoints"`
	SecretSources     int                      `json:"secret_sources"`
	Secrets           int                      `json:"secrets"`
	BySeverity        map[finding.Severity]int `json:"by_severity"`
	Snapshots         int                      `json:"snapshots"`
	SuspiciousDomains int                      `json:"suspicious_domains"`
	LastUpdated       time.Time                `json:"last_updated"`
}

// Data is a consistent copy of everything persisted.
type Data struct {
	JSFiles   []string             `json:"js_files"`
	Endpoints []EndpointEntry      `json:"endpoints"`
	Secrets   []SecretEntry        `json:"secrets"`
	Domains   DomainData           `json:"domains"`
	Snapshots []*snapshot.Snapshot `json:"snapshots"`
}

type document struct {
	Version     int                           `json:"version"`
	JSFiles     []string                      `json:"js_files"`
	Endpoints   map[string]EndpointEntry      `json:"endpoints"`
	Secrets     map[string]SecretEntry        `json:"secrets"`
	Domains     DomainData                    `json:"domains"`
	Snapshots   map[string]*snapshot.Snapshot `json:"snapshots"`
	LastUpdated time.Time                     `json:"last_updated"`
}

func newDocument() *document {
	return &document{
		Version:   1,
		JSFiles:   make([]string, 0),
		Endpoints: make(map[string]EndpointEntry),
		Secrets:   make(map[string]SecretEntry),
		Domains:   DomainData{Suspicious: make([]domains.Record, 0)},
		Snapshots: make(map[string]*snapshot.Snapshot),
	}
}

// Store is a JSON-file backed store. It is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	path       string
	exclusions []string
	logger     *slog.Logger
	now        func() time.Time

	doc     *document
	modTime time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExclusions drops JS file URLs containing any of patterns.
func WithExclusions(patterns ...string) Option {
	return func(s *Store) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				s.exclusions = append(s.exclusions, p)
			}
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New opens the store under dir, creating it when missing. An empty dir
// gives a memory-only store.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		logger: slog.Default(),
		now:    time.Now,
		doc:    newDocument(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	s.path = filepath.Join(dir, FileName)
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the state file path, or "" for a memory-only store.
func (s *Store) Path() string {
	return s.path
}

// reload picks up changes written by another process. Caller holds mu.
func (s *Store) reload() error {
	if s.path == "" {
		return nil
	}
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: stat: %w", err)
	}
	if !info.ModTime().After(s.modTime) && !s.modTime.IsZero() {
		return nil
	}

	doc := newDocument()
	if err := jsonutil.ReadFile(s.path, doc); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	doc.fill()
	s.doc = doc
	s.modTime = info.ModTime()
	return nil
}

func (d *document) fill() {
	if d.JSFiles == nil {
		d.JSFiles = make([]string, 0)
	}
	if d.Endpoints == nil {
		d.Endpoints = make(map[string]EndpointEntry)
	}
	if d.Secrets == nil {
		d.Secrets = make(map[string]SecretEntry)
	}
	if d.Snapshots == nil {
		d.Snapshots = make(map[string]*snapshot.Snapshot)
	}
	if d.Domains.Suspicious == nil {
		d.Domains.Suspicious = make([]domains.Record, 0)
	}
}

// persist writes the document. Caller holds mu.
func (s *Store) persist() error {
	s.doc.LastUpdated = s.now()
	if s.path == "" {
		return nil
	}
	if err := jsonutil.WriteFile(s.path, s.doc); err != nil {
		return fmt.Errorf("storage: write: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// write runs fn on the freshest document and persists the result.
func (s *Store) write(fn func(d *document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(); err != nil {
		return err
	}
	fn(s.doc)
	return s.persist()
}

// read runs fn on the freshest document. Reload failures are logged and
// fn sees an empty document.
func (s *Store) read(op string, fn func(d *document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(); err != nil {
		s.logger.Warn("storage read failed", slog.String("op", op), slog.Any("error", err))
		fn(newDocument())
		return
	}
	fn(s.doc)
}

func key(u string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", u, ts.UnixMilli())
}

func (s *Store) excluded(u string) bool {
	for _, p := range s.exclusions {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

// SaveJSFiles adds urls to the persisted script list, skipping duplicates
// and excluded URLs.
func (s *Store) SaveJSFiles(urls []string) error {
	return s.write(func(d *document) {
		seen := make(map[string]bool, len(d.JSFiles))
		for _, u := range d.JSFiles {
			seen[u] = true
		}
		for _, u := range urls {
			if u == "" || seen[u] || s.excluded(u) {
				continue
			}
			seen[u] = true
			d.JSFiles = append(d.JSFiles, u)
		}
	})
}

// SaveEndpoints stores one extraction batch.
func (s *Store) SaveEndpoints(u string, r *endpoints.Result, ts time.Time) error {
	if r == nil {
		return nil
	}
	return s.write(func(d *document) {
		k := key(u, ts)
		d.Endpoints[k] = EndpointEntry{Key: k, URL: u, Timestamp: ts, Result: r}
	})
}

// SaveSecrets stores one batch of findings.
func (s *Store) SaveSecrets(u string, findings []secrets.Finding, ts time.Time) error {
	if len(findings) == 0 {
		return nil
	}
	return s.write(func(d *document) {
		k := key(u, ts)
		d.Secrets[k] = SecretEntry{Key: k, URL: u, Timestamp: ts, Findings: findings}
	})
}

// SaveSnapshot stores a finished snapshot under its id.
func (s *Store) SaveSnapshot(snap *snapshot.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return errors.New("storage: snapshot without id")
	}
	return s.write(func(d *document) {
		d.Snapshots[snap.ID] = snap
	})
}

// SaveSuspiciousDomains replaces the domain summary.
func (s *Store) SaveSuspiciousDomains(stats domains.Stats, records []domains.Record) error {
	if records == nil {
		records = make([]domains.Record, 0)
	}
	return s.write(func(d *document) {
		d.Domains = DomainData{Stats: stats, Suspicious: records, UpdatedAt: s.now()}
	})
}

// Clear removes everything.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = newDocument()
	return s.persist()
}

// GetStats summarizes persisted state.
func (s *Store) GetStats() Stats {
	st := Stats{BySeverity: make(map[finding.Severity]int)}
	s.read("stats", func(d *document) {
		st.JSFiles = len(d.JSFiles)
		st.EndpointSources = len(d.Endpoints)
		for _, e := range d.Endpoints {
			if e.Result != nil {
				st.Endpoints += e.Result.Total()
			}
		}
		st.SecretSources = len(d.Secrets)
		for _, e := range d.Secrets {
			st.Secrets += len(e.Findings)
			for _, f := range e.Findings {
				st.BySeverity[f.Severity]++
			}
		}
		st.Snapshots = len(d.Snapshots)
		st.SuspiciousDomains = len(d.Domains.Suspicious)
		st.LastUpdated = d.LastUpdated
	})
	return st
}

// GetJSFiles returns the persisted script URLs in insertion order.
func (s *Store) GetJSFiles() []string {
	var out []string
	s.read("js_files", func(d *document) {
		out = append(make([]string, 0, len(d.JSFiles)), d.JSFiles...)
	})
	return out
}

// GetEndpoints returns every extraction batch ordered by time then URL.
func (s *Store) GetEndpoints() []EndpointEntry {
	var out []EndpointEntry
	s.read("endpoints", func(d *document) {
		out = make([]EndpointEntry, 0, len(d.Endpoints))
		for _, e := range d.Endpoints {
			out = append(out, e)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// GetSecrets returns every finding batch ordered by time then URL.
func (s *Store) GetSecrets() []SecretEntry {
	var out []SecretEntry
	s.read("secrets", func(d *document) {
		out = make([]SecretEntry, 0, len(d.Secrets))
		for _, e := range d.Secrets {
			out = append(out, e)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// GetDomainData returns the latest domain summary.
func (s *Store) GetDomainData() DomainData {
	var out DomainData
	s.read("domains", func(d *document) {
		out = d.Domains
		out.Suspicious = append(make([]domains.Record, 0, len(d.Domains.Suspicious)), d.Domains.Suspicious...)
	})
	return out
}

// GetSnapshots returns every snapshot ordered by start time.
func (s *Store) GetSnapshots() []*snapshot.Snapshot {
	var out []*snapshot.Snapshot
	s.read("snapshots", func(d *document) {
		out = make([]*snapshot.Snapshot, 0, len(d.Snapshots))
		for _, snap := range d.Snapshots {
			out = append(out, snap.Clone())
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetSnapshot returns one snapshot by id.
func (s *Store) GetSnapshot(id string) (*snapshot.Snapshot, bool) {
	var out *snapshot.Snapshot
	s.read("snapshot", func(d *document) {
		if snap, ok := d.Snapshots[id]; ok {
			out = snap.Clone()
		}
	})
	return out, out != nil
}

// CompareSnapshots diffs two stored snapshots.
func (s *Store) CompareSnapshots(idA, idB string) (*snapshot.Comparison, error) {
	a, ok := s.GetSnapshot(idA)
	if !ok {
		return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, idA)
	}
	b, ok := s.GetSnapshot(idB)
	if !ok {
		return nil, fmt.Errorf("%w: %s", snapshot.ErrSnapshotNotFound, idB)
	}
	return snapshot.Diff(a, b), nil
}

// Dump returns a copy of everything persisted.
func (s *Store) Dump() Data {
	return Data{
		JSFiles:   s.GetJSFiles(),
		Endpoints: s.GetEndpoints(),
		Secrets:   s.GetSecrets(),
		Domains:   s.GetDomainData(),
		Snapshots: s.GetSnapshots(),
	}
}
