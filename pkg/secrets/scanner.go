// Package secrets detects credential-like strings in page content.
//
// The catalog is a flat list of tagged patterns. A scan blanks comments,
// runs every pattern, masks each match and records where it was found.
package secrets

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/finding"
)

// Confidence values reported on findings.
const (
	ConfidencePattern      = "pattern"
	ConfidenceCorroborated = "corroborated"
)

// Finding is one detected secret.
type Finding struct {
	Type        string           `json:"type"`
	Category    Category         `json:"category"`
	Severity    finding.Severity `json:"severity"`
	Value       string           `json:"value"`
	Raw         string           `json:"raw,omitempty"`
	Line        int              `json:"line"`
	Offset      int              `json:"offset"`
	Context     string           `json:"context"`
	Source      string           `json:"source,omitempty"`
	ContentType ContentType      `json:"content_type"`
	Confidence  string           `json:"confidence"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Redacted returns a copy of f without the raw value.
func (f Finding) Redacted() Finding {
	f.Raw = ""
	return f
}

func (f Finding) key() string {
	return f.Type + "\x00" + f.Raw + "\x00" + f.Source
}

// Meta describes one scan.
type Meta struct {
	Source      string      `json:"source,omitempty"`
	ContentType ContentType `json:"content_type"`
	ScannedAt   time.Time   `json:"scanned_at"`
	Patterns    int         `json:"patterns"`
	InputLength int         `json:"input_length"`
	Truncated   bool        `json:"truncated,omitempty"`
}

// ScanResult holds the findings of one scan.
type ScanResult struct {
	Findings []Finding `json:"findings"`
	Meta     Meta      `json:"meta"`
}

// Stats counts stored findings.
type Stats struct {
	Total      int                      `json:"total"`
	BySeverity map[finding.Severity]int `json:"by_severity"`
	ByCategory map[Category]int         `json:"by_category"`
}

// Scanner runs the catalog over text and keeps results by source. It is
// safe for concurrent use.
type Scanner struct {
	catalog  []Pattern
	maxBytes int
	window   int
	now      func() time.Time

	mu      sync.RWMutex
	results map[string]*ScanResult
	order   []string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPatterns appends entries to the built-in catalog.
func WithPatterns(extra ...Pattern) Option {
	return func(s *Scanner) {
		s.catalog = append(s.catalog, extra...)
	}
}

// WithMaxScanBytes bounds how much of each input is scanned.
func WithMaxScanBytes(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScanner creates a scanner over DefaultCatalog.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		catalog:  DefaultCatalog(),
		maxBytes: defaults.MaxScanBytes,
		window:   defaults.SecretContextWindow,
		now:      time.Now,
		results:  make(map[string]*ScanResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the patterns this scanner runs.
func (s *Scanner) Catalog() []Pattern {
	out := make([]Pattern, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// Scan runs the catalog over text. Malformed input never fails; it just
// yields fewer findings.
func (s *Scanner) Scan(text, source string, ct ContentType) *ScanResult {
	if ct == "" {
		ct = ContentOther
	}
	now := s.now()
	res := &ScanResult{
		Findings: make([]Finding, 0),
		Meta: Meta{
			Source:      source,
			ContentType: ct,
			ScannedAt:   now,
			Patterns:    len(s.catalog),
			InputLength: len(text),
		},
	}
	if len(text) > s.maxBytes {
		text = clip(text, s.maxBytes)
		res.Meta.Truncated = true
	}

	scan := blankComments(text, ct)
	seen := make(map[string]bool)
	matched := make(map[string]bool)
	type hint struct {
		f  Finding
		by string
	}
	var pending []hint

	for _, pat := range s.catalog {
		for _, loc := range pat.Regex.FindAllStringSubmatchIndex(scan, -1) {
			start, end := loc[0], loc[1]
			if pat.Group > 0 && 2*pat.Group+1 < len(loc) && loc[2*pat.Group] >= 0 {
				start, end = loc[2*pat.Group], loc[2*pat.Group+1]
			}
			if start == end {
				continue
			}

			raw := scan[start:end]
			f := Finding{
				Type:        pat.Name,
				Category:    pat.Category,
				Severity:    pat.Severity,
				Value:       Mask(raw),
				Raw:         raw,
				Line:        1 + strings.Count(text[:start], "\n"),
				Offset:      start,
				Context:     s.context(text, start, end),
				Source:      source,
				ContentType: ct,
				Confidence:  ConfidencePattern,
				Timestamp:   now,
			}
			if seen[f.key()] {
				continue
			}
			seen[f.key()] = true

			if pat.RequiresCorroboration {
				f.Confidence = ConfidenceCorroborated
				pending = append(pending, hint{f: f, by: pat.CorroboratedBy})
				continue
			}
			matched[pat.Name] = true
			res.Findings = append(res.Findings, f)
		}
	}

	for _, h := range pending {
		if matched[h.by] {
			res.Findings = append(res.Findings, h.f)
		}
	}

	sortFindings(res.Findings)

	if source != "" {
		s.mu.Lock()
		if _, ok := s.results[source]; !ok {
			s.order = append(s.order, source)
		}
		s.results[source] = res
		s.mu.Unlock()
	}
	return res
}

// context returns up to window bytes on each side of the match with the
// match itself masked.
func (s *Scanner) context(text string, start, end int) string {
	from := start - s.window
	if from < 0 {
		from = 0
	}
	to := end + s.window
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from++
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to--
	}
	return text[from:start] + Mask(text[start:end]) + text[end:to]
}

// AllFindings returns every stored finding, de-duplicated and sorted.
func (s *Scanner) AllFindings() []Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	out := make([]Finding, 0)
	for _, src := range s.order {
		for _, f := range s.results[src].Findings {
			if !seen[f.key()] {
				seen[f.key()] = true
				out = append(out, f)
			}
		}
	}
	sortFindings(out)
	return out
}

// Result returns the stored scan for source.
func (s *Scanner) Result(source string) (*ScanResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[source]
	return r, ok
}

// Stats counts stored findings by severity and category.
func (s *Scanner) Stats() Stats {
	return Summarize(s.AllFindings())
}

// Summarize counts findings by severity and category.
func Summarize(findings []Finding) Stats {
	st := Stats{
		BySeverity: make(map[finding.Severity]int),
		ByCategory: make(map[Category]int),
	}
	for _, f := range findings {
		st.Total++
		st.BySeverity[f.Severity]++
		st.ByCategory[f.Category]++
	}
	return st
}

// Clear drops every stored result.
func (s *Scanner) Clear() {
	s.mu.Lock()
	s.results = make(map[string]*ScanResult)
	s.order = nil
	s.mu.Unlock()
}

// sortFindings orders by severity rank, then type name, then offset.
func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Offset < b.Offset
	})
}

var quickRe = regexp.MustCompile(`(?:AKIA|ASIA)[0-9A-Z]{16}|AIza[0-9A-Za-z_\-]{35}|gh[pousr]_[A-Za-z0-9]{36}|sk_live_[0-9a-zA-Z]{24}|xox[baprs]-[0-9A-Za-z\-]{10}|eyJ[A-Za-z0-9_\-]{10,}\.eyJ|-----BEGIN [A-Z ]*PRIVATE KEY`)

// QuickCheck reports whether text contains a high-signal secret shape.
// It is much cheaper than Scan and meant for triage.
func QuickCheck(text string) bool {
	return quickRe.MatchString(text)
}

func clip(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func containsAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
