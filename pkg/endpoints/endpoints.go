// Package endpoints extracts endpoint-like strings from JavaScript and HTML
// text. Detection is pattern based: each category runs an ordered list of
// regular expressions over a cleaned copy of the input.
package endpoints

import (
	"net/url"
	"regexp"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pagelens/pagelens/pkg/defaults"
)

const (
	minLength = 4
	maxLength = 2000
)

// Category names one family of extraction patterns.
type Category string

const (
	CategoryURLs       Category = "urls"
	CategoryEndpoints  Category = "endpoints"
	CategoryRoutes     Category = "routes"
	CategoryGraphQL    Category = "graphql"
	CategoryWebSockets Category = "websockets"
	CategoryUploads    Category = "uploads"
	CategoryDocs       Category = "docs"
)

// Categories returns every category in reporting order.
func Categories() []Category {
	return []Category{
		CategoryURLs,
		CategoryEndpoints,
		CategoryRoutes,
		CategoryGraphQL,
		CategoryWebSockets,
		CategoryUploads,
		CategoryDocs,
	}
}

// Meta describes the input of one extraction.
type Meta struct {
	Source      string    `json:"source,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	InputLength int       `json:"input_length"`
	Truncated   bool      `json:"truncated,omitempty"`
}

// Result holds the de-duplicated, sorted values of every category.
type Result struct {
	URLs       []string `json:"urls"`
	Endpoints  []string `json:"endpoints"`
	Routes     []string `json:"routes"`
	GraphQL    []string `json:"graphql"`
	WebSockets []string `json:"websockets"`
	Uploads    []string `json:"uploads"`
	Docs       []string `json:"docs"`
	Meta       Meta     `json:"meta"`
}

// Values returns the values of category c.
func (r *Result) Values(c Category) []string {
	if r == nil {
		return nil
	}
	if p := r.slot(c); p != nil {
		return *p
	}
	return nil
}

// Total returns the number of values across all categories.
func (r *Result) Total() int {
	n := 0
	for _, c := range Categories() {
		n += len(r.Values(c))
	}
	return n
}

// Empty reports whether no category holds a value.
func (r *Result) Empty() bool {
	return r.Total() == 0
}

func (r *Result) slot(c Category) *[]string {
	switch c {
	case CategoryURLs:
		return &r.URLs
	case CategoryEndpoints:
		return &r.Endpoints
	case CategoryRoutes:
		return &r.Routes
	case CategoryGraphQL:
		return &r.GraphQL
	case CategoryWebSockets:
		return &r.WebSockets
	case CategoryUploads:
		return &r.Uploads
	case CategoryDocs:
		return &r.Docs
	}
	return nil
}

type family struct {
	category Category
	patterns []*regexp.Regexp
}

// Extractor runs the pattern families and keeps every stored result by
// source. It is safe for concurrent use.
type Extractor struct {
	families []family
	maxBytes int
	now      func() time.Time

	mu      sync.RWMutex
	results map[string]*Result
	order   []string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxScanBytes bounds how much of each input is scanned.
func WithMaxScanBytes(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExtractor creates an extractor with the built-in pattern families.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		families: []family{
			{CategoryURLs, urlPatterns()},
			{CategoryEndpoints, callSitePatterns()},
			{CategoryRoutes, routePatterns()},
			{CategoryGraphQL, graphQLPatterns()},
			{CategoryWebSockets, webSocketPatterns()},
			{CategoryUploads, uploadPatterns()},
			{CategoryDocs, docPatterns()},
		},
		maxBytes: defaults.MaxScanBytes,
		now:      time.Now,
		results:  make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs every category over content. When source is non-empty the
// result is stored under it, replacing any earlier result for that source.
func (e *Extractor) Extract(content, source string) *Result {
	res := &Result{
		Meta: Meta{
			Source:      source,
			Timestamp:   e.now(),
			InputLength: len(content),
		},
	}

	if len(content) > e.maxBytes {
		content = clip(content, e.maxBytes)
		res.Meta.Truncated = true
	}

	cleaned := clean(content)
	for _, fam := range e.families {
		*res.slot(fam.category) = collect(cleaned, fam.patterns)
	}

	if source != "" {
		e.mu.Lock()
		if _, ok := e.results[source]; !ok {
			e.order = append(e.order, source)
		}
		e.results[source] = res
		e.mu.Unlock()
	}
	return res
}

func collect(text string, patterns []*regexp.Regexp) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := m[0]
			if len(m) > 1 && m[1] != "" {
				v = m[1]
			}
			v = normalize(v)
			if !keep(v) || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Result returns the stored result for source.
func (e *Extractor) Result(source string) (*Result, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.results[source]
	return r, ok
}

// Sources returns stored sources in the order they were first seen.
func (e *Extractor) Sources() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// AllEndpoints merges every stored result per category.
func (e *Extractor) AllEndpoints() map[Category][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	merged := make(map[Category][]string, len(e.families))
	for _, c := range Categories() {
		seen := make(map[string]bool)
		vals := make([]string, 0)
		for _, src := range e.order {
			for _, v := range e.results[src].Values(c) {
				if !seen[v] {
					seen[v] = true
					vals = append(vals, v)
				}
			}
		}
		sort.Strings(vals)
		merged[c] = vals
	}
	return merged
}

// Totals returns the number of distinct values per category.
func (e *Extractor) Totals() map[Category]int {
	all := e.AllEndpoints()
	totals := make(map[Category]int, len(all))
	for c, vals := range all {
		totals[c] = len(vals)
	}
	return totals
}

// Clear drops every stored result.
func (e *Extractor) Clear() {
	e.mu.Lock()
	e.results = make(map[string]*Result)
	e.order = nil
	e.mu.Unlock()
}

// Resolve returns the URL-like values of r (urls, endpoints, routes) as
// absolute URLs against base. Values that do not parse, or resolve to a
// non-network scheme, are skipped.
func Resolve(r *Result, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, c := range []Category{CategoryURLs, CategoryEndpoints, CategoryRoutes} {
		for _, v := range r.Values(c) {
			u, err := url.Parse(v)
			if err != nil {
				continue
			}
			abs := baseURL.ResolveReference(u)
			switch abs.Scheme {
			case "http", "https", "ws", "wss":
			default:
				continue
			}
			if abs.Host == "" {
				continue
			}
			s := abs.String()
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}
