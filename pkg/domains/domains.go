// Package domains classifies the hosts a page talks to and keeps a running
// table of them with request counts and a bounded risk score.
package domains

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/pagelens/pagelens/pkg/defaults"
)

// ErrInvalidURL is returned by Categorize for input without a host.
var ErrInvalidURL = errors.New("domains: invalid url")

// Record is one row of the domain table.
type Record struct {
	Hostname          string     `json:"hostname"`
	IsLocal           bool       `json:"is_local"`
	Categories        []Category `json:"categories"`
	Subdomains        []string   `json:"subdomains"`
	RegistrableDomain string     `json:"registrable_domain"`
	TLD               string     `json:"tld"`
	Secure            bool       `json:"secure"`
	Port              string     `json:"port,omitempty"`
	FirstSeen         time.Time  `json:"first_seen"`
	RequestCount      int        `json:"request_count"`
	ResourceTypes     []string   `json:"resource_types"`
	RiskScore         int        `json:"risk_score"`
	Alert             bool       `json:"alert"`
}

// Has reports whether r carries category c.
func (r Record) Has(c Category) bool {
	for _, rc := range r.Categories {
		if rc == c {
			return true
		}
	}
	return false
}

// Stats summarizes the domain table.
type Stats struct {
	Total      int              `json:"total"`
	Local      int              `json:"local"`
	ThirdParty int              `json:"third_party"`
	Insecure   int              `json:"insecure"`
	Alerts     int              `json:"alerts"`
	ByCategory map[Category]int `json:"by_category"`
}

type entry struct {
	rec   Record
	types map[string]bool
}

// Categorizer owns the domain table for one page. It is safe for
// concurrent use.
type Categorizer struct {
	pageHost  string
	weights   Weights
	threshold int
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	members map[Category]map[string]bool
}

// Option configures a Categorizer.
type Option func(*Categorizer)

// WithWeights overrides the risk weights.
func WithWeights(w Weights) Option {
	return func(c *Categorizer) { c.weights = w }
}

// WithAlertThreshold overrides the score at which a record alerts on its own.
func WithAlertThreshold(n int) Option {
	return func(c *Categorizer) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithClock overrides the first-seen timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Categorizer) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a categorizer anchored at pageURL. An unparsable page URL
// leaves only the fixed loopback and private-network rules for locality.
func New(pageURL string, opts ...Option) *Categorizer {
	c := &Categorizer{
		weights:   DefaultWeights(),
		threshold: defaults.AlertThreshold,
		now:       time.Now,
		entries:   make(map[string]*entry),
		members:   make(map[Category]map[string]bool),
	}
	if u, err := url.Parse(pageURL); err == nil {
		c.pageHost = strings.ToLower(u.Hostname())
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageHost returns the host locality is measured against.
func (c *Categorizer) PageHost() string {
	return c.pageHost
}

// Categorize records a sighting of rawURL. A new host is classified and
// scored; a known host only gets its request count and resource types
// updated.
func (c *Categorizer) Categorize(rawURL, resourceType string) (Record, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Record{}, fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[host]; ok {
		e.rec.RequestCount++
		if resourceType != "" {
			e.types[resourceType] = true
		}
		return c.export(e), nil
	}

	scheme := strings.ToLower(u.Scheme)
	rec := Record{
		Hostname:     host,
		IsLocal:      c.isLocal(host),
		Secure:       scheme == "https" || scheme == "wss",
		Port:         u.Port(),
		FirstSeen:    c.now(),
		RequestCount: 1,
	}
	rec.RegistrableDomain, rec.TLD, rec.Subdomains = splitHost(host)

	cats := categorize(host)
	rec.RiskScore = c.weights.score(host, rec.IsLocal, rec.Secure, cats)
	if len(cats) == 0 && !rec.IsLocal {
		cats = []Category{CategoryThirdParty}
	}
	rec.Categories = cats

	e := &entry{rec: rec, types: make(map[string]bool)}
	if resourceType != "" {
		e.types[resourceType] = true
	}
	c.entries[host] = e
	for _, cat := range cats {
		if c.members[cat] == nil {
			c.members[cat] = make(map[string]bool)
		}
		c.members[cat][host] = true
	}
	return c.export(e), nil
}

// export copies an entry out of the table with the alert flag evaluated.
func (c *Categorizer) export(e *entry) Record {
	r := e.rec
	r.Categories = append([]Category(nil), e.rec.Categories...)
	r.Subdomains = append([]string(nil), e.rec.Subdomains...)
	r.ResourceTypes = make([]string, 0, len(e.types))
	for t := range e.types {
		r.ResourceTypes = append(r.ResourceTypes, t)
	}
	sort.Strings(r.ResourceTypes)
	r.Alert = c.ShouldAlert(r)
	return r
}

// ShouldAlert evaluates the alert predicate for r.
func (c *Categorizer) ShouldAlert(r Record) bool {
	if r.RiskScore >= c.threshold {
		return true
	}
	if !r.IsLocal && !r.Secure {
		return true
	}
	return !r.IsLocal && r.Has(CategoryDevelopment)
}

// Lookup returns the record for host.
func (c *Categorizer) Lookup(host string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[strings.ToLower(host)]
	if !ok {
		return Record{}, false
	}
	return c.export(e), true
}

// All returns every record ordered by hostname.
func (c *Categorizer) All() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, c.export(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out
}

// AtOrAbove returns records scoring at least minScore, highest first.
func (c *Categorizer) AtOrAbove(minScore int) []Record {
	out := make([]Record, 0)
	for _, r := range c.All() {
		if r.RiskScore >= minScore {
			out = append(out, r)
		}
	}
	sortByRisk(out)
	return out
}

// Suspicious returns records whose alert predicate holds, highest risk first.
func (c *Categorizer) Suspicious() []Record {
	out := make([]Record, 0)
	for _, r := range c.All() {
		if r.Alert {
			out = append(out, r)
		}
	}
	sortByRisk(out)
	return out
}

// Members returns the hosts assigned to category cat.
func (c *Categorizer) Members(cat Category) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.members[cat]))
	for h := range c.members[cat] {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Stats summarizes the table.
func (c *Categorizer) Stats() Stats {
	st := Stats{ByCategory: make(map[Category]int)}
	for _, r := range c.All() {
		st.Total++
		if r.IsLocal {
			st.Local++
		} else {
			st.ThirdParty++
		}
		if !r.Secure {
			st.Insecure++
		}
		if r.Alert {
			st.Alerts++
		}
		for _, cat := range r.Categories {
			st.ByCategory[cat]++
		}
	}
	return st
}

// Clear empties the table.
func (c *Categorizer) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.members = make(map[Category]map[string]bool)
	c.mu.Unlock()
}

func sortByRisk(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].RiskScore != rs[j].RiskScore {
			return rs[i].RiskScore > rs[j].RiskScore
		}
		return rs[i].Hostname < rs[j].Hostname
	})
}

// localSuffixes are reserved or conventionally internal name suffixes.
var localSuffixes = []string{".local", ".test", ".dev", ".localhost", ".internal"}

func (c *Categorizer) isLocal(host string) bool {
	if c.pageHost != "" {
		if host == c.pageHost ||
			strings.HasSuffix(host, "."+c.pageHost) ||
			strings.HasSuffix(c.pageHost, "."+host) {
			return true
		}
	}
	return IsPrivateHost(host)
}

// IsPrivateHost reports loopback, private-network and reserved local names,
// independent of any page.
func IsPrivateHost(host string) bool {
	h := strings.Trim(strings.ToLower(host), "[]")
	if h == "localhost" {
		return true
	}
	for _, suf := range localSuffixes {
		if strings.HasSuffix(h, suf) {
			return true
		}
	}
	if ip := net.ParseIP(h); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate()
	}
	return false
}

// splitHost derives the registrable domain, public suffix and subdomain
// labels. IP literals have none of them.
func splitHost(host string) (registrable, tld string, subdomains []string) {
	subdomains = make([]string, 0)
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return host, "", subdomains
	}
	tld, _ = publicsuffix.PublicSuffix(host)
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, tld, subdomains
	}
	if prefix := strings.TrimSuffix(host, "."+registrable); prefix != host && prefix != "" {
		subdomains = strings.Split(prefix, ".")
	}
	return registrable, tld, subdomains
}
