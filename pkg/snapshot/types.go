package snapshot

import "time"

// AssetType is the semantic kind of an asset.
type AssetType string

const (
	TypeScript     AssetType = "script"
	TypeStylesheet AssetType = "stylesheet"
	TypeImage      AssetType = "image"
	TypeFont       AssetType = "font"
	TypeMedia      AssetType = "media"
	TypeDocument   AssetType = "document"
	TypeData       AssetType = "data"
	TypeAPI        AssetType = "api"
	TypeUnknown    AssetType = "unknown"
)

// AssetSecurity holds per-asset transport and integrity flags.
type AssetSecurity struct {
	Secure       bool `json:"secure"`
	CrossOrigin  bool `json:"cross_origin"`
	HasIntegrity bool `json:"has_integrity"`
}

// Asset is one resource referenced by the page. Times are in
// milliseconds, matching browser resource timing.
type Asset struct {
	ID        string            `json:"id"`
	URL       string            `json:"url,omitempty"`
	Inline    bool              `json:"inline,omitempty"`
	Type      AssetType         `json:"type"`
	Domain    string            `json:"domain,omitempty"`
	Path      string            `json:"path,omitempty"`
	Protocol  string            `json:"protocol,omitempty"`
	Size      int64             `json:"size"`
	LoadTime  float64           `json:"load_time_ms"`
	Sequence  int               `json:"sequence"`
	FirstSeen time.Time         `json:"first_seen"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content,omitempty"`
	Security  AssetSecurity     `json:"security"`
}

// Flag reports whether boolean metadata key is set. HTML boolean
// attributes are stored with an empty value, so presence counts.
func (a *Asset) Flag(key string) bool {
	v, ok := a.Metadata[key]
	return ok && v != "false"
}

// Blocking reports whether a script holds up DOMContentLoaded: neither
// async, defer nor a module.
func (a *Asset) Blocking() bool {
	if a.Type != TypeScript || a.Inline {
		return false
	}
	return !a.Flag("async") && !a.Flag("defer") && a.Metadata["type"] != "module"
}

// Environment describes the browsing context of a capture.
type Environment struct {
	Viewport            string `json:"viewport,omitempty"`
	Locale              string `json:"locale,omitempty"`
	UserAgent           string `json:"user_agent,omitempty"`
	LocalStorageBytes   int    `json:"local_storage_bytes"`
	SessionStorageBytes int    `json:"session_storage_bytes"`
	CookieBytes         int    `json:"cookie_bytes"`
}

// Performance holds aggregate metrics computed at stop.
type Performance struct {
	LoadTime         float64 `json:"load_time_ms"`
	DOMContentLoaded float64 `json:"dom_content_loaded_ms"`
	TotalSize        int64   `json:"total_size"`
	RequestCount     int     `json:"request_count"`
	HTTPSPercent     float64 `json:"https_percent"`
	CrossOriginCount int     `json:"cross_origin_count"`
	IntegrityCount   int     `json:"integrity_count"`
	AverageSize      float64 `json:"average_size"`
}

// Security summarizes page-level security observations.
type Security struct {
	MixedContent []string `json:"mixed_content"`
	HasCSP       bool     `json:"has_csp"`
	CSP          string   `json:"csp,omitempty"`
}

// DOMStats counts document elements.
type DOMStats struct {
	Elements      int `json:"elements"`
	Scripts       int `json:"scripts"`
	InlineScripts int `json:"inline_scripts"`
	Stylesheets   int `json:"stylesheets"`
	Images        int `json:"images"`
	Links         int `json:"links"`
	Forms         int `json:"forms"`
	Iframes       int `json:"iframes"`
}

// Snapshot is one capture session for a page.
type Snapshot struct {
	ID          string            `json:"id"`
	Domain      string            `json:"domain"`
	URL         string            `json:"url"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Duration    float64           `json:"duration_ms"`
	Environment Environment       `json:"environment"`
	Assets      map[string]*Asset `json:"assets"`
	Performance Performance       `json:"performance"`
	Security    Security          `json:"security"`
	DOM         DOMStats          `json:"dom"`
	AssetMap    *AssetMap         `json:"asset_map,omitempty"`

	pageHost   string
	pageSecure bool
	nextSeq    int
}

// Dependency records a render-blocking script.
type Dependency struct {
	AssetID   string   `json:"asset_id"`
	URL       string   `json:"url"`
	DependsOn []string `json:"depends_on"`
	Blocks    string   `json:"blocks"`
}

// CriticalAsset is one entry of the critical path.
type CriticalAsset struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	Type     AssetType `json:"type"`
	LoadTime float64   `json:"load_time_ms"`
}

// MapSecurity lists asset URLs with security issues.
type MapSecurity struct {
	MixedContent     []string `json:"mixed_content"`
	MissingIntegrity []string `json:"missing_integrity"`
	CrossOrigin      []string `json:"cross_origin"`
}

// AssetMap is the read-only aggregation built when a snapshot stops.
type AssetMap struct {
	ByType       map[AssetType][]string `json:"by_type"`
	ByDomain     map[string][]string    `json:"by_domain"`
	Dependencies []Dependency           `json:"dependencies"`
	CriticalPath []CriticalAsset        `json:"critical_path"`
	Security     MapSecurity            `json:"security"`
}
