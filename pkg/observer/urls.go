package observer

import (
	"net/url"
	"path"
	"strings"
)

var skippedSchemes = []string{
	"data:", "blob:", "javascript:", "about:", "mailto:", "tel:",
	"chrome:", "chrome-extension:", "moz-extension:", "file:",
}

// NormalizeURL resolves raw against base and returns an absolute network
// URL without fragment. Protocol-relative URLs take the scheme of base.
// It reports false for empty input, non-network schemes and URLs that
// cannot be parsed.
func NormalizeURL(raw, base string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "#" {
		return "", false
	}
	lower := strings.ToLower(raw)
	for _, s := range skippedSchemes {
		if strings.HasPrefix(lower, s) {
			return "", false
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() || u.Host == "" {
		b, err := url.Parse(base)
		if err != nil || b.Host == "" {
			return "", false
		}
		u = b.ResolveReference(u)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	u.Fragment, u.RawFragment = "", ""
	return u.String(), true
}

var jsExtensions = map[string]bool{".js": true, ".mjs": true, ".cjs": true, ".jsx": true}

var jsQueryHints = []string{"callback", "jsonp", "cb"}

// Path fragments typical of bundles and well-known libraries.
var jsNameHints = []string{
	"/js/", "/javascript/", "/scripts/", "/static/js/", "/_next/static/",
	"/assets/js/", "/bundles/", "/chunks/",
	"bundle", "chunk", "webpack", "runtime~", "polyfill",
	"jquery", "react", "angular", "vue.", "lodash", "gtag", "gtm",
	"analytics", "recaptcha", "sdk.", ".min.",
}

// Extensions that rule out JavaScript even when a name hint matches.
var nonJSExtensions = map[string]bool{
	".css": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".ico": true, ".woff": true, ".woff2": true,
	".ttf": true, ".json": true, ".map": true, ".html": true, ".htm": true,
	".mp4": true, ".webm": true, ".txt": true, ".xml": true,
}

// IsJavaScript reports whether rawURL looks like a JavaScript resource by
// extension, a JSONP query hint or bundle and library naming.
func IsJavaScript(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	ext := path.Ext(p)
	if jsExtensions[ext] {
		return true
	}
	if nonJSExtensions[ext] {
		return false
	}

	q := u.Query()
	for _, h := range jsQueryHints {
		if q.Has(h) {
			return true
		}
	}
	for _, h := range jsNameHints {
		if strings.Contains(p, h) {
			return true
		}
	}
	return false
}
