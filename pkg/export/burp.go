package export

import (
	"io"
	"net/url"
	"sort"
	"strconv"

	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/storage"
)

// BurpItem is one entry of the Burp Suite import array.
type BurpItem struct {
	URL      string `json:"url"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Path     string `json:"path"`
	Method   string `json:"method"`
	Source   string `json:"source"`
}

// LinkFinderItem is one entry of the LinkFinder-compatible array.
type LinkFinderItem struct {
	Link     string `json:"link"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

func burpItem(raw, source string) (BurpItem, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return BurpItem{}, false
	}
	port, _ := strconv.Atoi(u.Port())
	if port == 0 {
		switch u.Scheme {
		case "https", "wss":
			port = 443
		default:
			port = 80
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return BurpItem{
		URL:      u.String(),
		Host:     u.Hostname(),
		Port:     port,
		Protocol: u.Scheme,
		Path:     path,
		Method:   "GET",
		Source:   source,
	}, true
}

// BurpItems builds the Burp import list from resolved endpoints and script
// URLs, one item per URL.
func BurpItems(d storage.Data) []BurpItem {
	seen := make(map[string]bool)
	out := make([]BurpItem, 0)
	add := func(raw, source string) {
		item, ok := burpItem(raw, source)
		if !ok || seen[item.URL] {
			return
		}
		seen[item.URL] = true
		out = append(out, item)
	}
	for _, e := range d.Endpoints {
		if e.Result == nil {
			continue
		}
		for _, u := range endpoints.Resolve(e.Result, e.URL) {
			add(u, e.URL)
		}
	}
	for _, u := range d.JSFiles {
		add(u, "jsfile")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// LinkFinderItems lists every extracted value with its category.
func LinkFinderItems(d storage.Data) []LinkFinderItem {
	type k struct{ link, cat, src string }
	seen := make(map[k]bool)
	out := make([]LinkFinderItem, 0)
	for _, e := range d.Endpoints {
		if e.Result == nil {
			continue
		}
		for _, c := range endpoints.Categories() {
			for _, v := range e.Result.Values(c) {
				key := k{v, string(c), e.URL}
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, LinkFinderItem{Link: v, Category: string(c), Source: e.URL})
			}
		}
	}
	return out
}

func writeBurp(w io.Writer, d storage.Data) error {
	enc := jsonutil.NewStreamEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(BurpItems(d))
}

func writeLinkFinder(w io.Writer, d storage.Data) error {
	enc := jsonutil.NewStreamEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(LinkFinderItems(d))
}
