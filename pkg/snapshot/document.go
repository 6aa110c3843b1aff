package snapshot

import (
	"io"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Ref is an external asset reference harvested from a document.
type Ref struct {
	URL  string
	Type AssetType
}

// CaptureDocument harvests asset references, inline content, element
// counts and a meta CSP from the page HTML into the active capture.
// It returns the absolute external references in document order, or
// false when no capture is active.
func (e *Engine) CaptureDocument(doc string) ([]Ref, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.active
	if snap == nil {
		return nil, false
	}
	base, _ := url.Parse(snap.URL)

	z := html.NewTokenizer(strings.NewReader(doc))
	var dom DOMStats
	var refs []Ref
	addRef := func(ref string, typ AssetType, meta map[string]string) {
		if r, ok := e.addRef(base, ref, typ, meta); ok {
			refs = append(refs, r)
		}
	}
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				e.logger.Warn("document tokenizer stopped", slog.Any("error", err))
			}
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		tok := z.Token()
		attrs := attrMap(tok.Attr)
		dom.Elements++

		switch tok.DataAtom {
		case atom.Script:
			dom.Scripts++
			if src := attrs["src"]; src != "" {
				addRef(src, TypeScript, pick(attrs, "async", "defer", "type", "integrity", "crossorigin"))
				continue
			}
			dom.InlineScripts++
			if tt == html.StartTagToken {
				if body := nextText(z); strings.TrimSpace(body) != "" {
					e.addInlineLocked(TypeScript, body, pick(attrs, "type", "nonce"))
				}
			}
		case atom.Style:
			if tt == html.StartTagToken {
				if body := nextText(z); strings.TrimSpace(body) != "" {
					e.addInlineLocked(TypeStylesheet, body, pick(attrs, "media", "nonce"))
				}
			}
		case atom.Link:
			rel := strings.ToLower(attrs["rel"])
			href := attrs["href"]
			switch {
			case href == "":
			case hasToken(rel, "stylesheet"):
				dom.Stylesheets++
				addRef(href, TypeStylesheet, pick(attrs, "media", "integrity", "crossorigin"))
			case hasToken(rel, "icon"):
				addRef(href, TypeImage, pick(attrs, "rel"))
			case hasToken(rel, "manifest"):
				addRef(href, TypeData, pick(attrs, "rel"))
			case hasToken(rel, "preload"), hasToken(rel, "modulepreload"):
				addRef(href, TypeForResource(attrs["as"]), pick(attrs, "rel", "as", "integrity", "crossorigin"))
			}
		case atom.Img:
			dom.Images++
			if src := attrs["src"]; src != "" {
				addRef(src, TypeImage, pick(attrs, "loading"))
			}
		case atom.Iframe:
			dom.Iframes++
			if src := attrs["src"]; src != "" {
				addRef(src, TypeDocument, pick(attrs, "sandbox"))
			}
		case atom.Source, atom.Video, atom.Audio:
			if src := attrs["src"]; src != "" {
				addRef(src, TypeMedia, nil)
			}
		case atom.A:
			dom.Links++
		case atom.Form:
			dom.Forms++
		case atom.Meta:
			if strings.EqualFold(attrs["http-equiv"], "content-security-policy") {
				e.setCSPLocked(attrs["content"])
			}
		}
	}

	snap.DOM = dom
	return refs, true
}

func (e *Engine) addRef(base *url.URL, ref string, typ AssetType, meta map[string]string) (Ref, bool) {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	for _, skip := range []string{"data:", "javascript:", "blob:", "about:"} {
		if strings.HasPrefix(lower, skip) {
			return Ref{}, false
		}
	}
	u, err := url.Parse(ref)
	if err != nil {
		e.logger.Warn("dropping asset with invalid url", slog.String("url", ref))
		return Ref{}, false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	u.Fragment, u.RawFragment = "", ""
	if typ == TypeUnknown {
		typ = ""
	}
	abs := u.String()
	id, ok := e.addAssetLocked(abs, typ, meta)
	if !ok {
		return Ref{}, false
	}
	return Ref{URL: abs, Type: e.active.Assets[id].Type}, true
}

func attrMap(attrs []html.Attribute) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[strings.ToLower(a.Key)] = a.Val
	}
	return out
}

func pick(attrs map[string]string, keys ...string) map[string]string {
	var out map[string]string
	for _, k := range keys {
		v, ok := attrs[k]
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(keys))
		}
		out[k] = v
	}
	return out
}

func nextText(z *html.Tokenizer) string {
	if z.Next() != html.TextToken {
		return ""
	}
	return string(z.Text())
}

func hasToken(list, tok string) bool {
	for _, f := range strings.Fields(list) {
		if f == tok {
			return true
		}
	}
	return false
}
