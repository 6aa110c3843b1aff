package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/observer"
	"github.com/pagelens/pagelens/pkg/snapshot"
)

// probeJS collects the DOM, navigation timing, resource timing and the
// browsing environment in one round trip.
const probeJS = `
(function() {
    function bytes(store) {
        let n = 0;
        try {
            for (let i = 0; i < store.length; i++) {
                const k = store.key(i);
                n += k.length + (store.getItem(k) || '').length;
            }
        } catch (e) {}
        return n;
    }
    const nav = performance.getEntriesByType('navigation')[0];
    const meta = document.querySelector('meta[http-equiv="Content-Security-Policy" i]');
    return JSON.stringify({
        html: document.documentElement ? document.documentElement.outerHTML : '',
        dom_content_loaded: nav ? nav.domContentLoadedEventEnd : 0,
        load: nav ? nav.loadEventEnd : 0,
        csp: meta ? (meta.getAttribute('content') || '') : '',
        resources: performance.getEntriesByType('resource').map(function(e) {
            return {url: e.name, type: e.initiatorType, size: e.transferSize || e.encodedBodySize || 0, duration: e.duration};
        }),
        environment: {
            viewport: window.innerWidth + 'x' + window.innerHeight,
            locale: navigator.language || '',
            user_agent: navigator.userAgent,
            local_storage_bytes: bytes(window.localStorage),
            session_storage_bytes: bytes(window.sessionStorage),
            cookie_bytes: (document.cookie || '').length
        }
    });
})()
`

type resourceEntry struct {
	URL      string  `json:"url"`
	Type     string  `json:"type"`
	Size     float64 `json:"size"`
	Duration float64 `json:"duration"`
}

// pageProbe is the decoded result of probeJS.
type pageProbe struct {
	HTML             string          `json:"html"`
	DOMContentLoaded float64         `json:"dom_content_loaded"`
	Load             float64         `json:"load"`
	CSP              string          `json:"csp"`
	Resources        []resourceEntry      `json:"resources"`
	Environment      snapshot.Environment `json:"environment"`
}

func (s *Session) probe(ctx context.Context) (*pageProbe, error) {
	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(probeJS, &raw)); err != nil {
		return nil, err
	}
	return decodeProbe(raw)
}

func decodeProbe(raw string) (*pageProbe, error) {
	var p pageProbe
	if err := jsonutil.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("browser: decode probe: %w", err)
	}
	return &p, nil
}

// observations orders the probe as document, resource timings, then ready.
// headerCSP takes precedence over a meta policy.
func (p *pageProbe) observations(headerCSP string) []observer.Observation {
	csp := headerCSP
	if csp == "" {
		csp = p.CSP
	}

	out := make([]observer.Observation, 0, len(p.Resources)+2)
	if p.HTML != "" {
		out = append(out, observer.Observation{Kind: observer.KindDocument, HTML: p.HTML, CSP: csp})
	}
	for _, r := range p.Resources {
		if r.URL == "" {
			continue
		}
		out = append(out, observer.Observation{
			Kind:         observer.KindTiming,
			URL:          r.URL,
			ResourceType: resourceType(r.Type),
			Size:         int64(r.Size),
			LoadTime:     r.Duration,
		})
	}
	env := p.Environment
	out = append(out, observer.Observation{
		Kind:             observer.KindReady,
		Environment:      &env,
		DOMContentLoaded: p.DOMContentLoaded,
		LoadTime:         p.Load,
		CSP:              csp,
	})
	return out
}
