package export

import (
	"fmt"
	"io"
	"sync"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/storage"
	"github.com/pagelens/pagelens/templates"
)

// EndpointGroup is the union of one category across all sources.
type EndpointGroup struct {
	Category endpoints.Category
	Values   []string
}

// Summary is the view model rendered by the text and PDF formats.
type Summary struct {
	Tool           string
	Version        string
	GeneratedAt    time.Time
	Selection      Selection
	Masked         bool
	Data           storage.Data
	EndpointTotal  int
	EndpointGroups []EndpointGroup
	Findings       []secrets.Finding
}

func summarize(d storage.Data, opts Options) Summary {
	sel := opts.Selection
	if sel == "" {
		sel = SelectAll
	}
	s := Summary{
		Tool:        defaults.ToolName,
		Version:     defaults.Version,
		GeneratedAt: opts.now().UTC(),
		Selection:   sel,
		Masked:      !opts.Unmasked,
		Data:        d,
		Findings:    findings(d),
	}
	for _, c := range endpoints.Categories() {
		seen := make(map[string]bool)
		var vals []string
		for _, e := range d.Endpoints {
			if e.Result == nil {
				continue
			}
			for _, v := range e.Result.Values(c) {
				if !seen[v] {
					seen[v] = true
					vals = append(vals, v)
				}
			}
		}
		if len(vals) > 0 {
			s.EndpointGroups = append(s.EndpointGroups, EndpointGroup{Category: c, Values: vals})
			s.EndpointTotal += len(vals)
		}
	}
	return s
}

var (
	summaryOnce sync.Once
	summaryTmpl *template.Template
	summaryErr  error
)

func summaryTemplate() (*template.Template, error) {
	summaryOnce.Do(func() {
		raw, err := templates.FS.ReadFile(templates.SummaryTemplate)
		if err != nil {
			summaryErr = fmt.Errorf("export: load summary template: %w", err)
			return
		}
		summaryTmpl, summaryErr = template.New("summary").Funcs(sprig.TxtFuncMap()).Parse(string(raw))
	})
	return summaryTmpl, summaryErr
}

func writeText(w io.Writer, d storage.Data, opts Options) error {
	tmpl, err := summaryTemplate()
	if err != nil {
		return err
	}
	return tmpl.Execute(w, summarize(d, opts))
}
