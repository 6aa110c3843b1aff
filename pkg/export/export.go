// Package export reshapes persisted state into report and tool-import
// formats.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
	"github.com/pagelens/pagelens/pkg/storage"
)

var (
	// ErrUnknownFormat is returned for an unsupported output format.
	ErrUnknownFormat = errors.New("export: unknown format")

	// ErrUnknownSelection is returned for an unsupported data selector.
	ErrUnknownSelection = errors.New("export: unknown data type")
)

// Format names an output format.
type Format string

const (
	FormatJSON       Format = "json"
	FormatCSV        Format = "csv"
	FormatBurp       Format = "burp"
	FormatLinkFinder Format = "linkfinder"
	FormatSARIF      Format = "sarif"
	FormatText       Format = "text"
	FormatPDF        Format = "pdf"
)

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatBurp, FormatLinkFinder, FormatSARIF, FormatText, FormatPDF}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Selection names the part of the data to export.
type Selection string

const (
	SelectAll       Selection = "all"
	SelectEndpoints Selection = "endpoints"
	SelectSecrets   Selection = "secrets"
	SelectDomains   Selection = "domains"
	SelectSnapshots Selection = "snapshots"
	SelectJSFiles   Selection = "jsfiles"
)

// Selections returns every supported selector.
func Selections() []Selection {
	return []Selection{SelectAll, SelectEndpoints, SelectSecrets, SelectDomains, SelectSnapshots, SelectJSFiles}
}

// ParseSelection validates a selector. Empty means all.
func ParseSelection(s string) (Selection, error) {
	sel := Selection(strings.ToLower(strings.TrimSpace(s)))
	if sel == "" {
		return SelectAll, nil
	}
	for _, known := range Selections() {
		if sel == known {
			return sel, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSelection, s)
}

func (s Selection) includes(part Selection) bool {
	return s == "" || s == SelectAll || s == part
}

// Options controls an export.
type Options struct {
	// Selection limits the exported data. Empty means all.
	Selection Selection

	// Unmasked exports raw secret values instead of masked ones.
	Unmasked bool

	// Now stamps generated documents. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Export writes data to w in format.
func Export(w io.Writer, data storage.Data, format Format, opts Options) error {
	if opts.Selection != "" {
		if _, err := ParseSelection(string(opts.Selection)); err != nil {
			return err
		}
	}
	d := prepare(data, opts)

	switch format {
	case FormatJSON:
		return writeJSON(w, d, opts)
	case FormatCSV:
		return writeCSV(w, d)
	case FormatBurp:
		return writeBurp(w, d)
	case FormatLinkFinder:
		return writeLinkFinder(w, d)
	case FormatSARIF:
		return writeSARIF(w, d)
	case FormatText:
		return writeText(w, d, opts)
	case FormatPDF:
		return writePDF(w, d, opts)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// prepare filters data by selection and applies secret masking.
func prepare(data storage.Data, opts Options) storage.Data {
	sel := opts.Selection
	var d storage.Data
	if sel.includes(SelectJSFiles) {
		d.JSFiles = data.JSFiles
	}
	if sel.includes(SelectEndpoints) {
		d.Endpoints = data.Endpoints
	}
	if sel.includes(SelectDomains) {
		d.Domains = data.Domains
	}
	if sel.includes(SelectSnapshots) {
		d.Snapshots = data.Snapshots
	}
	if sel.includes(SelectSecrets) {
		d.Secrets = make([]storage.SecretEntry, 0, len(data.Secrets))
		for _, e := range data.Secrets {
			fs := make([]secrets.Finding, len(e.Findings))
			for i, f := range e.Findings {
				if opts.Unmasked && f.Raw != "" {
					f.Value = f.Raw
				}
				fs[i] = f.Redacted()
			}
			e.Findings = fs
			d.Secrets = append(d.Secrets, e)
		}
	}

	if d.JSFiles == nil {
		d.JSFiles = make([]string, 0)
	}
	if d.Endpoints == nil {
		d.Endpoints = make([]storage.EndpointEntry, 0)
	}
	if d.Secrets == nil {
		d.Secrets = make([]storage.SecretEntry, 0)
	}
	if d.Snapshots == nil {
		d.Snapshots = make([]*snapshot.Snapshot, 0)
	}
	if d.Domains.Suspicious == nil {
		d.Domains.Suspicious = make([]domains.Record, 0)
	}
	return d
}

// findings flattens secret batches, filling in the source URL.
func findings(d storage.Data) []secrets.Finding {
	out := make([]secrets.Finding, 0)
	for _, e := range d.Secrets {
		for _, f := range e.Findings {
			if f.Source == "" {
				f.Source = e.URL
			}
			out = append(out, f)
		}
	}
	return out
}

type jsonDocument struct {
	Tool        string       `json:"tool"`
	Version     string       `json:"version"`
	GeneratedAt time.Time    `json:"generated_at"`
	Selection   Selection    `json:"selection"`
	Masked      bool         `json:"masked"`
	Data        storage.Data `json:"data"`
}

func writeJSON(w io.Writer, d storage.Data, opts Options) error {
	sel := opts.Selection
	if sel == "" {
		sel = SelectAll
	}
	enc := jsonutil.NewStreamEncoder(w)
	enc.SetIndent("  ")
	return enc.Encode(jsonDocument{
		Tool:        defaults.ToolName,
		Version:     defaults.Version,
		GeneratedAt: opts.now().UTC(),
		Selection:   sel,
		Masked:      !opts.Unmasked,
		Data:        d,
	})
}
