package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/storage"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"type", "category", "value", "source", "severity", "line", "detail", "timestamp"}

// sanitizeCSV prevents formula execution when the file is opened in a
// spreadsheet.
func sanitizeCSV(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeCSV(w io.Writer, d storage.Data) error {
	cw := csv.NewWriter(w)
	row := func(fields ...string) error {
		for i := range fields {
			fields[i] = sanitizeCSV(fields[i])
		}
		return cw.Write(fields)
	}

	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, u := range d.JSFiles {
		if err := row("jsfile", "", u, "", "", "", "", ""); err != nil {
			return err
		}
	}
	for _, e := range d.Endpoints {
		if e.Result == nil {
			continue
		}
		for _, c := range endpoints.Categories() {
			for _, v := range e.Result.Values(c) {
				if err := row("endpoint", string(c), v, e.URL, "", "", "", stamp(e.Timestamp)); err != nil {
					return err
				}
			}
		}
	}
	for _, f := range findings(d) {
		if err := row("secret", string(f.Category), f.Value, f.Source, f.Severity.String(),
			strconv.Itoa(f.Line), f.Type, stamp(f.Timestamp)); err != nil {
			return err
		}
	}
	for _, r := range d.Domains.Suspicious {
		cats := make([]string, len(r.Categories))
		for i, c := range r.Categories {
			cats[i] = string(c)
		}
		if err := row("domain", strings.Join(cats, "|"), r.Hostname, "", "",
			"", fmt.Sprintf("risk=%d", r.RiskScore), stamp(r.FirstSeen)); err != nil {
			return err
		}
	}
	for _, s := range d.Snapshots {
		for _, a := range s.Ordered() {
			if a.Inline {
				continue
			}
			detail := fmt.Sprintf("size=%d load_ms=%.1f", a.Size, a.LoadTime)
			if err := row("asset", string(a.Type), a.URL, s.ID, "", "", detail, stamp(a.FirstSeen)); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
