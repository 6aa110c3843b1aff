package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/finding"
	"github.com/pagelens/pagelens/pkg/observer"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
	"github.com/pagelens/pagelens/pkg/storage"
	"github.com/pagelens/pagelens/pkg/strutil"
)

// printer groups digits in counts and sizes.
var printer = message.NewPrinter(language.English)

// maxListed caps per-section lists in console summaries.
const maxListed = 15

func row(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %s\n", LabelStyle.Render(fmt.Sprintf("%-20s", label)), ValueStyle.Render(printer.Sprint(value)))
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("> "+title))
}

// FormatBytes renders a byte count as B, KB or MB.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return printer.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return printer.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return printer.Sprintf("%d B", n)
	}
}

// FindingLine renders one secret finding on a single line.
func FindingLine(f secrets.Finding) string {
	loc := f.Source
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, f.Line)
	}
	return fmt.Sprintf("%s %s %s",
		Bracketed(
			BracketPart{Text: string(f.Severity), Style: SeverityStyle(f.Severity)},
			BracketPart{Text: f.Type, Style: CategoryStyle},
		),
		ValueStyle.Render(f.Value),
		URLStyle.Render(loc))
}

// DomainLine renders one suspicious domain record.
func DomainLine(r domains.Record) string {
	cats := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		cats[i] = string(c)
	}
	scheme := "https"
	if !r.Secure {
		scheme = "http"
	}
	return fmt.Sprintf("%s %s %s",
		Bracketed(BracketPart{Text: fmt.Sprintf("risk %d", r.RiskScore), Style: RiskStyle(r.RiskScore)}),
		ValueStyle.Render(r.Hostname),
		LabelStyle.Render(fmt.Sprintf("(%s; %s)", scheme, strings.Join(cats, ", "))))
}

// RenderReport writes the end-of-capture summary for one page.
func RenderReport(w io.Writer, r observer.Report) {
	heading(w, "Capture "+r.PageURL)
	row(w, "Snapshot", r.SnapshotID)
	row(w, "Ended", r.EndReason)
	row(w, "Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String())
	row(w, "Observations", r.Observations)
	row(w, "Assets", r.Assets)
	row(w, "Script files", r.JSFiles)
	if r.FetchErrors > 0 {
		row(w, "Fetch errors", r.FetchErrors)
	}
	row(w, "Load time", fmt.Sprintf("%.0f ms", r.Performance.LoadTime))
	row(w, "Total size", FormatBytes(r.Performance.TotalSize))
	row(w, "HTTPS", fmt.Sprintf("%.0f%%", r.Performance.HTTPSPercent))

	heading(w, "Endpoints")
	row(w, "Total", r.EndpointTotal)
	for _, c := range endpoints.Categories() {
		if n := r.Endpoints[c]; n > 0 {
			row(w, "  "+string(c), n)
		}
	}

	renderSecretStats(w, r.Secrets)

	heading(w, "Domains")
	row(w, "Total", r.Domains.Total)
	row(w, "Third-party", r.Domains.ThirdParty)
	row(w, "Insecure", r.Domains.Insecure)
	row(w, "Alerts", r.Domains.Alerts)
	for i, d := range r.Suspicious {
		if i == maxListed {
			fmt.Fprintf(w, "  %s\n", LabelStyle.Render(fmt.Sprintf("... %d more", len(r.Suspicious)-maxListed)))
			break
		}
		fmt.Fprintf(w, "  %s\n", DomainLine(d))
	}

	if r.SinkDisabled {
		fmt.Fprintln(w)
		fmt.Fprintln(w, WarningStyle.Render("  [!] storage failed during capture; results above were not all saved"))
	}
}

func renderSecretStats(w io.Writer, st secrets.Stats) {
	heading(w, "Secrets")
	row(w, "Total", st.Total)
	for _, sev := range finding.All() {
		if n := st.BySeverity[sev]; n > 0 {
			fmt.Fprintf(w, "  %s %s\n", SeverityStyle(sev).Render(fmt.Sprintf("%-8s", sev)), ValueStyle.Render(printer.Sprint(n)))
		}
	}
}

// RenderStats writes the store totals.
func RenderStats(w io.Writer, st storage.Stats) {
	heading(w, "Store")
	row(w, "Script files", st.JSFiles)
	row(w, "Endpoint sources", st.EndpointSources)
	row(w, "Endpoints", st.Endpoints)
	row(w, "Secret sources", st.SecretSources)
	row(w, "Secrets", st.Secrets)
	for _, sev := range finding.All() {
		if n := st.BySeverity[sev]; n > 0 {
			row(w, "  "+string(sev), n)
		}
	}
	row(w, "Snapshots", st.Snapshots)
	row(w, "Suspicious domains", st.SuspiciousDomains)
	if !st.LastUpdated.IsZero() {
		row(w, "Last updated", st.LastUpdated.UTC().Format("2006-01-02 15:04:05 MST"))
	}
}

// RenderScan writes what a static scan of one source found.
func RenderScan(w io.Writer, source string, res *endpoints.Result, found []secrets.Finding) {
	heading(w, source)
	if res != nil {
		for _, c := range endpoints.Categories() {
			vals := res.Values(c)
			if len(vals) == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s %s\n", Bracketed(BracketPart{Text: string(c), Style: CategoryStyle}), ValueStyle.Render(printer.Sprint(len(vals))))
			for i, v := range vals {
				if i == maxListed {
					fmt.Fprintf(w, "    %s\n", LabelStyle.Render(fmt.Sprintf("... %d more", len(vals)-maxListed)))
					break
				}
				fmt.Fprintf(w, "    %s\n", strutil.Truncate(v, 120))
			}
		}
	}
	for _, f := range found {
		fmt.Fprintf(w, "  %s\n", FindingLine(f))
	}
	if (res == nil || res.Total() == 0) && len(found) == 0 {
		fmt.Fprintf(w, "  %s\n", LabelStyle.Render("nothing found"))
	}
}

// RenderComparison writes a snapshot diff.
func RenderComparison(w io.Writer, c *snapshot.Comparison) {
	heading(w, fmt.Sprintf("%s -> %s", c.Before, c.After))
	for _, a := range c.Added {
		fmt.Fprintf(w, "  %s %s %s\n", AddedStyle.Render("+"), a.URL, LabelStyle.Render(string(a.Type)))
	}
	for _, a := range c.Removed {
		fmt.Fprintf(w, "  %s %s %s\n", RemovedStyle.Render("-"), a.URL, LabelStyle.Render(string(a.Type)))
	}
	for _, m := range c.Modified {
		fmt.Fprintf(w, "  %s %s %s\n", ChangedStyle.Render("~"), m.URL,
			LabelStyle.Render(fmt.Sprintf("%s -> %s, %.0f -> %.0f ms",
				FormatBytes(m.SizeBefore), FormatBytes(m.SizeAfter), m.LoadTimeBefore, m.LoadTimeAfter)))
	}
	if len(c.Added)+len(c.Removed)+len(c.Modified) == 0 {
		fmt.Fprintf(w, "  %s\n", LabelStyle.Render("no asset changes"))
	}

	heading(w, "Delta")
	row(w, "Load time", printer.Sprintf("%+.0f ms", c.Delta.LoadTime))
	row(w, "Total size", printer.Sprintf("%+d B", c.Delta.TotalSize))
	row(w, "Requests", printer.Sprintf("%+d", c.Delta.RequestCount))
}
