package export

import (
	"fmt"
	"io"
	"strings"

	gofpdf "github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pagelens/pagelens/pkg/finding"
	"github.com/pagelens/pagelens/pkg/storage"
)

// maxPDFRows bounds each table so a large capture still renders quickly.
const maxPDFRows = 500

type pdfReport struct {
	pdf   *gofpdf.Fpdf
	tr    func(string) string
	title cases.Caser
}

func writePDF(w io.Writer, d storage.Data, opts Options) error {
	s := summarize(d, opts)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s report", s.Tool), false)
	pdf.SetCreator(fmt.Sprintf("%s %s", s.Tool, s.Version), false)
	pdf.SetCreationDate(s.GeneratedAt)
	pdf.SetModificationDate(s.GeneratedAt)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	r := &pdfReport{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		title: cases.Title(language.English),
	}
	r.cover(s)
	r.endpoints(s)
	r.secrets(s)
	r.domains(s)
	r.snapshots(s)
	r.jsFiles(s)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("export: render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (r *pdfReport) text(s string) string {
	return r.tr(s)
}

func (r *pdfReport) header(title string) {
	r.pdf.SetFont("Helvetica", "B", 14)
	r.pdf.SetTextColor(30, 30, 30)
	r.pdf.CellFormat(0, 10, r.text(r.title.String(title)), "B", 1, "L", false, 0, "")
	r.pdf.Ln(3)
}

func (r *pdfReport) para(s string) {
	r.pdf.SetFont("Helvetica", "", 10)
	r.pdf.SetTextColor(80, 80, 80)
	r.pdf.MultiCell(0, 5, r.text(s), "", "L", false)
	r.pdf.Ln(2)
}

// table renders rows under a shaded header; widths are in mm.
func (r *pdfReport) table(head []string, widths []float64, rows [][]string) {
	r.pdf.SetFont("Helvetica", "B", 9)
	r.pdf.SetFillColor(230, 230, 230)
	r.pdf.SetTextColor(30, 30, 30)
	for i, h := range head {
		r.pdf.CellFormat(widths[i], 7, r.text(h), "1", 0, "L", true, 0, "")
	}
	r.pdf.Ln(-1)

	r.pdf.SetFont("Helvetica", "", 8)
	for n, row := range rows {
		if n == maxPDFRows {
			r.pdf.CellFormat(0, 6, r.text(fmt.Sprintf("... %d more rows", len(rows)-maxPDFRows)), "", 1, "L", false, 0, "")
			break
		}
		for i, cell := range row {
			r.pdf.CellFormat(widths[i], 6, r.text(fit(cell, widths[i])), "1", 0, "L", false, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.pdf.Ln(4)
}

// fit clips a cell to roughly what fits in width mm at 8pt.
func fit(s string, width float64) string {
	n := int(width / 1.6)
	if n < 4 {
		n = 4
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func (r *pdfReport) cover(s Summary) {
	r.pdf.AddPage()
	r.pdf.SetFont("Helvetica", "B", 22)
	r.pdf.SetTextColor(20, 20, 20)
	r.pdf.CellFormat(0, 14, r.text(strings.ToUpper(s.Tool)+" Report"), "", 1, "L", false, 0, "")
	r.pdf.Ln(2)

	r.para(fmt.Sprintf("Generated %s by %s %s. Selection: %s.",
		s.GeneratedAt.Format("2006-01-02 15:04:05 MST"), s.Tool, s.Version, s.Selection))
	if !s.Masked {
		r.para("Secret values in this document are NOT masked.")
	}

	r.table([]string{"Item", "Count"}, []float64{80, 30}, [][]string{
		{"Script files", fmt.Sprint(len(s.Data.JSFiles))},
		{"Endpoint sources", fmt.Sprint(len(s.Data.Endpoints))},
		{"Unique endpoints", fmt.Sprint(s.EndpointTotal)},
		{"Secrets", fmt.Sprint(len(s.Findings))},
		{"Suspicious domains", fmt.Sprint(len(s.Data.Domains.Suspicious))},
		{"Snapshots", fmt.Sprint(len(s.Data.Snapshots))},
	})

	bySev := make(map[finding.Severity]int)
	for _, f := range s.Findings {
		bySev[f.Severity]++
	}
	var rows [][]string
	for _, sev := range finding.All() {
		if bySev[sev] > 0 {
			rows = append(rows, []string{r.title.String(sev.String()), fmt.Sprint(bySev[sev])})
		}
	}
	if len(rows) > 0 {
		r.table([]string{"Severity", "Secrets"}, []float64{80, 30}, rows)
	}
}

func (r *pdfReport) endpoints(s Summary) {
	if len(s.EndpointGroups) == 0 {
		return
	}
	r.pdf.AddPage()
	r.header("discovered endpoints")
	var rows [][]string
	for _, g := range s.EndpointGroups {
		for _, v := range g.Values {
			rows = append(rows, []string{string(g.Category), v})
		}
	}
	r.table([]string{"Category", "Value"}, []float64{30, 160}, rows)
}

func (r *pdfReport) secrets(s Summary) {
	if len(s.Findings) == 0 {
		return
	}
	r.pdf.AddPage()
	r.header("exposed secrets")
	rows := make([][]string, 0, len(s.Findings))
	for _, f := range s.Findings {
		rows = append(rows, []string{f.Severity.String(), f.Type, f.Value, fmt.Sprintf("%s:%d", f.Source, f.Line)})
	}
	r.table([]string{"Severity", "Type", "Value", "Location"}, []float64{20, 45, 55, 70}, rows)
}

func (r *pdfReport) domains(s Summary) {
	if len(s.Data.Domains.Suspicious) == 0 {
		return
	}
	r.pdf.AddPage()
	r.header("suspicious domains")
	st := s.Data.Domains.Stats
	r.para(fmt.Sprintf("%d domains observed: %d local, %d third-party, %d insecure.",
		st.Total, st.Local, st.ThirdParty, st.Insecure))
	rows := make([][]string, 0, len(s.Data.Domains.Suspicious))
	for _, d := range s.Data.Domains.Suspicious {
		cats := make([]string, len(d.Categories))
		for i, c := range d.Categories {
			cats[i] = string(c)
		}
		rows = append(rows, []string{d.Hostname, fmt.Sprint(d.RiskScore), strings.Join(cats, ", "), fmt.Sprint(d.RequestCount)})
	}
	r.table([]string{"Host", "Risk", "Categories", "Requests"}, []float64{70, 15, 85, 20}, rows)
}

func (r *pdfReport) snapshots(s Summary) {
	if len(s.Data.Snapshots) == 0 {
		return
	}
	r.pdf.AddPage()
	r.header("page snapshots")
	rows := make([][]string, 0, len(s.Data.Snapshots))
	for _, snap := range s.Data.Snapshots {
		p := snap.Performance
		rows = append(rows, []string{
			snap.ID,
			fmt.Sprint(p.RequestCount),
			fmt.Sprint(p.TotalSize),
			fmt.Sprintf("%.0f", p.LoadTime),
			fmt.Sprintf("%.1f%%", p.HTTPSPercent),
			fmt.Sprint(len(snap.Security.MixedContent)),
		})
	}
	r.table([]string{"Snapshot", "Requests", "Bytes", "Load ms", "HTTPS", "Mixed"},
		[]float64{60, 22, 28, 25, 25, 30}, rows)
}

func (r *pdfReport) jsFiles(s Summary) {
	if len(s.Data.JSFiles) == 0 {
		return
	}
	r.pdf.AddPage()
	r.header("script files")
	rows := make([][]string, 0, len(s.Data.JSFiles))
	for _, u := range s.Data.JSFiles {
		rows = append(rows, []string{u})
	}
	r.table([]string{"URL"}, []float64{190}, rows)
}
