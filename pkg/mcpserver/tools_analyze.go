package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/export"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
)

// ═══════════════════════════════════════════════════════════════════════════
// compare_snapshots
// ═══════════════════════════════════════════════════════════════════════════

type compareArgs struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

type compareResponse struct {
	Before   snapshotSummary   `json:"before"`
	After    snapshotSummary   `json:"after"`
	Added    []string          `json:"added"`
	Removed  []string          `json:"removed"`
	Modified []snapshot.Change `json:"modified"`
	Delta    snapshot.Delta    `json:"delta"`
}

func (s *Server) addCompareSnapshotsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "compare_snapshots",
			Title: "Compare Snapshots",
			Description: `Diff two stored snapshots by asset URL: assets added, removed, and
modified (size or load time changed), plus the load time, total size and
request count deltas (after minus before).

EXAMPLE INPUT: {"before": "example.com_1772366400000", "after": "example.com_1772366460000"}`,
			InputSchema: objectSchema(map[string]any{
				"before": stringProp("Snapshot id of the earlier capture."),
				"after":  stringProp("Snapshot id of the later capture."),
			}, "before", "after"),
			Annotations: readOnly(),
		},
		s.handleCompareSnapshots,
	)
}

func (s *Server) handleCompareSnapshots(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args compareArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	if args.Before == "" || args.After == "" {
		return errorResult("'before' and 'after' snapshot ids are required",
			"Call get_snapshots to list valid ids."), nil
	}
	cmp, err := s.store.CompareSnapshots(args.Before, args.After)
	if errors.Is(err, snapshot.ErrSnapshotNotFound) {
		return errorResult(err.Error(), "Call get_snapshots to list valid ids."), nil
	}
	if err != nil {
		return nil, err
	}

	resp := compareResponse{
		Before:   summarizeSnapshot(cmp.Before),
		After:    summarizeSnapshot(cmp.After),
		Added:    make([]string, 0, len(cmp.Added)),
		Removed:  make([]string, 0, len(cmp.Removed)),
		Modified: cmp.Modified,
		Delta:    cmp.Delta,
	}
	for _, a := range cmp.Added {
		resp.Added = append(resp.Added, a.URL)
	}
	for _, a := range cmp.Removed {
		resp.Removed = append(resp.Removed, a.URL)
	}
	if resp.Modified == nil {
		resp.Modified = make([]snapshot.Change, 0)
	}
	return jsonResult(resp)
}

// ═══════════════════════════════════════════════════════════════════════════
// export_data
// ═══════════════════════════════════════════════════════════════════════════

type exportArgs struct {
	Format string `json:"format"`
	Data   string `json:"data"`
}

func textFormats() []string {
	var out []string
	for _, f := range export.Formats() {
		if f != export.FormatPDF {
			out = append(out, string(f))
		}
	}
	return out
}

func (s *Server) addExportDataTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "export_data",
			Title: "Export Stored Data",
			Description: `Render stored data in a report or tool-import format. Secrets stay masked.

FORMATS: json (full document), csv, burp (Burp Suite import), linkfinder,
sarif (2.1.0, secrets only), text (human summary). PDF is available from the
CLI only.

EXAMPLE INPUTS:
• {"format": "sarif"}
• {"format": "csv", "data": "endpoints"}`,
			InputSchema: objectSchema(map[string]any{
				"format": stringProp("Output format.", textFormats()...),
				"data":   stringProp("Which data to include (default all).", enumStrings(export.Selections())...),
			}, "format"),
			Annotations: readOnly(),
		},
		s.handleExportData,
	)
}

func (s *Server) handleExportData(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args exportArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	format, err := export.ParseFormat(args.Format)
	if err != nil || format == export.FormatPDF {
		return errorResult(fmt.Sprintf("unsupported format %q", args.Format),
			fmt.Sprintf("Use one of: %v.", textFormats())), nil
	}
	sel, err := export.ParseSelection(args.Data)
	if err != nil {
		return errorResult(err.Error(), fmt.Sprintf("Use one of: %v.", enumStrings(export.Selections()))), nil
	}

	var buf bytes.Buffer
	if err := export.Export(&buf, s.store.Dump(), format, export.Options{Selection: sel}); err != nil {
		return nil, fmt.Errorf("export %s: %w", format, err)
	}
	return textResult(buf.String()), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// scan_text
// ═══════════════════════════════════════════════════════════════════════════

type scanTextArgs struct {
	Text        string `json:"text"`
	Source      string `json:"source"`
	ContentType string `json:"content_type"`
}

func (s *Server) addScanTextTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "scan_text",
			Title: "Scan Text for Secrets",
			Description: `Run the secret pattern catalog over supplied text. Nothing is stored.
Comments are ignored for javascript, html and css. Values are masked.

EXAMPLE INPUT: {"text": "const key = 'AKIA...';", "content_type": "javascript"}`,
			InputSchema: objectSchema(map[string]any{
				"text":   stringProp("Content to scan."),
				"source": stringProp("Optional URL or file name, used to guess the content type."),
				"content_type": stringProp("Comment syntax to ignore.",
					string(secrets.ContentJavaScript), string(secrets.ContentHTML),
					string(secrets.ContentCSS), string(secrets.ContentOther)),
			}, "text"),
			Annotations: readOnly(),
		},
		s.handleScanText,
	)
}

func (s *Server) handleScanText(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args scanTextArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	ct := secrets.ContentType(lower(args.ContentType))
	if ct == "" {
		ct = secrets.ContentTypeFor(args.Source)
	}

	res := secrets.NewScanner(s.config.ScannerOptions...).Scan(args.Text, args.Source, ct)
	findings := make([]secrets.Finding, 0, len(res.Findings))
	for _, f := range res.Findings {
		findings = append(findings, f.Redacted())
	}
	res.Findings = findings
	return jsonResult(res)
}

// ═══════════════════════════════════════════════════════════════════════════
// extract_endpoints
// ═══════════════════════════════════════════════════════════════════════════

type extractArgs struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	BaseURL string `json:"base_url"`
}

type extractResponse struct {
	*endpoints.Result
	Resolved []string `json:"resolved,omitempty"`
}

func (s *Server) addExtractEndpointsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "extract_endpoints",
			Title: "Extract Endpoints from Text",
			Description: `Extract URLs, API endpoints, routes, GraphQL, WebSocket, upload and
documentation references from supplied JavaScript or HTML. Nothing is stored.
With base_url, URL-like values are also returned resolved to absolute URLs.

EXAMPLE INPUT: {"text": "fetch('/api/v1/users')", "base_url": "https://example.com/"}`,
			InputSchema: objectSchema(map[string]any{
				"text":     stringProp("Content to analyze."),
				"source":   stringProp("Optional URL or file name recorded in the result."),
				"base_url": stringProp("Optional URL to resolve relative values against."),
			}, "text"),
			Annotations: readOnly(),
		},
		s.handleExtractEndpoints,
	)
}

func (s *Server) handleExtractEndpoints(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args extractArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	res := endpoints.NewExtractor(s.config.ExtractorOptions...).Extract(args.Text, args.Source)
	resp := extractResponse{Result: res}
	if args.BaseURL != "" {
		resp.Resolved = endpoints.Resolve(res, args.BaseURL)
	}
	return jsonResult(resp)
}

// ═══════════════════════════════════════════════════════════════════════════
// categorize_url
// ═══════════════════════════════════════════════════════════════════════════

type categorizeArgs struct {
	URL          string `json:"url"`
	PageURL      string `json:"page_url"`
	ResourceType string `json:"resource_type"`
}

type categorizeResponse struct {
	domains.Record
	ShouldAlert bool `json:"should_alert"`
}

func (s *Server) addCategorizeURLTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "categorize_url",
			Title: "Categorize URL",
			Description: `Classify the host of a URL relative to a page: local or third-party,
categories (cdn, analytics, advertising, social, payment, security,
development, ...) and risk score 0-10. Nothing is stored.

EXAMPLE INPUT: {"url": "http://ads.tracker.example/pixel.gif", "page_url": "https://shop.example.com/"}`,
			InputSchema: objectSchema(map[string]any{
				"url":           stringProp("URL whose host to categorize."),
				"page_url":      stringProp("The page the URL was seen on. Defaults to the URL itself."),
				"resource_type": stringProp("Optional resource type (script, image, xhr, ...)."),
			}, "url"),
			Annotations: readOnly(),
		},
		s.handleCategorizeURL,
	)
}

func (s *Server) handleCategorizeURL(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args categorizeArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	page := args.PageURL
	if page == "" {
		page = args.URL
	}
	c := domains.New(page, s.config.DomainOptions...)
	rec, err := c.Categorize(args.URL, args.ResourceType)
	if err != nil {
		return errorResult(err.Error(), "Pass an absolute http(s) URL, e.g. https://cdn.example.net/lib.js."), nil
	}
	return jsonResult(categorizeResponse{Record: rec, ShouldAlert: c.ShouldAlert(rec)})
}
