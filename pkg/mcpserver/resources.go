package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/export"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/secrets"
)

// registerResources adds the read-only reference resources.
func (s *Server) registerResources() {
	s.addVersionResource()
	s.addSecretCatalogResource()
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := jsonutil.MarshalIndent(v, "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: defaults.ContentTypeJSON,
			Text:     string(data),
		}},
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// pagelens://version
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addVersionResource() {
	const uri = "pagelens://version"
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         uri,
			Name:        "pagelens version",
			Description: "Server version, tools, export formats and categories.",
			MIMEType:    defaults.ContentTypeJSON,
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return jsonResource(uri, map[string]any{
				"name":    defaults.ToolName,
				"version": defaults.Version,
				"tools": []string{
					"get_stats", "get_endpoints", "get_secrets", "get_domains",
					"get_snapshots", "compare_snapshots", "export_data",
					"scan_text", "extract_endpoints", "categorize_url",
				},
				"export_formats":      enumStrings(export.Formats()),
				"endpoint_categories": enumStrings(endpoints.Categories()),
				"domain_categories":   enumStrings(domains.Categories()),
				"store":               s.store.Path(),
			})
		},
	)
}

// ═══════════════════════════════════════════════════════════════════════════
// pagelens://secret-patterns
// ═══════════════════════════════════════════════════════════════════════════

type patternInfo struct {
	Name     string           `json:"name"`
	Category secrets.Category `json:"category"`
	Severity string           `json:"severity"`
}

func (s *Server) addSecretCatalogResource() {
	const uri = "pagelens://secret-patterns"
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         uri,
			Name:        "Secret pattern catalog",
			Description: "Every secret pattern the scanner runs, with category and severity.",
			MIMEType:    defaults.ContentTypeJSON,
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			catalog := secrets.NewScanner(s.config.ScannerOptions...).Catalog()
			out := make([]patternInfo, 0, len(catalog))
			for _, p := range catalog {
				out = append(out, patternInfo{Name: p.Name, Category: p.Category, Severity: p.Severity.String()})
			}
			return jsonResource(uri, out)
		},
	)
}
