package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/finding"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/snapshot"
)

// defaultLimit caps list results unless the caller asks for more.
const defaultLimit = 200

// registerTools adds every tool to the MCP server.
func (s *Server) registerTools() {
	s.addGetStatsTool()
	s.addGetEndpointsTool()
	s.addGetSecretsTool()
	s.addGetDomainsTool()
	s.addGetSnapshotsTool()
	s.addCompareSnapshotsTool()
	s.addExportDataTool()
	s.addScanTextTool()
	s.addExtractEndpointsTool()
	s.addCategorizeURLTool()
}

func limitProp() map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": fmt.Sprintf("Maximum number of items to return (default %d).", defaultLimit),
		"minimum":     1,
	}
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// ═══════════════════════════════════════════════════════════════════════════
// get_stats
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addGetStatsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_stats",
			Title: "Store Statistics",
			Description: `Counts of everything captured so far: script files, endpoint sources and
values, secret findings by severity, snapshots and suspicious domains.

Call this first to see whether there is anything to look at.`,
			InputSchema: objectSchema(map[string]any{}),
			Annotations: readOnly(),
		},
		s.handleGetStats,
	)
}

func (s *Server) handleGetStats(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.store.GetStats())
}

// ═══════════════════════════════════════════════════════════════════════════
// get_endpoints
// ═══════════════════════════════════════════════════════════════════════════

type getEndpointsArgs struct {
	Source   string `json:"source"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

type endpointItem struct {
	Value    string             `json:"value"`
	Category endpoints.Category `json:"category"`
	Source   string             `json:"source"`
}

type endpointsResponse struct {
	Total int            `json:"total"`
	Items []endpointItem `json:"items"`
}

func (s *Server) addGetEndpointsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_endpoints",
			Title: "Stored Endpoints",
			Description: `Endpoints extracted from captured scripts and pages, flattened to
{value, category, source}.

EXAMPLE INPUTS:
• Everything: {}
• Only GraphQL: {"category": "graphql"}
• From one script: {"source": "https://example.com/app.js"}`,
			InputSchema: objectSchema(map[string]any{
				"source":   stringProp("Only values extracted from this script or page URL (substring match)."),
				"category": stringProp("Only this category.", enumStrings(endpoints.Categories())...),
				"limit":    limitProp(),
			}),
			Annotations: readOnly(),
		},
		s.handleGetEndpoints,
	)
}

func (s *Server) handleGetEndpoints(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getEndpointsArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	cats := endpoints.Categories()
	if c := lower(args.Category); c != "" {
		cats = []endpoints.Category{endpoints.Category(c)}
	}
	limit := clampLimit(args.Limit)

	resp := endpointsResponse{Items: make([]endpointItem, 0)}
	for _, e := range s.store.GetEndpoints() {
		if args.Source != "" && !strings.Contains(e.URL, args.Source) {
			continue
		}
		for _, c := range cats {
			for _, v := range e.Result.Values(c) {
				resp.Total++
				if len(resp.Items) < limit {
					resp.Items = append(resp.Items, endpointItem{Value: v, Category: c, Source: e.URL})
				}
			}
		}
	}
	return jsonResult(resp)
}

// ═══════════════════════════════════════════════════════════════════════════
// get_secrets
// ═══════════════════════════════════════════════════════════════════════════

type getSecretsArgs struct {
	MinSeverity string `json:"min_severity"`
	Type        string `json:"type"`
	Source      string `json:"source"`
	Limit       int    `json:"limit"`
}

type secretsResponse struct {
	Total    int               `json:"total"`
	Stats    secrets.Stats     `json:"stats"`
	Findings []secrets.Finding `json:"findings"`
}

func (s *Server) addGetSecretsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_secrets",
			Title: "Stored Secret Findings",
			Description: `Secrets found in captured content, most severe first. Values are masked.

EXAMPLE INPUTS:
• Everything: {}
• High and critical only: {"min_severity": "high"}
• One type: {"type": "AWS Access Key"}`,
			InputSchema: objectSchema(map[string]any{
				"min_severity": stringProp("Lowest severity to include.", enumStrings(finding.All())...),
				"type":         stringProp("Only findings of this pattern name (case-insensitive)."),
				"source":       stringProp("Only findings from this URL (substring match)."),
				"limit":        limitProp(),
			}),
			Annotations: readOnly(),
		},
		s.handleGetSecrets,
	)
}

func (s *Server) handleGetSecrets(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getSecretsArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	minScore := 0
	if args.MinSeverity != "" {
		minScore = finding.Parse(args.MinSeverity).Score()
	}

	var all []secrets.Finding
	for _, e := range s.store.GetSecrets() {
		for _, f := range e.Findings {
			if f.Source == "" {
				f.Source = e.URL
			}
			if f.Severity.Score() < minScore {
				continue
			}
			if args.Type != "" && !strings.EqualFold(f.Type, args.Type) {
				continue
			}
			if args.Source != "" && !strings.Contains(f.Source, args.Source) {
				continue
			}
			all = append(all, f.Redacted())
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Severity.Rank() < all[j].Severity.Rank()
	})

	resp := secretsResponse{Total: len(all), Stats: secrets.Summarize(all), Findings: all}
	if limit := clampLimit(args.Limit); len(resp.Findings) > limit {
		resp.Findings = resp.Findings[:limit]
	}
	if resp.Findings == nil {
		resp.Findings = make([]secrets.Finding, 0)
	}
	return jsonResult(resp)
}

// ═══════════════════════════════════════════════════════════════════════════
// get_domains
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addGetDomainsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_domains",
			Title: "Domain Summary",
			Description: `The latest domain summary of the observed page: totals (local,
third-party, insecure, alerts, per category) and the suspicious domains with
their risk score (0-10) and categories.`,
			InputSchema: objectSchema(map[string]any{}),
			Annotations: readOnly(),
		},
		s.handleGetDomains,
	)
}

func (s *Server) handleGetDomains(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.store.GetDomainData())
}

// ═══════════════════════════════════════════════════════════════════════════
// get_snapshots
// ═══════════════════════════════════════════════════════════════════════════

type getSnapshotsArgs struct {
	ID string `json:"id"`
}

type snapshotSummary struct {
	ID          string               `json:"id"`
	URL         string               `json:"url"`
	Domain      string               `json:"domain"`
	StartTime   time.Time            `json:"start_time"`
	Assets      int                  `json:"assets"`
	Performance snapshot.Performance `json:"performance"`
	HasCSP      bool                 `json:"has_csp"`
	Mixed       int                  `json:"mixed_content"`
}

func (s *Server) addGetSnapshotsTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "get_snapshots",
			Title: "Page Snapshots",
			Description: `Without arguments, lists stored snapshots oldest first with their
performance summary. With {"id": "..."} returns that snapshot in full,
including every asset and its asset map (critical path, security lists).`,
			InputSchema: objectSchema(map[string]any{
				"id": stringProp("Snapshot id to return in full."),
			}),
			Annotations: readOnly(),
		},
		s.handleGetSnapshots,
	)
}

func (s *Server) handleGetSnapshots(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args getSnapshotsArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	if args.ID != "" {
		snap, ok := s.store.GetSnapshot(args.ID)
		if !ok {
			return errorResult(fmt.Sprintf("snapshot %q not found", args.ID),
				"Call get_snapshots without arguments to list valid ids."), nil
		}
		return jsonResult(snap)
	}

	snaps := s.store.GetSnapshots()
	out := make([]snapshotSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, summarizeSnapshot(snap))
	}
	return jsonResult(out)
}

func summarizeSnapshot(snap *snapshot.Snapshot) snapshotSummary {
	return snapshotSummary{
		ID:          snap.ID,
		URL:         snap.URL,
		Domain:      snap.Domain,
		StartTime:   snap.StartTime,
		Assets:      len(snap.Assets),
		Performance: snap.Performance,
		HasCSP:      snap.Security.HasCSP,
		Mixed:       len(snap.Security.MixedContent),
	}
}
