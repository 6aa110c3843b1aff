package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerPrompts adds the guided workflows.
func (s *Server) registerPrompts() {
	s.addTriagePrompt()
}

// ═══════════════════════════════════════════════════════════════════════════
// triage_capture: walk through what a capture found
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addTriagePrompt() {
	s.mcp.AddPrompt(
		&mcp.Prompt{
			Name:        "triage_capture",
			Description: "Review a page capture: secrets first, then suspicious domains, endpoints and asset security.",
			Arguments: []*mcp.PromptArgument{
				{Name: "focus", Description: "Optional focus: 'secrets', 'domains', 'endpoints' or 'assets'", Required: false},
			},
		},
		func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			focus := lower(req.Params.Arguments["focus"])
			switch focus {
			case "", "secrets", "domains", "endpoints", "assets":
			default:
				return nil, fmt.Errorf("unknown focus %q", focus)
			}
			text := `Triage the pagelens capture.

1. Call get_stats. If everything is zero, say so and stop.
2. Call get_secrets with min_severity "high". For each finding give the type,
   where it was found (source and line) and whether the context suggests a
   test or placeholder value.
3. Call get_domains. List suspicious domains with risk score and categories;
   call out insecure (http) third parties and exposed development hosts.
4. Call get_endpoints with category "endpoints", then "graphql". Summarize
   the API surface the page talks to.
5. Call get_snapshots and, for the newest, get_snapshots with its id. Report
   mixed content, cross-origin scripts without integrity and the critical path.

Finish with a short prioritized list of what to look at first.`
			if focus != "" {
				text += fmt.Sprintf("\n\nSpend most of the review on %s.", focus)
			}
			return &mcp.GetPromptResult{
				Description: "Capture triage",
				Messages: []*mcp.PromptMessage{{
					Role:    "user",
					Content: &mcp.TextContent{Text: text},
				}},
			}, nil
		},
	)
}
