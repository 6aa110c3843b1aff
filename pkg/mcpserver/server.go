package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/storage"
)

// Config holds MCP server configuration.
type Config struct {
	// Store is the data the query tools read. Required.
	Store *storage.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Options for the engines the analysis tools build per call.
	ExtractorOptions []endpoints.Option
	ScannerOptions   []secrets.Option
	DomainOptions    []domains.Option
}

// Server wraps the MCP server with pagelens tools.
type Server struct {
	mcp    *mcp.Server
	config Config
	store  *storage.Store
	logger *slog.Logger
	ready  atomic.Bool
}

// MCPServer returns the underlying MCP server (e.g., for in-memory tests).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// MarkReady flips /health from 503 to 200.
func (s *Server) MarkReady() { s.ready.Store(true) }

// IsReady reports whether MarkReady was called.
func (s *Server) IsReady() bool { return s.ready.Load() }

// New creates a server with all tools, resources and prompts registered.
// A nil store is replaced by an empty in-memory one.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil {
		cfg.Store, _ = storage.New("", storage.WithLogger(cfg.Logger))
	}

	s := &Server{
		config: cfg,
		store:  cfg.Store,
		logger: cfg.Logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    defaults.ToolName,
			Title:   "pagelens MCP Server",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// RunStdio serves over stdin/stdout until ctx ends or the client leaves.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("mcp server on stdio", slog.String("store", s.store.Path()))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP transport plus a /health probe.
//
//   - /health → readiness probe (GET, HEAD)
//   - /mcp    → streamable HTTP transport
//   - /       → streamable HTTP transport
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return s.recoveryMiddleware(securityHeaders(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	if !s.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"starting","service":"pagelens-mcp"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"pagelens-mcp"}`))
}

// recoveryMiddleware turns handler panics into a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic in http handler",
					slog.Any("panic", err),
					slog.String("stack", string(debug.Stack())))
				w.Header().Set("Content-Type", defaults.ContentTypeJSON)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Helpers: result builders
// ---------------------------------------------------------------------------

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := jsonutil.MarshalIndent(v, "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports a tool-level failure the model can correct,
// rather than a protocol error.
func errorResult(msg string, recoverySteps ...string) *mcp.CallToolResult {
	type errResponse struct {
		Error         string   `json:"error"`
		RecoverySteps []string `json:"recovery_steps,omitempty"`
	}
	data, _ := jsonutil.MarshalIndent(errResponse{Error: msg, RecoverySteps: recoverySteps}, "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
		IsError: true,
	}
}

func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := jsonutil.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

func readOnly() *mcp.ToolAnnotations {
	f := false
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  &f,
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string, enum ...string) map[string]any {
	p := map[string]any{"type": "string", "description": desc}
	if len(enum) > 0 {
		p["enum"] = enum
	}
	return p
}

func enumStrings[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

const serverInstructions = `You are connected to pagelens, a passive page observer. It records the
script files, endpoints, exposed secrets, third-party domains and asset
snapshots of web pages a user has captured.

TOOLS
- get_stats: start here; counts of everything in the store.
- get_endpoints / get_secrets / get_domains / get_snapshots: read stored data.
- compare_snapshots: diff two captures of a page (added, removed, modified assets).
- export_data: render stored data as json, csv, burp, linkfinder, sarif or text.
- scan_text / extract_endpoints / categorize_url: analyze content you supply,
  without touching the store.

RULES
- Secret values are masked. Never attempt to reconstruct them.
- The tools never send traffic to the observed site.
- Findings are pattern based; confirm before reporting them as fact.`

// lower trims and lower-cases a user-supplied enum value.
func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
