// Command mcp-smoke starts "pagelens mcp --http" against a scratch store
// seeded by "pagelens scan" and drives every tool, resource and prompt
// through a real MCP client session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pagelens/pagelens/pkg/jsonutil"
)

// scenarioResult tracks the outcome of a single scenario.
type scenarioResult struct {
	name   string
	passed bool
	err    error
}

// scenario is a named check run against a live MCP session.
type scenario struct {
	name string
	fn   func(ctx context.Context, s *mcp.ClientSession) error
}

// Assembled at runtime so this file never holds a full key.
var seedKey = "AKIA" + "SMOKETESTKEY1234"

func main() {
	var (
		port    = flag.Int("port", 18181, "MCP HTTP port")
		timeout = flag.Duration("timeout", 90*time.Second, "Overall timeout")
		runOnly = flag.String("scenario", "", "Run only this named scenario")
	)
	flag.Parse()
	log.SetFlags(0)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	root, err := findRepoRoot()
	if err != nil {
		log.Fatalf("FATAL find_repo_root: %v", err)
	}
	storeDir, err := os.MkdirTemp("", "pagelens-smoke-")
	if err != nil {
		log.Fatalf("FATAL temp_store: %v", err)
	}
	defer os.RemoveAll(storeDir)

	if err := seedStore(ctx, root, storeDir); err != nil {
		log.Fatalf("FATAL seed_store: %v", err)
	}

	serverCmd, err := startServer(ctx, root, storeDir, *port)
	if err != nil {
		log.Fatalf("FATAL start_server: %v", err)
	}
	defer stopServer(serverCmd)

	if err := waitForHealth(ctx, *port); err != nil {
		log.Fatalf("FATAL health_check: %v", err)
	}
	fmt.Println("server: healthy")

	client := mcp.NewClient(&mcp.Implementation{Name: "mcp-smoke", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint: fmt.Sprintf("http://127.0.0.1:%d/mcp", *port),
	}, nil)
	if err != nil {
		log.Fatalf("FATAL connect: %v", err)
	}
	defer session.Close()

	var results []scenarioResult
	for _, sc := range allScenarios() {
		if *runOnly != "" && sc.name != *runOnly {
			continue
		}
		err := sc.fn(ctx, session)
		results = append(results, scenarioResult{name: sc.name, passed: err == nil, err: err})
		if err == nil {
			fmt.Printf("PASS  %s\n", sc.name)
		} else {
			fmt.Printf("FAIL  %s: %v\n", sc.name, err)
		}
	}

	failed := 0
	for _, r := range results {
		if !r.passed {
			failed++
		}
	}
	fmt.Printf("\n--- %d passed, %d failed ---\n", len(results)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// allScenarios returns every smoke scenario in execution order.
func allScenarios() []scenario {
	return []scenario{
		{"tool_discovery", scenarioToolDiscovery},
		{"resource_exploration", scenarioResources},
		{"prompt_catalog", scenarioPrompt},
		{"store_queries", scenarioStoreQueries},
		{"analysis_tools", scenarioAnalysis},
		{"error_handling", scenarioErrorHandling},
		{"agent_triage", agentTriage},
	}
}

func scenarioToolDiscovery(ctx context.Context, s *mcp.ClientSession) error {
	tools, err := s.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return fmt.Errorf("ListTools: %w", err)
	}
	expected := []string{
		"get_stats", "get_endpoints", "get_secrets", "get_domains", "get_snapshots",
		"compare_snapshots", "export_data", "scan_text", "extract_endpoints", "categorize_url",
	}
	have := make(map[string]bool, len(tools.Tools))
	for _, t := range tools.Tools {
		have[t.Name] = true
		if t.Description == "" {
			return fmt.Errorf("tool %q has empty description", t.Name)
		}
		if t.InputSchema == nil {
			return fmt.Errorf("tool %q has nil input schema", t.Name)
		}
	}
	for _, name := range expected {
		if !have[name] {
			return fmt.Errorf("missing tool %q (have %d)", name, len(tools.Tools))
		}
	}
	if len(tools.Tools) != len(expected) {
		return fmt.Errorf("tool count mismatch: want %d, got %d", len(expected), len(tools.Tools))
	}
	return nil
}

func scenarioResources(ctx context.Context, s *mcp.ClientSession) error {
	for _, uri := range []string{"pagelens://version", "pagelens://secret-patterns"} {
		res, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
		if err != nil {
			return fmt.Errorf("ReadResource %s: %w", uri, err)
		}
		if resourceText(res) == "" {
			return fmt.Errorf("resource %s is empty", uri)
		}
	}
	if _, err := s.ReadResource(ctx, &mcp.ReadResourceParams{URI: "pagelens://nope"}); err == nil {
		return fmt.Errorf("NEG unknown resource: expected error")
	}
	return nil
}

func scenarioPrompt(ctx context.Context, s *mcp.ClientSession) error {
	res, err := s.GetPrompt(ctx, &mcp.GetPromptParams{Name: "triage_capture"})
	if err != nil {
		return fmt.Errorf("GetPrompt: %w", err)
	}
	if len(res.Messages) == 0 {
		return fmt.Errorf("triage_capture returned no messages")
	}
	return nil
}

func scenarioStoreQueries(ctx context.Context, s *mcp.ClientSession) error {
	stats, err := callToolJSON(ctx, s, "get_stats", nil)
	if err != nil {
		return err
	}
	if n, _ := stats["secrets"].(float64); n < 1 {
		return fmt.Errorf("seeded store reports %v secrets", stats["secrets"])
	}
	eps, err := callToolJSON(ctx, s, "get_endpoints", map[string]any{"category": "endpoints"})
	if err != nil {
		return err
	}
	if n, _ := eps["total"].(float64); n < 1 {
		return fmt.Errorf("expected seeded endpoints, got %v", eps["total"])
	}
	sec, err := callToolRaw(ctx, s, "get_secrets", map[string]any{"min_severity": "critical"})
	if err != nil {
		return err
	}
	if strings.Contains(extractText(sec), seedKey) {
		return fmt.Errorf("get_secrets leaked a raw value")
	}
	for _, name := range []string{"get_domains", "get_snapshots"} {
		if err := requireToolOK(ctx, s, name, nil); err != nil {
			return err
		}
	}
	return nil
}

func scenarioAnalysis(ctx context.Context, s *mcp.ClientSession) error {
	scan, err := callToolJSON(ctx, s, "scan_text", map[string]any{"text": "k='" + seedKey + "'", "source": "inline.js"})
	if err != nil {
		return err
	}
	if f, _ := scan["findings"].([]any); len(f) == 0 {
		return fmt.Errorf("scan_text found nothing")
	}
	if err := requireToolOK(ctx, s, "extract_endpoints", map[string]any{"text": `fetch("/api/users")`, "base_url": "https://example.com/"}); err != nil {
		return err
	}
	cat, err := callToolJSON(ctx, s, "categorize_url", map[string]any{"url": "https://www.google-analytics.com/ga.js", "page_url": "https://example.com/"})
	if err != nil {
		return err
	}
	if local, _ := cat["is_local"].(bool); local {
		return fmt.Errorf("third-party analytics host reported local")
	}
	return nil
}

func scenarioErrorHandling(ctx context.Context, s *mcp.ClientSession) error {
	checks := []struct {
		tool string
		args map[string]any
		desc string
	}{
		{"get_snapshots", map[string]any{"id": "missing"}, "unknown id"},
		{"compare_snapshots", map[string]any{"before": "a"}, "missing after"},
		{"export_data", map[string]any{"format": "xml"}, "bad format"},
		{"export_data", map[string]any{"format": "pdf"}, "pdf over MCP"},
		{"categorize_url", map[string]any{"url": "not a url"}, "bad url"},
		{"nonexistent_tool", map[string]any{}, "unknown tool"},
	}
	for _, c := range checks {
		if err := requireToolError(ctx, s, c.tool, c.args, c.desc); err != nil {
			return err
		}
	}
	return nil
}

// agentTriage mimics an agent walking the triage prompt end to end.
func agentTriage(ctx context.Context, s *mcp.ClientSession) error {
	if err := requireToolOK(ctx, s, "get_stats", nil); err != nil {
		return err
	}
	if err := requireToolOK(ctx, s, "get_secrets", map[string]any{"min_severity": "high", "limit": 5}); err != nil {
		return err
	}
	res, err := callToolRaw(ctx, s, "export_data", map[string]any{"format": "sarif"})
	if err != nil {
		return err
	}
	if !strings.Contains(extractText(res), `"2.1.0"`) {
		return fmt.Errorf("sarif export missing version: %s", truncate(extractText(res), 120))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func requireToolOK(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) error {
	result, err := callToolRaw(ctx, s, name, args)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	if result.IsError {
		return fmt.Errorf("call %s: tool error: %s", name, truncate(extractText(result), 200))
	}
	return nil
}

// requireToolError asserts that bad input yields IsError or a protocol
// error.
func requireToolError(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any, desc string) error {
	result, err := callToolRaw(ctx, s, name, args)
	if err != nil {
		return nil
	}
	if !result.IsError {
		return fmt.Errorf("NEG %s(%s): expected IsError=true (response: %s)", name, desc, truncate(extractText(result), 120))
	}
	return nil
}

func callToolJSON(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (map[string]any, error) {
	result, err := callToolRaw(ctx, s, name, args)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("call %s: tool error: %s", name, truncate(extractText(result), 200))
	}
	var data map[string]any
	if err := jsonutil.Unmarshal([]byte(extractText(result)), &data); err != nil {
		return nil, fmt.Errorf("call %s: parse JSON: %w", name, err)
	}
	return data, nil
}

func callToolRaw(ctx context.Context, s *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	return s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
}

func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(*mcp.TextContent); ok {
		return tc.Text
	}
	return fmt.Sprintf("%T", result.Content[0])
}

func resourceText(res *mcp.ReadResourceResult) string {
	if len(res.Contents) == 0 {
		return ""
	}
	return res.Contents[0].Text
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// ---------------------------------------------------------------------------
// Server lifecycle
// ---------------------------------------------------------------------------

func seedStore(ctx context.Context, root, storeDir string) error {
	src := filepath.Join(storeDir, "seed.js")
	code := "fetch(\"/api/users\");\nconst key = \"" + seedKey + "\";\n"
	if err := os.WriteFile(src, []byte(code), 0o600); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/cli", "scan", "-silent", "-store", storeDir, src)
	cmd.Dir = root
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func startServer(ctx context.Context, root, storeDir string, port int) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/cli", "mcp", "-store", storeDir, "--http", fmt.Sprintf("127.0.0.1:%d", port))
	cmd.Dir = root
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func stopServer(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	_, _ = cmd.Process.Wait()
}

func findRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil && strings.Contains(string(data), "module github.com/pagelens/pagelens") {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("repo root not found walking up from %s", dir)
		}
		dir = parent
	}
}

func waitForHealth(ctx context.Context, port int) error {
	client := &http.Client{Timeout: 2 * time.Second}
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
