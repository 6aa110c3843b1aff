// Package mcpserver exposes the pagelens store and analysis engines as a
// Model Context Protocol (MCP) server, so AI assistants can query what a
// capture found.
//
// # Capabilities
//
//   - Tools:     read-only queries over the store (get_stats, get_secrets, …)
//     and stateless analysis of supplied text (scan_text, extract_endpoints,
//     categorize_url)
//   - Resources: version and secret pattern catalog
//   - Prompts:   a guided triage workflow
//
// Every tool is annotated read-only. Secret values are always masked.
//
// # Transports
//
//   - stdio: the default, used by IDE integrations
//   - HTTP:  streamable HTTP with a /health probe
package mcpserver
