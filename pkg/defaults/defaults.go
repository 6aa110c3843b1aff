// Package defaults provides canonical default values for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for limits, sizes and identifiers.
//
// Usage:
//
//	extractor := endpoints.NewExtractor(endpoints.WithMaxScanBytes(defaults.MaxScanBytes))
//	req.Header.Set("User-Agent", defaults.UserAgent("fetch"))
//
// DO NOT use hardcoded values like `MaxScanBytes: 1 << 20` anywhere.
// Instead, reference the appropriate constant from this package.
package defaults

import "fmt"

// Version is the current pagelens version
const Version = "0.9.0"

// ToolName is the name reported in exports and MCP metadata
const ToolName = "pagelens"

// ToolURI is the information URI reported in SARIF output
const ToolURI = "https://github.com/pagelens/pagelens"

// StorageDir is the default store directory, relative to the working
// directory
const StorageDir = ".pagelens"

// ============================================================================
// SCAN LIMITS
// ============================================================================
//
// Use these to bound the work done on a single piece of content.
// ============================================================================

const (
	// MaxScanBytes is how much of one body is fully scanned (5MB)
	MaxScanBytes = 5 * 1024 * 1024

	// MaxFetchBytes is the largest script body read from the network (10MB)
	MaxFetchBytes = 10 * 1024 * 1024

	// InlineContentLimit is how many characters of inline content a
	// snapshot keeps (10000)
	InlineContentLimit = 10000

	// SecretContextWindow is the excerpt width on each side of a secret (100)
	SecretContextWindow = 100
)

// ============================================================================
// CONCURRENCY SETTINGS
// ============================================================================
//
// Use these for worker pools, semaphores, and rate limiters.
// ============================================================================

const (
	// ConcurrencyMinimal is for single-threaded operations (1)
	ConcurrencyMinimal = 1

	// ConcurrencyLow is for polite fetching (4)
	ConcurrencyLow = 4

	// ConcurrencyMedium is the default script fetch concurrency (8)
	ConcurrencyMedium = 8

	// ConcurrencyMax is the upper bound accepted by config validation (64)
	ConcurrencyMax = 64

	// FetchRate is the default script fetches per second (20)
	FetchRate = 20
)

// ============================================================================
// CHANNEL SIZES
// ============================================================================
//
// Use these for buffered channels.
// ============================================================================

const (
	// ChannelSmall is for typical buffers (100)
	ChannelSmall = 100

	// ChannelMedium is for observation streams (1000)
	ChannelMedium = 1000
)

// ============================================================================
// RISK SCORING
// ============================================================================

const (
	// RiskMax is the top of the domain risk scale (10)
	RiskMax = 10

	// AlertThreshold is the score at which a domain alerts on its own (8)
	AlertThreshold = 8
)

// ============================================================================
// HTTP CONTENT TYPES
// ============================================================================

const (
	// ContentTypeJSON is application/json
	ContentTypeJSON = "application/json"

	// ContentTypeJavaScript is text/javascript
	ContentTypeJavaScript = "text/javascript"

	// AcceptScript is the Accept header used when fetching scripts
	AcceptScript = "application/javascript, text/javascript, */*;q=0.8"
)

// ============================================================================
// USER AGENTS
// ============================================================================

const (
	// UAChrome is a Chrome user agent
	UAChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// UAMinimal is a minimal user agent
	UAMinimal = "pagelens/" + Version
)

// UserAgent returns the pagelens user agent with context
func UserAgent(context string) string {
	if context == "" {
		return UAMinimal
	}
	return fmt.Sprintf("pagelens/%s (%s)", Version, context)
}
