// Package duration provides canonical time constants for the entire codebase.
// This is the SINGLE SOURCE OF TRUTH for all time-based configuration.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.FetchTimeout)
//	FlushInterval: duration.FlushInterval,
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// OBSERVATION
// ============================================================================
//
// Use these for the page observer's timers.
// ============================================================================

const (
	// FlushInterval is how often buffered results reach storage (2s)
	FlushInterval = 2 * time.Second

	// CaptureTimeout bounds one page capture (30s)
	CaptureTimeout = 30 * time.Second

	// CaptureMax is the largest capture timeout config accepts (30min)
	CaptureMax = 30 * time.Minute

	// FetchTimeout bounds one script fetch (15s)
	FetchTimeout = 15 * time.Second
)

// ============================================================================
// BROWSER/HEADLESS TIMEOUTS
// ============================================================================
//
// Use these for chromedp and headless browser operations.
// ============================================================================

const (
	// BrowserPage is for page load timeout (30s)
	BrowserPage = 30 * time.Second

	// BrowserIdle is the settle time after the load event (2s)
	BrowserIdle = 2 * time.Second

	// BrowserShutdown bounds a graceful Chrome exit before force-kill (5s)
	BrowserShutdown = 5 * time.Second
)

// ============================================================================
// NETWORK/TRANSPORT
// ============================================================================
//
// Use these for low-level network configuration.
// ============================================================================

const (
	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is for TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second

	// ResponseHeader is for waiting on response headers (15s)
	ResponseHeader = 15 * time.Second
)

// ============================================================================
// SERVERS
// ============================================================================

const (
	// ShutdownGrace bounds graceful shutdown of the metrics server and
	// the tracer provider (5s)
	ShutdownGrace = 5 * time.Second

	// ReadHeaderTimeout protects the metrics endpoint (10s)
	ReadHeaderTimeout = 10 * time.Second
)
