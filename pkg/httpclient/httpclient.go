// Package httpclient builds the pooled HTTP client used to fetch page
// scripts, and a rate-limited Fetcher on top of it.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pagelens/pagelens/pkg/duration"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout
	Timeout time.Duration

	// Proxy is the HTTP/HTTPS proxy URL (optional)
	Proxy string

	// MaxIdleConns is the maximum number of idle connections across all hosts
	MaxIdleConns int

	// MaxConnsPerHost is the maximum connections per host
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay in the pool
	IdleConnTimeout time.Duration

	// DialTimeout is the timeout for establishing connections
	DialTimeout time.Duration

	// TLSHandshakeTimeout is the timeout for the TLS handshake
	TLSHandshakeTimeout time.Duration

	// MaxRedirects bounds redirect chains. Zero disables following.
	MaxRedirects int
}

// DefaultConfig returns defaults tuned for fetching page subresources.
func DefaultConfig() Config {
	return Config{
		Timeout:             duration.FetchTimeout,
		MaxIdleConns:        100,
		MaxConnsPerHost:     8,
		IdleConnTimeout:     duration.IdleConnTimeout,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
		MaxRedirects:        5,
	}
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once
)

// Default returns a shared client built from DefaultConfig.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = New(DefaultConfig())
	})
	return defaultClient
}

// New creates an HTTP client. Zero fields fall back to DefaultConfig.
func New(cfg Config) *http.Client {
	def := DefaultConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}
	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: duration.ResponseHeader,
		DialContext:           dialer.DialContext,
		Proxy:                 http.ProxyFromEnvironment,
	}
	if cfg.Proxy != "" {
		// Malformed proxy URLs fall back to the environment proxy.
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil && proxyURL.Host != "" {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	maxRedirects := cfg.MaxRedirects
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
