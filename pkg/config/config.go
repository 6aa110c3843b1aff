// Package config loads pagelens settings from YAML, layered over one of
// the embedded presets.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/duration"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/presets"
)

// DefaultPreset is applied when a file names no preset.
const DefaultPreset = "default"

// Config holds every tunable of a pagelens run.
type Config struct {
	// Preset is the embedded base this file is layered on.
	Preset string `yaml:"preset" json:"preset"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Observer  ObserverConfig  `yaml:"observer" json:"observer"`
	Fetch     FetchConfig     `yaml:"fetch" json:"fetch"`
	Risk      RiskConfig      `yaml:"risk" json:"risk"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`

	// CustomSecrets extend the built-in secret catalog.
	CustomSecrets []secrets.Definition `yaml:"custom_secrets" json:"custom_secrets"`
}

// StorageConfig controls the local store.
type StorageConfig struct {
	// Dir holds the store file. Empty keeps everything in memory.
	Dir string `yaml:"dir" json:"dir"`

	// Exclusions are substrings; matching script URLs are not stored.
	Exclusions []string `yaml:"exclusions" json:"exclusions"`
}

// ObserverConfig controls one page capture.
type ObserverConfig struct {
	FlushInterval  time.Duration `yaml:"flush_interval" json:"flush_interval"`
	CaptureTimeout time.Duration `yaml:"capture_timeout" json:"capture_timeout"`
	MaxScanBytes   int           `yaml:"max_scan_bytes" json:"max_scan_bytes"`
}

// FetchConfig controls script downloads.
type FetchConfig struct {
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
	Rate        float64       `yaml:"rate" json:"rate"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxBytes    int64         `yaml:"max_bytes" json:"max_bytes"`
	Proxy       string        `yaml:"proxy" json:"proxy"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
}

// RiskConfig overrides domain risk scoring.
type RiskConfig struct {
	Weights        domains.Weights `yaml:"weights" json:"weights"`
	AlertThreshold int             `yaml:"alert_threshold" json:"alert_threshold"`
}

// BrowserConfig controls the headless browser used by watch.
type BrowserConfig struct {
	Headless  bool          `yaml:"headless" json:"headless"`
	ExecPath  string        `yaml:"exec_path" json:"exec_path"`
	Width     int           `yaml:"width" json:"width"`
	Height    int           `yaml:"height" json:"height"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Proxy     string        `yaml:"proxy" json:"proxy"`
	Settle    time.Duration `yaml:"settle" json:"settle"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `yaml:"addr" json:"addr"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	// Endpoint is the OTLP gRPC collector. Empty disables tracing.
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	Insecure bool              `yaml:"insecure" json:"insecure"`
	Headers  map[string]string `yaml:"headers" json:"headers"`
}

// Default returns the built-in configuration. The embedded default
// preset carries the same values.
func Default() *Config {
	return &Config{
		Preset:   DefaultPreset,
		LogLevel: "info",
		Storage: StorageConfig{
			Dir:        defaults.StorageDir,
			Exclusions: []string{},
		},
		Observer: ObserverConfig{
			FlushInterval:  duration.FlushInterval,
			CaptureTimeout: duration.CaptureTimeout,
			MaxScanBytes:   defaults.MaxScanBytes,
		},
		Fetch: FetchConfig{
			Concurrency: defaults.ConcurrencyMedium,
			Rate:        defaults.FetchRate,
			Timeout:     duration.FetchTimeout,
			MaxBytes:    defaults.MaxFetchBytes,
		},
		Risk: RiskConfig{
			Weights:        domains.DefaultWeights(),
			AlertThreshold: defaults.AlertThreshold,
		},
		Browser: BrowserConfig{
			Headless: true,
			Width:    1920,
			Height:   1080,
			Settle:   duration.BrowserIdle,
		},
		CustomSecrets: []secrets.Definition{},
	}
}

// Presets lists the embedded preset names.
func Presets() []string {
	entries, err := fs.ReadDir(presets.FS, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Preset loads an embedded preset by name.
func Preset(name string) (*Config, error) {
	if name == "" {
		name = DefaultPreset
	}
	data, err := presets.FS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownPreset, name, strings.Join(Presets(), ", "))
	}
	cfg := Default()
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	cfg.Preset = name
	return cfg, nil
}

// Load reads a YAML file and layers it over its preset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML and layers it over its preset. Keys absent from data
// keep the preset's value.
func Parse(data []byte) (*Config, error) {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg, err := Preset(head.Preset)
	if err != nil {
		return nil, err
	}
	if err := decode(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks ranges and custom secret patterns.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, ok := parseLevel(c.LogLevel); !ok {
		add("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.Observer.FlushInterval <= 0 {
		add("observer.flush_interval must be positive")
	}
	if c.Observer.CaptureTimeout <= 0 || c.Observer.CaptureTimeout > duration.CaptureMax {
		add("observer.capture_timeout must be in (0, %s]", duration.CaptureMax)
	}
	if c.Observer.MaxScanBytes <= 0 {
		add("observer.max_scan_bytes must be positive")
	}
	if c.Fetch.Concurrency < defaults.ConcurrencyMinimal || c.Fetch.Concurrency > defaults.ConcurrencyMax {
		add("fetch.concurrency must be between %d and %d", defaults.ConcurrencyMinimal, defaults.ConcurrencyMax)
	}
	if c.Fetch.Rate < 0 {
		add("fetch.rate must not be negative")
	}
	if c.Fetch.Timeout <= 0 {
		add("fetch.timeout must be positive")
	}
	if c.Fetch.MaxBytes <= 0 {
		add("fetch.max_bytes must be positive")
	}
	if c.Risk.AlertThreshold < 0 || c.Risk.AlertThreshold > defaults.RiskMax {
		add("risk.alert_threshold must be between 0 and %d", defaults.RiskMax)
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		add("browser.width and browser.height must be positive")
	}
	if _, err := secrets.Compile(c.CustomSecrets); err != nil {
		add("custom_secrets: %v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SecretPatterns compiles CustomSecrets.
func (c *Config) SecretPatterns() ([]secrets.Pattern, error) {
	return secrets.Compile(c.CustomSecrets)
}

// Viewport formats the browser size as WIDTHxHEIGHT.
func (c *Config) Viewport() string {
	return fmt.Sprintf("%dx%d", c.Browser.Width, c.Browser.Height)
}
