package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/pagelens/pagelens/pkg/browser"
	"github.com/pagelens/pagelens/pkg/config"
	"github.com/pagelens/pagelens/pkg/domains"
	"github.com/pagelens/pagelens/pkg/duration"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/httpclient"
	"github.com/pagelens/pagelens/pkg/metrics"
	"github.com/pagelens/pagelens/pkg/observer"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/storage"
	"github.com/pagelens/pagelens/pkg/telemetry"
	"github.com/pagelens/pagelens/pkg/ui"
)

// commonFlags are shared by every command that touches the store.
type commonFlags struct {
	configPath string
	preset     string
	storeDir   string
	verbose    bool
	silent     bool
	noColor    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("PAGELENS_CONFIG"), "YAML config file (env PAGELENS_CONFIG)")
	fs.StringVar(&c.preset, "preset", "", "Embedded preset when no config file is given: default, strict, quiet")
	fs.StringVar(&c.storeDir, "store", os.Getenv("PAGELENS_STORE"), "Store directory (overrides config; env PAGELENS_STORE)")
	fs.BoolVar(&c.verbose, "v", false, "Debug logging")
	fs.BoolVar(&c.silent, "silent", false, "Only print results and errors")
	fs.BoolVar(&c.noColor, "no-color", false, "Disable colors")
}

// setup loads the configuration, applies flag overrides and installs the
// default logger.
func (c *commonFlags) setup() (*config.Config, *slog.Logger) {
	ui.DetectColor()
	if c.noColor {
		ui.SetNoColor(true)
	}
	ui.SetSilent(c.silent)

	var (
		cfg *config.Config
		err error
	)
	switch {
	case c.configPath != "":
		cfg, err = config.Load(c.configPath)
	case c.preset != "":
		cfg, err = config.Preset(c.preset)
	default:
		cfg, err = config.Preset(config.DefaultPreset)
	}
	if err != nil {
		exitWithError("%v", err)
	}
	if c.storeDir != "" {
		cfg.Storage.Dir = c.storeDir
	}

	level := cfg.Level()
	if c.verbose {
		level = slog.LevelDebug
	} else if c.silent && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger
}

func openStore(cfg *config.Config, logger *slog.Logger) *storage.Store {
	store, err := storage.New(cfg.Storage.Dir,
		storage.WithLogger(logger),
		storage.WithExclusions(cfg.Storage.Exclusions...))
	if err != nil {
		exitWithError("opening store: %v", err)
	}
	return store
}

// engineOptions translates the config into options for the three
// analysis engines.
func engineOptions(cfg *config.Config) ([]endpoints.Option, []secrets.Option, []domains.Option) {
	patterns, err := cfg.SecretPatterns()
	if err != nil {
		exitWithError("custom secrets: %v", err)
	}
	return []endpoints.Option{endpoints.WithMaxScanBytes(cfg.Observer.MaxScanBytes)},
		[]secrets.Option{secrets.WithMaxScanBytes(cfg.Observer.MaxScanBytes), secrets.WithPatterns(patterns...)},
		[]domains.Option{domains.WithWeights(cfg.Risk.Weights), domains.WithAlertThreshold(cfg.Risk.AlertThreshold)}
}

func newFetcher(cfg *config.Config) *httpclient.Fetcher {
	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.Fetch.Timeout
	hc.Proxy = cfg.Fetch.Proxy

	opts := []httpclient.FetcherOption{
		httpclient.WithClient(httpclient.New(hc)),
		httpclient.WithRate(cfg.Fetch.Rate),
		httpclient.WithMaxBytes(cfg.Fetch.MaxBytes),
	}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, httpclient.WithUserAgent(cfg.Fetch.UserAgent))
	}
	return httpclient.NewFetcher(opts...)
}

func browserOptions(cfg *config.Config) browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.ExecPath = cfg.Browser.ExecPath
	opts.Width = cfg.Browser.Width
	opts.Height = cfg.Browser.Height
	opts.UserAgent = cfg.Browser.UserAgent
	opts.Proxy = cfg.Browser.Proxy
	opts.Settle = cfg.Browser.Settle
	opts.MaxBodyBytes = int(cfg.Fetch.MaxBytes)
	return opts
}

func observerOptions(cfg *config.Config, logger *slog.Logger, rec *metrics.Recorder, tp trace.TracerProvider) []observer.Option {
	ext, sc, dom := engineOptions(cfg)
	return []observer.Option{
		observer.WithLogger(logger),
		observer.WithMetrics(rec),
		observer.WithTracerProvider(tp),
		observer.WithFlushInterval(cfg.Observer.FlushInterval),
		observer.WithCaptureTimeout(cfg.Observer.CaptureTimeout),
		observer.WithConcurrency(cfg.Fetch.Concurrency),
		observer.WithExtractorOptions(ext...),
		observer.WithScannerOptions(sc...),
		observer.WithDomainOptions(dom...),
	}
}

// startMetrics serves /metrics in the background when configured. The
// recorder is returned either way so counters are always collected.
func startMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) *metrics.Recorder {
	rec, err := metrics.New()
	if err != nil {
		exitWithError("metrics: %v", err)
	}
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := rec.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}
	return rec
}

// startTelemetry installs the tracer provider. The returned func flushes
// pending spans.
func startTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger, component string) (trace.TracerProvider, func()) {
	tp, shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:  cfg.Telemetry.Endpoint,
		Insecure:  cfg.Telemetry.Insecure,
		Headers:   cfg.Telemetry.Headers,
		Component: component,
	})
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
		return nil, func() {}
	}
	return tp, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("flushing traces", slog.String("error", err.Error()))
		}
	}
}
