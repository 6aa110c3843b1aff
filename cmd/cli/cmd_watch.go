package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/pagelens/pagelens/pkg/browser"
	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/observer"
	"github.com/pagelens/pagelens/pkg/ui"
)

// runWatch opens a page in Chrome and records everything it loads until
// the page settles, the capture timeout fires or the user interrupts.
func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	timeout := fs.Duration("timeout", 0, "Capture timeout (overrides config)")
	settle := fs.Duration("settle", -1, "Keep listening this long after load (overrides config)")
	headful := fs.Bool("headful", false, "Show the browser window")
	chrome := fs.String("chrome", "", "Chrome/Chromium executable (overrides config)")
	jsonOut := fs.Bool("json", false, "Print the capture report as JSON on stdout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pagelens watch [flags] <url>\n\n")
		fmt.Fprintf(os.Stderr, "Open the page in headless Chrome and record its scripts, endpoints,\n")
		fmt.Fprintf(os.Stderr, "exposed secrets, third-party domains and an asset snapshot.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		exitWithUsage("exactly one page URL is required", "pagelens watch [flags] https://example.com")
	}
	pageURL := fs.Arg(0)
	if u, err := url.Parse(pageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		exitWithError("invalid page URL %q: want an absolute http(s) URL", pageURL)
	}

	cfg, logger := common.setup()
	if *timeout > 0 {
		cfg.Observer.CaptureTimeout = *timeout
	}
	if *settle >= 0 {
		cfg.Browser.Settle = *settle
	}
	if *headful {
		cfg.Browser.Headless = false
	}
	if *chrome != "" {
		cfg.Browser.ExecPath = *chrome
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, flushTraces := startTelemetry(ctx, cfg, logger, "watch")
	defer flushTraces()
	rec := startMetrics(ctx, cfg, logger)
	store := openStore(cfg, logger)

	session := browser.New(pageURL, browserOptions(cfg),
		browser.WithLogger(logger),
		browser.WithFallback(newFetcher(cfg)))
	obs := observer.New(pageURL, session, session, store, observerOptions(cfg, logger, rec, tp)...)

	ui.PrintBanner()
	ui.PrintSection("Watch")
	ui.PrintConfigLine("Page", pageURL)
	ui.PrintConfigLine("Preset", cfg.Preset)
	ui.PrintConfigLine("Viewport", cfg.Viewport())
	ui.PrintConfigLine("Timeout", cfg.Observer.CaptureTimeout.String())
	ui.PrintConfigLine("Store", storeLabel(store.Path()))

	browserCtx, stopBrowser := context.WithCancel(ctx)
	defer stopBrowser()
	browserErr := make(chan error, 1)
	go func() { browserErr <- session.Run(browserCtx) }()

	if err := obs.Run(ctx); err != nil {
		exitWithCode(defaults.ExitInternalError, "capture: %v", err)
	}
	stopBrowser()
	report := obs.Report()
	if err := <-browserErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("browser session ended with error", slog.String("error", err.Error()))
		if report.Observations == 0 {
			exitWithCode(defaults.ExitNetworkError, "browser: %v", err)
		}
		ui.PrintWarning(fmt.Sprintf("browser: %v", err))
	}

	if *jsonOut {
		enc := jsonutil.NewStreamEncoder(os.Stdout)
		enc.SetIndent("  ")
		if err := enc.Encode(report); err != nil {
			exitWithError("encoding report: %v", err)
		}
		return
	}
	ui.RenderReport(os.Stdout, report)
	if report.Secrets.Total > 0 {
		fmt.Println()
		for _, entry := range store.GetSecrets() {
			if entry.Timestamp.Before(report.StartedAt) {
				continue
			}
			for _, f := range entry.Findings {
				if f.Source == "" {
					f.Source = entry.URL
				}
				fmt.Println("  " + ui.FindingLine(f))
			}
		}
	}
}

func storeLabel(path string) string {
	if path == "" {
		return "(memory)"
	}
	return path
}
