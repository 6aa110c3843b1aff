package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/endpoints"
	"github.com/pagelens/pagelens/pkg/finding"
	"github.com/pagelens/pagelens/pkg/httpclient"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/observer"
	"github.com/pagelens/pagelens/pkg/secrets"
	"github.com/pagelens/pagelens/pkg/storage"
	"github.com/pagelens/pagelens/pkg/ui"
	"github.com/pagelens/pagelens/pkg/workerpool"
)

// scanOutcome is what one file or URL produced.
type scanOutcome struct {
	Source   string            `json:"source"`
	Result   *endpoints.Result `json:"endpoints,omitempty"`
	Resolved []string          `json:"resolved,omitempty"`
	Findings []secrets.Finding `json:"findings"`
	Error    string            `json:"error,omitempty"`
}

// runScan analyzes local files and fetched URLs without a browser.
func runScan() {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	stdin := fs.Bool("stdin", false, "Read files/URLs from stdin, one per line")
	base := fs.String("base", "", "Resolve relative endpoints against this URL")
	noStore := fs.Bool("no-store", false, "Do not write results to the store")
	jsonOut := fs.Bool("json", false, "Print results as JSON on stdout")
	failOn := fs.String("fail-on", "", "Exit with code 1 if a finding at or above this severity is found")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pagelens scan [flags] <file|url>...\n\n")
		fmt.Fprintf(os.Stderr, "Extract endpoints and find exposed secrets in local files or fetched URLs.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  pagelens scan dist/*.js\n")
		fmt.Fprintf(os.Stderr, "  pagelens scan -fail-on high https://example.com/static/app.js\n")
		fmt.Fprintf(os.Stderr, "  find build -name '*.js' | pagelens scan -stdin -json\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	targets := fs.Args()
	if *stdin {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
				targets = append(targets, line)
			}
		}
		if err := sc.Err(); err != nil {
			exitWithError("reading stdin: %v", err)
		}
	}
	if len(targets) == 0 {
		exitWithUsage("at least one file or URL is required", "pagelens scan [flags] <file|url>...")
	}
	var gate finding.Severity
	if *failOn != "" {
		gate = finding.Severity(strings.ToLower(*failOn))
		if !gate.IsValid() {
			exitWithError("invalid -fail-on %q: want one of %v", *failOn, finding.All())
		}
	}

	cfg, logger := common.setup()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	extOpts, scanOpts, _ := engineOptions(cfg)
	extractor := endpoints.NewExtractor(extOpts...)
	scanner := secrets.NewScanner(scanOpts...)
	fetcher := newFetcher(cfg)

	pool := workerpool.New(cfg.Fetch.Concurrency, workerpool.WithLogger(logger))
	outcomes := workerpool.Map(pool, targets, func(target string) scanOutcome {
		return scanTarget(ctx, target, *base, fetcher, extractor, scanner)
	})
	pool.Close()

	if !*noStore {
		store := openStore(cfg, logger)
		saveOutcomes(store, outcomes, logger)
	}

	// Raw values go to the store only.
	for i := range outcomes {
		for j := range outcomes[i].Findings {
			outcomes[i].Findings[j] = outcomes[i].Findings[j].Redacted()
		}
	}

	if *jsonOut {
		enc := jsonutil.NewStreamEncoder(os.Stdout)
		enc.SetIndent("  ")
		if err := enc.Encode(outcomes); err != nil {
			exitWithError("encoding results: %v", err)
		}
	} else {
		for _, o := range outcomes {
			if o.Error != "" {
				ui.PrintError(fmt.Sprintf("%s: %s", o.Source, o.Error))
				continue
			}
			ui.RenderScan(os.Stdout, o.Source, o.Result, o.Findings)
		}
	}

	if gate != "" && gateTripped(outcomes, gate) {
		ui.PrintWarning(fmt.Sprintf("findings at or above %s severity", gate))
		os.Exit(defaults.ExitFindings)
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func scanTarget(ctx context.Context, target, base string, fetcher *httpclient.Fetcher, extractor *endpoints.Extractor, scanner *secrets.Scanner) scanOutcome {
	out := scanOutcome{Source: target, Findings: []secrets.Finding{}}

	var (
		body []byte
		err  error
	)
	if isURL(target) {
		body, err = fetcher.Fetch(ctx, target)
	} else {
		body, err = os.ReadFile(target)
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}

	text := string(body)
	out.Result = extractor.Extract(text, target)
	resolveAgainst := base
	if resolveAgainst == "" && isURL(target) {
		resolveAgainst = target
	}
	if resolveAgainst != "" {
		out.Resolved = endpoints.Resolve(out.Result, resolveAgainst)
	}

	out.Findings = scanner.Scan(text, target, secrets.ContentTypeFor(target)).Findings
	return out
}

func saveOutcomes(store *storage.Store, outcomes []scanOutcome, logger *slog.Logger) {
	now := time.Now()
	var scripts []string
	for _, o := range outcomes {
		if o.Error != "" {
			continue
		}
		if isURL(o.Source) && observer.IsJavaScript(o.Source) {
			scripts = append(scripts, o.Source)
		}
		if o.Result != nil && o.Result.Total() > 0 {
			if err := store.SaveEndpoints(o.Source, o.Result, now); err != nil {
				logger.Error("saving endpoints", slog.String("source", o.Source), slog.String("error", err.Error()))
			}
		}
		if len(o.Findings) > 0 {
			if err := store.SaveSecrets(o.Source, o.Findings, now); err != nil {
				logger.Error("saving secrets", slog.String("source", o.Source), slog.String("error", err.Error()))
			}
		}
	}
	if len(scripts) > 0 {
		if err := store.SaveJSFiles(scripts); err != nil {
			logger.Error("saving script list", slog.String("error", err.Error()))
		}
	}
}

func gateTripped(outcomes []scanOutcome, gate finding.Severity) bool {
	for _, o := range outcomes {
		for _, f := range o.Findings {
			if f.Severity.Score() >= gate.Score() {
				return true
			}
		}
	}
	return false
}
