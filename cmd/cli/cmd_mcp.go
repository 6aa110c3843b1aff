package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/duration"
	"github.com/pagelens/pagelens/pkg/mcpserver"
)

// runMCP serves the store over the Model Context Protocol.
//   - --stdio (default): for IDE integrations
//   - --http <addr>:     streamable HTTP for remote use
func runMCP() {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	httpAddr := fs.String("http", os.Getenv("PAGELENS_HTTP_ADDR"), "HTTP address to listen on (e.g. :8080). Disables stdio.")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pagelens mcp [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Serve captured data and the analysis engines to AI agents.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  pagelens mcp\n")
		fmt.Fprintf(os.Stderr, "  pagelens mcp --http :8080\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	// stdout carries the protocol in stdio mode.
	common.silent = true
	cfg, logger := common.setup()
	ext, sc, dom := engineOptions(cfg)

	srv := mcpserver.New(mcpserver.Config{
		Store:            openStore(cfg, logger),
		Logger:           logger,
		ExtractorOptions: ext,
		ScannerOptions:   sc,
		DomainOptions:    dom,
	})
	srv.MarkReady()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *httpAddr == "" {
		if err := srv.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
			exitWithError("%v", err)
		}
		return
	}

	httpSrv := &http.Server{
		Addr:              *httpAddr,
		Handler:           srv.HTTPHandler(),
		ReadHeaderTimeout: duration.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: streamed responses are long-lived.
		IdleTimeout:    30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("mcp shutdown", slog.String("error", err.Error()))
		}
	}()

	logger.Info("mcp server listening", slog.String("addr", *httpAddr), slog.String("version", defaults.Version))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		exitWithError("%v", err)
	}
}
