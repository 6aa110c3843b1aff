package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pagelens/pagelens/pkg/config"
	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/ui"
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	jsonOut := fs.Bool("json", false, "Print as JSON")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := common.setup()
	stats := openStore(cfg, logger).GetStats()
	if *jsonOut {
		data, err := jsonutil.MarshalIndent(stats, "  ")
		if err != nil {
			exitWithError("Marshaling stats: %v", err)
		}
		fmt.Println(string(data))
		return
	}
	ui.RenderStats(os.Stdout, stats)
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	yes := fs.Bool("y", false, "Do not ask for confirmation")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := common.setup()
	store := openStore(cfg, logger)
	if !*yes {
		fmt.Fprintf(os.Stderr, "Delete everything in %s? [y/N] ", storeLabel(store.Path()))
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			ui.PrintInfo("aborted")
			return
		}
	}
	if err := store.Clear(); err != nil {
		exitWithError("clearing store: %v", err)
	}
	ui.PrintSuccess("store cleared")
}

func runPresets() {
	for _, name := range config.Presets() {
		cfg, err := config.Preset(name)
		if err != nil {
			ui.PrintError(fmt.Sprintf("%s: %v", name, err))
			continue
		}
		fmt.Printf("  %s  capture %s, alert threshold %d, log %s\n",
			ui.ValueStyle.Render(fmt.Sprintf("%-8s", name)),
			cfg.Observer.CaptureTimeout, cfg.Risk.AlertThreshold, cfg.LogLevel)
	}
}
