package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pagelens/pagelens/pkg/export"
	"github.com/pagelens/pagelens/pkg/ui"
)

// runExport writes stored data in one of the export formats.
func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	formatName := fs.String("format", "json", fmt.Sprintf("Output format: %s", joinNames(export.Formats())))
	data := fs.String("data", "all", fmt.Sprintf("Data to include: %s", joinNames(export.Selections())))
	output := fs.String("o", "", "Output file (default: stdout)")
	unmasked := fs.Bool("unmasked", false, "Include raw secret values")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pagelens export [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  pagelens export -format sarif -o pagelens.sarif\n")
		fmt.Fprintf(os.Stderr, "  pagelens export -format burp -data endpoints > burp.json\n")
		fmt.Fprintf(os.Stderr, "  pagelens export -format pdf -o report.pdf\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	format, err := export.ParseFormat(*formatName)
	if err != nil {
		exitWithError("%v", err)
	}
	sel, err := export.ParseSelection(*data)
	if err != nil {
		exitWithError("%v", err)
	}
	if format == export.FormatPDF && *output == "" && term.IsTerminal(int(os.Stdout.Fd())) {
		exitWithUsage("refusing to write a PDF to the terminal", "pagelens export -format pdf -o report.pdf")
	}

	cfg, logger := common.setup()
	store := openStore(cfg, logger)
	if *unmasked {
		ui.PrintWarning("exporting raw secret values")
	}

	w := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			exitWithError("creating %s: %v", *output, err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	if err := export.Export(bw, store.Dump(), format, export.Options{Selection: sel, Unmasked: *unmasked}); err != nil {
		exitWithError("export: %v", err)
	}
	if err := bw.Flush(); err != nil {
		exitWithError("writing output: %v", err)
	}
	if *output != "" {
		ui.PrintSuccess(fmt.Sprintf("%s export written to %s", format, *output))
	}
}

func joinNames[T ~string](vals []T) string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return strings.Join(out, ", ")
}
