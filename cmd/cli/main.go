package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/ui"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(defaults.ExitUserError)
	}

	switch os.Args[1] {
	case "watch", "observe":
		runWatch()
	case "scan":
		runScan()
	case "export":
		runExport()
	case "compare", "diff":
		runCompare()
	case "stats":
		runStats()
	case "clear":
		runClear()
	case "presets":
		runPresets()
	case "mcp":
		runMCP()
	case "version", "-v", "--version":
		fmt.Printf("%s %s (%s/%s, %s)\n", defaults.ToolName, defaults.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	case "-h", "--help", "help":
		printUsage()
	default:
		ui.PrintError(fmt.Sprintf("unknown command %q", os.Args[1]))
		fmt.Fprintln(os.Stderr)
		printUsage()
		os.Exit(defaults.ExitUserError)
	}
}

func printUsage() {
	ui.PrintBanner()

	fmt.Println(ui.SectionStyle.Render("COMMANDS"))
	fmt.Println()
	commands := []struct{ name, desc string }{
		{"watch", "Open a page in headless Chrome and record what it loads"},
		{"scan", "Scan local files or fetched URLs for endpoints and secrets"},
		{"export", "Write stored data as json, csv, burp, linkfinder, sarif, text or pdf"},
		{"compare", "Diff two stored snapshots"},
		{"stats", "Show store totals"},
		{"clear", "Delete everything in the store"},
		{"presets", "List embedded configuration presets"},
		{"mcp", "Serve the store to AI agents over MCP (stdio or HTTP)"},
		{"version", "Print version"},
	}
	for _, c := range commands {
		fmt.Printf("  %s  %s\n", ui.ValueStyle.Render(fmt.Sprintf("%-8s", c.name)), c.desc)
	}

	fmt.Println()
	fmt.Println(ui.SectionStyle.Render("EXAMPLES"))
	fmt.Println()
	for _, ex := range []string{
		"pagelens watch https://example.com",
		"pagelens scan -preset strict dist/*.js",
		"pagelens export -format sarif -o pagelens.sarif",
		"pagelens compare example.com_1772366400000 example.com_1772366460000",
		"pagelens mcp --http :8080",
	} {
		fmt.Printf("  %s\n", ex)
	}
	fmt.Println()
	fmt.Printf("Run %s for command flags.\n", ui.ValueStyle.Render("pagelens <command> -h"))
}
