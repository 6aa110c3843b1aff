package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/pagelens/pagelens/pkg/jsonutil"
	"github.com/pagelens/pagelens/pkg/snapshot"
	"github.com/pagelens/pagelens/pkg/ui"
)

// runCompare diffs two stored snapshots of a page.
func runCompare() {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	beforeID := fs.String("before", "", "Snapshot id of the earlier capture")
	afterID := fs.String("after", "", "Snapshot id of the later capture")
	format := fs.String("format", "console", "Output format: console, json")
	latest := fs.Bool("latest", false, "Compare the two most recent snapshots")

	_ = fs.Parse(os.Args[2:])

	// Positional ids: pagelens compare <before> <after>
	args := fs.Args()
	if *beforeID == "" && *afterID == "" && len(args) >= 2 {
		*beforeID, *afterID = args[0], args[1]
	}

	switch *format {
	case "console", "json":
	default:
		exitWithError("Unknown format %q. Supported: console, json", *format)
	}

	cfg, logger := common.setup()
	store := openStore(cfg, logger)

	if *latest {
		snaps := store.GetSnapshots()
		if len(snaps) < 2 {
			exitWithError("need at least two snapshots, the store has %d", len(snaps))
		}
		*beforeID, *afterID = snaps[len(snaps)-2].ID, snaps[len(snaps)-1].ID
	}
	if *beforeID == "" || *afterID == "" {
		exitWithUsage(
			"Both snapshot ids are required.",
			"pagelens compare <before-id> <after-id>\n       pagelens compare -latest\n\nList ids with: pagelens export -format text -data snapshots",
		)
	}

	cmp, err := store.CompareSnapshots(*beforeID, *afterID)
	if errors.Is(err, snapshot.ErrSnapshotNotFound) {
		exitWithError("%v (list ids with: pagelens export -format text -data snapshots)", err)
	}
	if err != nil {
		exitWithError("comparing: %v", err)
	}

	if *format == "json" {
		data, err := jsonutil.MarshalIndent(cmp, "  ")
		if err != nil {
			exitWithError("Marshaling result: %v", err)
		}
		fmt.Println(string(data))
		return
	}
	ui.RenderComparison(os.Stdout, cmp)
}
