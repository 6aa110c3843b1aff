package main

import (
	"fmt"
	"os"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/ui"
)

// exitWithError prints a formatted error message and exits with
// defaults.ExitUserError.
func exitWithError(format string, args ...any) {
	exitWithCode(defaults.ExitUserError, format, args...)
}

// exitWithCode prints a formatted error message and exits with code.
func exitWithCode(code int, format string, args ...any) {
	ui.PrintError(fmt.Sprintf(format, args...))
	os.Exit(code)
}

// exitWithUsage prints an error message followed by a usage hint, then exits.
func exitWithUsage(msg, usage string) {
	ui.PrintError(msg)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage:", usage)
	os.Exit(defaults.ExitUserError)
}
