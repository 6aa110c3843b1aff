package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/pagelens/pagelens/pkg/defaults"
)

var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex

	// stderr receives banners and status lines.
	stderr io.Writer = os.Stderr
)

// SetSilent suppresses banners and status lines.
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled.
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output.
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled.
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// DetectColor turns color off when NO_COLOR is set or stderr is not a
// terminal.
func DetectColor() {
	if os.Getenv("NO_COLOR") != "" || termenv.NewOutput(os.Stderr).Profile == termenv.Ascii {
		SetNoColor(true)
	}
}

const bannerArt = `
                          __
    ____  ____ _____ ____  / /__  ____  _____
   / __ \/ __ ` + "`" + `/ __ ` + "`" + `/ _ \/ / _ \/ __ \/ ___/
  / /_/ / /_/ / /_/ /  __/ /  __/ / / (__  )
 / .___/\__,_/\__, /\___/_/\___/_/ /_/____/
/_/          /____/
`

// PrintBanner prints the application banner with version info.
func PrintBanner() {
	if IsSilent() {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(stderr, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(stderr, "                  v%s\n\n", VersionStyle.Render(defaults.Version))
}

// PrintDivider prints a divider line.
func PrintDivider() {
	fmt.Fprintln(stderr, DividerStyle.Render(strings.Repeat("-", 60)))
}

// PrintSection prints a section header.
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(stderr)
	fmt.Fprintln(stderr, SectionStyle.Render("> "+title))
	PrintDivider()
}

// PrintConfigLine prints a single key/value configuration line.
func PrintConfigLine(key, value string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(stderr, "  %s %s\n", LabelStyle.Render(fmt.Sprintf("%-14s", key+":")), value)
}

// PrintSuccess prints a success message.
func PrintSuccess(message string) {
	fmt.Fprintln(stderr, SuccessStyle.Render("  [+] "+message))
}

// PrintError prints an error message. Errors are shown in silent mode too.
func PrintError(message string) {
	fmt.Fprintln(stderr, FailStyle.Render("  [X] "+message))
}

// PrintWarning prints a warning message.
func PrintWarning(message string) {
	fmt.Fprintln(stderr, WarningStyle.Render("  [!] "+message))
}

// PrintInfo prints an info message.
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(stderr, "  %s %s\n", BannerStyle.Render("*"), message)
}

// BracketPart is one bracketed field of a result line.
type BracketPart struct {
	Text  string
	Style lipgloss.Style
}

// Bracketed renders parts nuclei-style: [critical] [cloud] value
func Bracketed(parts ...BracketPart) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(BracketStyle.Render("["))
		b.WriteString(part.Style.Render(part.Text))
		b.WriteString(BracketStyle.Render("]"))
	}
	return b.String()
}
