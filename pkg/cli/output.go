package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/pageobject"
	"github.com/devicelab-dev/webfind/pkg/runner"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return "<1ms"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// printElement prints one resolved element.
func printElement(w io.Writer, info core.ElementInfo) {
	fmt.Fprintf(w, "  %s%s%s  %s%s%s\n",
		color(colorBold), info.Name, color(colorReset),
		color(colorDim), info.Locator, color(colorReset))
	visible := "hidden"
	if info.Visible {
		visible = "visible"
	}
	fmt.Fprintf(w, "    <%s> %s at (%g,%g) %gx%g\n",
		info.Tag, visible, info.Bounds.X, info.Bounds.Y, info.Bounds.Width, info.Bounds.Height)
	if text := strings.TrimSpace(info.Text); text != "" {
		fmt.Fprintf(w, "    %q\n", truncate(text, 60))
	}
	if info.ParentOf != "" {
		fmt.Fprintf(w, "    in %s\n", info.ParentOf)
	}
}

func onPageStart(w io.Writer) func(int, *pageobject.Page) {
	return func(worker int, page *pageobject.Page) {
		fmt.Fprintf(w, "\n  %s[worker %d]%s %s%s%s (%s)\n",
			color(colorCyan), worker, color(colorReset),
			color(colorBold), page.Name, color(colorReset), page.SourcePath)
		fmt.Fprintln(w, strings.Repeat("─", 60))
	}
}

func onElement(w io.Writer) func(int, runner.ElementResult) {
	return func(_ int, r runner.ElementResult) {
		if r.Err != nil {
			fmt.Fprintf(w, "  %s✗%s %s %s(%s)%s\n    %s%v%s\n",
				color(colorRed), color(colorReset), r.Path,
				color(colorDim), formatDuration(r.Duration), color(colorReset),
				color(colorRed), r.Err, color(colorReset))
			return
		}
		detail := r.Outcome.String()
		if r.Matches != 1 {
			detail = fmt.Sprintf("%d matches", r.Matches)
		}
		fmt.Fprintf(w, "  %s✓%s %s %s(%s, %s)%s\n",
			color(colorGreen), color(colorReset), r.Path,
			color(colorDim), detail, formatDuration(r.Duration), color(colorReset))
	}
}

// printSummary prints the per-page table and totals.
func printSummary(w io.Writer, result *runner.RunResult) {
	const tableWidth = 84

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-30s %6s %8s %6s %6s %10s  %s\n",
		"Page", "Status", "Elements", "Found", "Fail", "Duration", "Worker")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, p := range result.Pages {
		status, statusColor := "✓ PASS", color(colorGreen)
		if p.Err != nil || p.Failed() > 0 {
			status, statusColor = "✗ FAIL", color(colorRed)
		}
		total := len(p.Elements)
		fmt.Fprintf(w, "  %-30s %s%6s%s %8d %6d %6d %10s  %d\n",
			truncate(p.Page.Name, 30), statusColor, status, color(colorReset),
			total, total-p.Failed(), p.Failed(), formatDuration(p.Duration), p.Worker)
		if p.Err != nil {
			fmt.Fprintf(w, "    %s%v%s\n", color(colorRed), p.Err, color(colorReset))
		}
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusColor := color(colorGreen)
	if !result.Passed() {
		statusColor = color(colorRed)
	}
	fmt.Fprintf(w, "  %s%-30s%s %s%6s%s %8d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, fmt.Sprintf("%d/%d", result.Resolved, result.Total), color(colorReset),
		result.Total, result.Resolved, result.Failed, formatDuration(result.Duration))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	if result.CacheHits > 0 {
		fmt.Fprintf(w, "  %s%d served from cache%s\n", color(colorDim), result.CacheHits, color(colorReset))
	}
}
