package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/zulandar/signalbox/internal/classify"
)

// termWidth returns the terminal width, or a sensible default when
// stdout is not a terminal (pipes, CI).
func termWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 120
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 120
	}
	return w
}

// truncate shortens s to max characters, appending an ellipsis.
func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// printResult renders a classification result for the terminal.
func printResult(out io.Writer, source string, result classify.Result, showAll bool) {
	width := termWidth()

	fmt.Fprintf(out, "Log: %s\n", source)
	if result.Unclassified() {
		fmt.Fprintln(out, "Verdict: unclassified")
	} else {
		verdict := "failure"
		if result.ShouldRetry {
			verdict = "retryable"
		}
		fmt.Fprintf(out, "Verdict: %s (%s)\n", verdict, result.Decisive.Rule.Name)
	}
	fmt.Fprintf(out, "Retry:   %v\n\n", result.ShouldRetry)

	fmt.Fprintln(out, result.Summary)

	if result.Detail != "" {
		fmt.Fprintln(out)
		for _, line := range strings.Split(result.Detail, "\n") {
			fmt.Fprintf(out, "  | %s\n", truncate(line, width-4))
		}
	}

	if showAll && len(result.Findings) > 1 {
		fmt.Fprintf(out, "\nAll findings (%d):\n", len(result.Findings))
		for _, f := range result.Findings {
			fmt.Fprintf(out, "  line %d  %-24s %s\n", f.Line, f.Rule.Name, truncate(f.Text, width-36))
		}
	}
}
