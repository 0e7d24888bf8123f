package classify

import (
	"regexp"
	"strings"
)

var (
	// ansiRE matches ANSI escape sequences (colors, cursor movement).
	ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

	// timestampRE matches leading CI timestamps in the common forms
	// "12:34:56 ", "[12:34:56] " and ISO "2024-05-01T12:34:56.789Z ".
	timestampRE = regexp.MustCompile(`^(\[?\d{2}:\d{2}:\d{2}(\.\d+)?\]?\s+|\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z?\s+)`)
)

// Scrub normalizes a raw log line before pattern matching: ANSI escape
// sequences are removed, a leading timestamp is stripped, and trailing
// carriage returns and whitespace are trimmed.
func Scrub(line string) string {
	line = strings.TrimRight(line, "\r\n\t ")
	line = ansiRE.ReplaceAllString(line, "")
	line = timestampRE.ReplaceAllString(line, "")
	return line
}
