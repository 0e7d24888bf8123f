// Package classify scans raw CI build logs against a rule table and
// produces a diagnosis: what failed, whether the build is worth an
// automatic retry, and a human-readable summary.
package classify

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/zulandar/signalbox/internal/rules"
)

// maxLineBytes bounds a single log line. CI logs occasionally contain
// multi-megabyte lines (minified JS, base64 blobs); anything longer is
// split rather than aborting the scan.
const maxLineBytes = 4 * 1024 * 1024

// Metadata carries build identity into summary templates.
type Metadata struct {
	Project  string
	Branch   string
	BuildURL string
	Platform string
}

// Finding is a single rule match within a log.
type Finding struct {
	Rule     *rules.Rule
	Line     int    // 1-based line number of the match
	Text     string // the matched line, scrubbed
	Detail   string // matched line plus configured context lines
	Captures map[string]string
}

// Result is the engine's verdict for one build log.
type Result struct {
	Detail      string
	ShouldRetry bool
	Summary     string
	Decisive    Finding // the finding Detail and Summary come from; zero when unclassified
	Findings    []Finding
}

// Unclassified reports whether the engine found nothing it recognizes.
func (r Result) Unclassified() bool {
	return len(r.Findings) == 0
}

// Scan reads a build log and classifies it against the ruleset.
// The decisive finding is the highest-priority match; among equal
// priorities the earliest line wins. ShouldRetry is true only when
// every surviving finding belongs to a retryable rule — a single real
// failure pins the build regardless of how many flaky-infrastructure
// patterns also matched.
func Scan(r io.Reader, rs *rules.Ruleset, meta Metadata) (Result, error) {
	lines, err := readLines(r)
	if err != nil {
		return Result{}, fmt.Errorf("classify: read log: %w", err)
	}

	var findings []Finding
	for i, line := range lines {
		for ri := range rs.Rules {
			rule := &rs.Rules[ri]
			m := rule.Pattern.FindStringSubmatchIndex(line)
			if m == nil {
				continue
			}
			findings = append(findings, Finding{
				Rule:     rule,
				Line:     i + 1,
				Text:     line,
				Detail:   excerpt(lines, i, rule.ContextBefore, rule.ContextAfter),
				Captures: captures(rule.Pattern, line),
			})
			// One finding per line: the ruleset is priority-ordered,
			// so the first matching rule is the most specific.
			break
		}
	}

	findings = applySuppression(findings)

	if len(findings) == 0 {
		return unclassified(meta), nil
	}

	decisive := findings[0]
	retry := true
	for _, f := range findings {
		if f.Rule.Priority > decisive.Rule.Priority {
			decisive = f
		}
		if !f.Rule.ShouldRetry {
			retry = false
		}
	}

	summary, err := renderSummary(decisive, meta)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Detail:      decisive.Detail,
		ShouldRetry: retry,
		Summary:     summary,
		Decisive:    decisive,
		Findings:    findings,
	}, nil
}

// readLines consumes the whole log, scrubbing each line. Lines longer
// than maxLineBytes are split at the limit so a single pathological
// line cannot abort the scan.
func readLines(r io.Reader) ([]string, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var lines []string
	var partial []byte
	for {
		chunk, err := br.ReadSlice('\n')
		partial = append(partial, chunk...)
		if err == bufio.ErrBufferFull {
			if len(partial) >= maxLineBytes {
				lines = append(lines, Scrub(string(partial)))
				partial = partial[:0]
			}
			continue
		}
		if err == io.EOF {
			if len(partial) > 0 {
				lines = append(lines, Scrub(string(partial)))
			}
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, Scrub(strings.TrimSuffix(string(partial), "\n")))
		partial = partial[:0]
	}
}

// excerpt returns the matched line with up to before/after context lines.
func excerpt(lines []string, idx, before, after int) string {
	lo := idx - before
	if lo < 0 {
		lo = 0
	}
	hi := idx + after + 1
	if hi > len(lines) {
		hi = len(lines)
	}
	return strings.Join(lines[lo:hi], "\n")
}

// captures maps named subexpressions to their matched text.
func captures(re *regexp.Regexp, line string) map[string]string {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	names := re.SubexpNames()
	var caps map[string]string
	for i, name := range names {
		if i == 0 || name == "" || i >= len(m) {
			continue
		}
		if caps == nil {
			caps = make(map[string]string)
		}
		caps[name] = m[i]
	}
	return caps
}

// applySuppression drops findings whose rule is suppressed by another
// finding's rule. A noisy follow-on pattern (say, "make: *** Error 2")
// adds nothing once the compile error that caused it has matched.
func applySuppression(findings []Finding) []Finding {
	if len(findings) < 2 {
		return findings
	}
	suppressed := make(map[string]bool)
	for _, f := range findings {
		for _, target := range f.Rule.Suppresses {
			suppressed[target] = true
		}
	}
	if len(suppressed) == 0 {
		return findings
	}
	kept := findings[:0]
	for _, f := range findings {
		if !suppressed[f.Rule.Name] {
			kept = append(kept, f)
		}
	}
	return kept
}

// summaryData is the template context for rule summaries.
type summaryData struct {
	Project  string
	Branch   string
	BuildURL string
	Platform string
	Line     int
	Detail   string
	Captures map[string]string
}

func renderSummary(f Finding, meta Metadata) (string, error) {
	var b strings.Builder
	err := f.Rule.Summary.Execute(&b, summaryData{
		Project:  meta.Project,
		Branch:   meta.Branch,
		BuildURL: meta.BuildURL,
		Platform: meta.Platform,
		Line:     f.Line,
		Detail:   f.Detail,
		Captures: f.Captures,
	})
	if err != nil {
		return "", fmt.Errorf("classify: render summary for rule %q: %w", f.Rule.Name, err)
	}
	summary := strings.TrimRight(b.String(), "\n")
	if meta.BuildURL != "" {
		summary += "\n\n  Build log: " + meta.BuildURL
	}
	return summary, nil
}

// unclassified is the result for logs where no rule matched.
func unclassified(meta Metadata) Result {
	summary := "No significant log messages were recognized; the build log needs manual review."
	if meta.BuildURL != "" {
		summary += "\n\n  Build log: " + meta.BuildURL
	}
	return Result{Summary: summary}
}
