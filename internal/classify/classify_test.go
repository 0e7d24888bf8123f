package classify

import (
	"strings"
	"testing"

	"github.com/zulandar/signalbox/internal/rules"
)

const testRules = `
rules:
  - name: compile-error
    pattern: 'error: (?P<message>.+)$'
    should_retry: false
    priority: 50
    summary: "Compilation failed on line {{.Line}}: {{.Captures.message}}"
    context_before: 1
    context_after: 1
  - name: make-error
    pattern: 'make.*\*\*\* .*Error \d+'
    should_retry: false
    priority: 10
    summary: "make reported an error."
  - name: network-timeout
    pattern: 'Connection timed out'
    should_retry: true
    priority: 80
    summary: "A network timeout occurred; the build should be retried."
  - name: disk-full
    pattern: 'No space left on device'
    should_retry: true
    priority: 80
    summary: "The build host ran out of disk space."
    suppresses: [make-error]
`

func testRuleset(t *testing.T) *rules.Ruleset {
	t.Helper()
	rs, err := rules.Parse([]byte(testRules))
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	return rs
}

func TestScan_SingleFailure(t *testing.T) {
	log := strings.Join([]string{
		"g++ -c widget.cpp",
		"widget.cpp:42:10: error: expected ';' before 'return'",
		"compilation terminated.",
	}, "\n")

	res, err := Scan(strings.NewReader(log), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Unclassified() {
		t.Fatal("result is unclassified, want a compile-error finding")
	}
	if res.ShouldRetry {
		t.Error("ShouldRetry = true, want false for a compile error")
	}
	if want := "Compilation failed on line 2: expected ';' before 'return'"; res.Summary != want {
		t.Errorf("Summary = %q, want %q", res.Summary, want)
	}
	// context_before: 1, context_after: 1 around the match.
	wantDetail := "g++ -c widget.cpp\nwidget.cpp:42:10: error: expected ';' before 'return'\ncompilation terminated."
	if res.Detail != wantDetail {
		t.Errorf("Detail = %q, want %q", res.Detail, wantDetail)
	}
}

func TestScan_HighestPriorityWins(t *testing.T) {
	log := strings.Join([]string{
		"widget.cpp:1: error: oops",
		"curl: (28) Connection timed out",
	}, "\n")

	res, err := Scan(strings.NewReader(log), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// network-timeout (priority 80) is decisive over compile-error (50),
	// but the non-retryable compile error pins the verdict.
	if res.Decisive.Rule.Name != "network-timeout" {
		t.Errorf("Decisive rule = %q, want network-timeout", res.Decisive.Rule.Name)
	}
	if !strings.Contains(res.Summary, "network timeout") {
		t.Errorf("Summary = %q, want the timeout summary", res.Summary)
	}
	if res.ShouldRetry {
		t.Error("ShouldRetry = true, want false when a real failure also matched")
	}
	if len(res.Findings) != 2 {
		t.Errorf("len(Findings) = %d, want 2", len(res.Findings))
	}
}

func TestScan_AllRetryable(t *testing.T) {
	log := "curl: (28) Connection timed out\nwrite failed: No space left on device\n"

	res, err := Scan(strings.NewReader(log), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.ShouldRetry {
		t.Error("ShouldRetry = false, want true when every finding is retryable")
	}
}

func TestScan_EqualPriorityEarliestLineWins(t *testing.T) {
	log := "write failed: No space left on device\ncurl: (28) Connection timed out\n"

	res, err := Scan(strings.NewReader(log), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Summary, "disk space") {
		t.Errorf("Summary = %q, want the disk-full summary (earlier line)", res.Summary)
	}
}

func TestScan_Suppression(t *testing.T) {
	log := strings.Join([]string{
		"write failed: No space left on device",
		"make[2]: *** [all] Error 2",
	}, "\n")

	res, err := Scan(strings.NewReader(log), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("len(Findings) = %d, want 1 (make-error suppressed)", len(res.Findings))
	}
	if res.Findings[0].Rule.Name != "disk-full" {
		t.Errorf("surviving finding = %q, want disk-full", res.Findings[0].Rule.Name)
	}
	if !res.ShouldRetry {
		t.Error("ShouldRetry = false, want true once the follow-on error is suppressed")
	}
}

func TestScan_OneFindingPerLine(t *testing.T) {
	// One line matching both network-timeout and compile-error patterns;
	// the priority-ordered ruleset picks the timeout only.
	log := "error: Connection timed out\n"

	res, err := Scan(strings.NewReader(log), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Findings) != 1 {
		t.Fatalf("len(Findings) = %d, want 1", len(res.Findings))
	}
	if res.Findings[0].Rule.Name != "network-timeout" {
		t.Errorf("finding = %q, want network-timeout", res.Findings[0].Rule.Name)
	}
}

func TestScan_Unclassified(t *testing.T) {
	res, err := Scan(strings.NewReader("all good\nnothing to see\n"), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Unclassified() {
		t.Fatal("Unclassified() = false, want true")
	}
	if res.ShouldRetry {
		t.Error("ShouldRetry = true, want false for an unclassified log")
	}
	if want := "No significant log messages were recognized; the build log needs manual review."; res.Summary != want {
		t.Errorf("Summary = %q, want %q", res.Summary, want)
	}
}

func TestScan_BuildURLAppended(t *testing.T) {
	meta := Metadata{BuildURL: "https://ci.example.org/job/qtbase/123/console"}

	res, err := Scan(strings.NewReader("widget.cpp:1: error: oops\n"), testRuleset(t), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(res.Summary, "\n\n  Build log: "+meta.BuildURL) {
		t.Errorf("Summary = %q, want build log link appended", res.Summary)
	}

	res, err = Scan(strings.NewReader("nothing\n"), testRuleset(t), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(res.Summary, "\n\n  Build log: "+meta.BuildURL) {
		t.Errorf("unclassified Summary = %q, want build log link appended", res.Summary)
	}
}

func TestScan_ScrubsBeforeMatching(t *testing.T) {
	// Timestamp prefix and ANSI color would defeat an anchored pattern.
	log := "12:34:56 \x1b[31merror: tinted failure\x1b[0m\n"

	res, err := Scan(strings.NewReader(log), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Unclassified() {
		t.Fatal("result is unclassified, want the scrubbed line to match")
	}
	if got := res.Findings[0].Captures["message"]; got != "tinted failure" {
		t.Errorf("capture = %q, want %q", got, "tinted failure")
	}
}

func TestScan_OversizedLine(t *testing.T) {
	// A 5 MB line (minified JS, base64 blob) must not abort the scan;
	// it gets split and the rest of the log still classifies.
	log := strings.Repeat("a", 5<<20) + "\nwidget.cpp:1: error: oops\n"

	res, err := Scan(strings.NewReader(log), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Unclassified() {
		t.Fatal("result is unclassified, want the compile error after the huge line")
	}
	if res.Decisive.Rule.Name != "compile-error" {
		t.Errorf("Decisive rule = %q, want compile-error", res.Decisive.Rule.Name)
	}
	if !strings.Contains(res.Summary, "Compilation failed") {
		t.Errorf("Summary = %q, want the compile-error summary", res.Summary)
	}
}

func TestScan_EmptyLog(t *testing.T) {
	res, err := Scan(strings.NewReader(""), testRuleset(t), Metadata{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Unclassified() {
		t.Error("Unclassified() = false, want true for an empty log")
	}
}
