package fixture

import (
	"fmt"
	"os"

	"github.com/zulandar/signalbox/internal/classify"
	"github.com/zulandar/signalbox/internal/rules"
)

// Mismatch describes one field where engine output diverged from the
// stored expectation.
type Mismatch struct {
	Fixture string
	Field   string // "detail", "should_retry" or "summary"
	Want    string
	Got     string
}

// Report is the outcome of verifying a fixture directory.
type Report struct {
	Checked    int
	Mismatches []Mismatch
}

// OK reports whether every fixture matched.
func (r Report) OK() bool {
	return len(r.Mismatches) == 0
}

// Verify classifies every sample log under dir and diffs the result
// against its stored expectation.
func Verify(dir string, rs *rules.Ruleset) (Report, error) {
	fixtures, err := Discover(dir)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, fx := range fixtures {
		result, err := classifyFixture(fx, rs)
		if err != nil {
			return Report{}, err
		}
		report.Checked++
		report.Mismatches = append(report.Mismatches, diff(fx, result)...)
	}
	return report, nil
}

// Update reclassifies every sample log under dir and rewrites the
// sidecars from current engine output. Returns the fixtures whose
// expectations changed.
func Update(dir string, rs *rules.Ruleset) ([]string, error) {
	fixtures, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, fx := range fixtures {
		result, err := classifyFixture(fx, rs)
		if err != nil {
			return nil, err
		}
		exp := Expected{
			Detail:      result.Detail,
			ShouldRetry: BoolOrInt(result.ShouldRetry),
			Summary:     result.Summary,
		}
		if exp == fx.Expected {
			continue
		}
		if err := WriteExpected(dir, fx.Name, exp); err != nil {
			return nil, err
		}
		changed = append(changed, fx.Name)
	}
	return changed, nil
}

func classifyFixture(fx Fixture, rs *rules.Ruleset) (classify.Result, error) {
	f, err := os.Open(fx.LogPath)
	if err != nil {
		return classify.Result{}, fmt.Errorf("fixture: open %s: %w", fx.LogPath, err)
	}
	defer f.Close()
	return classify.Scan(f, rs, classify.Metadata{})
}

func diff(fx Fixture, got classify.Result) []Mismatch {
	var out []Mismatch
	if got.Detail != fx.Expected.Detail {
		out = append(out, Mismatch{Fixture: fx.Name, Field: "detail", Want: fx.Expected.Detail, Got: got.Detail})
	}
	if got.ShouldRetry != bool(fx.Expected.ShouldRetry) {
		out = append(out, Mismatch{
			Fixture: fx.Name,
			Field:   "should_retry",
			Want:    fmt.Sprintf("%v", bool(fx.Expected.ShouldRetry)),
			Got:     fmt.Sprintf("%v", got.ShouldRetry),
		})
	}
	if got.Summary != fx.Expected.Summary {
		out = append(out, Mismatch{Fixture: fx.Name, Field: "summary", Want: fx.Expected.Summary, Got: got.Summary})
	}
	return out
}
