// Package fixture implements expected-output regression records for the
// classification engine. A fixture pairs a raw sample log (foo.log)
// with a YAML sidecar (foo.expected.yaml) holding the detail, retry
// verdict and summary the engine must produce for it. Verifying the
// fixture set is how rule changes are kept honest.
package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// expectedSuffix is the sidecar suffix next to each .log sample.
const expectedSuffix = ".expected.yaml"

// Expected is the stored expectation for one sample log.
type Expected struct {
	Detail      string    `yaml:"detail"`
	ShouldRetry BoolOrInt `yaml:"should_retry"`
	Summary     string    `yaml:"summary"`
}

// BoolOrInt decodes YAML booleans as well as the legacy 0/1 integer
// form that older expectation files use.
type BoolOrInt bool

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BoolOrInt) UnmarshalYAML(node *yaml.Node) error {
	switch node.Value {
	case "0", "false", "False":
		*b = false
	case "1", "true", "True":
		*b = true
	default:
		return fmt.Errorf("fixture: should_retry must be a boolean or 0/1, got %q", node.Value)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler, writing the legacy 0/1 form so
// rewritten files stay diffable against historical ones.
func (b BoolOrInt) MarshalYAML() (interface{}, error) {
	if b {
		return 1, nil
	}
	return 0, nil
}

// Fixture is one sample log plus its expectation.
type Fixture struct {
	Name     string // base name without extension, e.g. "jenkins-compile-error"
	LogPath  string
	Expected Expected
}

// Discover finds all fixtures under dir: every *.log file with a
// matching sidecar. Logs without a sidecar are reported as an error so
// unverified samples cannot linger silently.
func Discover(dir string) ([]Fixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("fixture: read dir %s: %w", dir, err)
	}

	var fixtures []Fixture
	var missing []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".log")
		logPath := filepath.Join(dir, e.Name())
		expPath := filepath.Join(dir, name+expectedSuffix)

		exp, err := loadExpected(expPath)
		if os.IsNotExist(err) {
			missing = append(missing, e.Name())
			continue
		}
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, Fixture{Name: name, LogPath: logPath, Expected: exp})
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("fixture: samples without expectations: %s", strings.Join(missing, ", "))
	}

	sort.Slice(fixtures, func(i, j int) bool { return fixtures[i].Name < fixtures[j].Name })
	return fixtures, nil
}

// loadExpected reads one sidecar file.
func loadExpected(path string) (Expected, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Expected{}, err
		}
		return Expected{}, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	var exp Expected
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return Expected{}, fmt.Errorf("fixture: parse %s: %w", path, err)
	}
	return exp, nil
}

// WriteExpected rewrites the sidecar for a fixture from engine output.
func WriteExpected(dir, name string, exp Expected) error {
	data, err := yaml.Marshal(exp)
	if err != nil {
		return fmt.Errorf("fixture: marshal expectation for %s: %w", name, err)
	}
	path := filepath.Join(dir, name+expectedSuffix)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("fixture: write %s: %w", path, err)
	}
	return nil
}
