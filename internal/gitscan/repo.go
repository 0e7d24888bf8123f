// Package gitscan watches bare git clones for new commits and extracts
// issue-closing footers (Fixes:, Task-number:) from their messages.
package gitscan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	cloneTimeout = 6 * time.Minute
	fetchTimeout = 3 * time.Minute
	gitTimeout   = time.Minute
)

// Repository is a bare clone under the working directory, identified by
// its remote-relative name (e.g. "qt/qtbase").
type Repository struct {
	Name     string
	RepoBase string // remote URL prefix the name is appended to
	WorkDir  string
}

// Path returns the local bare-clone directory.
func (r *Repository) Path() string {
	return filepath.Join(r.WorkDir, r.Name)
}

// git runs a git command against the bare clone and returns stdout.
func (r *Repository) git(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append([]string{"--git-dir", r.Path()}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.Output()
	if err != nil {
		if detail := strings.TrimSpace(stderrOf(err)); detail != "" {
			return "", fmt.Errorf("gitscan: git %s (%s): %s: %w", args[0], r.Name, detail, err)
		}
		return "", fmt.Errorf("gitscan: git %s (%s): %w", args[0], r.Name, err)
	}
	return string(out), nil
}

func stderrOf(err error) string {
	if ee, ok := err.(*exec.ExitError); ok {
		return string(ee.Stderr)
	}
	return ""
}

// EnsureClone creates the bare clone if it does not exist yet.
func (r *Repository) EnsureClone(ctx context.Context) error {
	if _, err := os.Stat(r.Path()); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.Path()), 0755); err != nil {
		return fmt.Errorf("gitscan: create workdir for %s: %w", r.Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "clone", "--bare", r.RepoBase+r.Name, r.Path())
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gitscan: clone %s: %s", r.Name, strings.TrimSpace(string(out)))
	}
	return nil
}

// fetchHeads updates all branch heads from origin, pruning deleted ones.
func (r *Repository) fetchHeads(ctx context.Context) error {
	_, err := r.git(ctx, fetchTimeout, "fetch", "origin", "+refs/heads/*:refs/heads/*", "--prune")
	return err
}

// showRef lists branch heads (or tags) as a ref → sha1 map.
func (r *Repository) showRef(ctx context.Context, tags bool) (map[string]string, error) {
	refType := "--heads"
	if tags {
		refType = "--tags"
	}
	out, err := r.git(ctx, gitTimeout, "show-ref", refType)
	if err != nil {
		// show-ref exits 1 with no output when there are no refs at all
		// (fresh repo). Anything else is a real failure.
		var ee *exec.ExitError
		if errors.As(err, &ee) && ee.ExitCode() == 1 && strings.TrimSpace(string(ee.Stderr)) == "" {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return refsToMap(out), nil
}

// refsToMap parses show-ref output ("<sha1> <ref>" per line).
func refsToMap(out string) map[string]string {
	refs := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			refs[fields[1]] = fields[0]
		}
	}
	return refs
}

// cleanBranchName strips the refs/heads/ prefix.
func cleanBranchName(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

// cleanTagName strips the refs/tags/ prefix and a leading "v".
func cleanTagName(ref string) string {
	ref = strings.TrimPrefix(ref, "refs/tags/")
	return strings.TrimPrefix(ref, "v")
}
