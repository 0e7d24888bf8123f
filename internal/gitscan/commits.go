package gitscan

import (
	"context"
	"regexp"
	"strings"
)

// issueKeyRE matches tracker issue keys like QTBUG-12345.
var issueKeyRE = regexp.MustCompile(`^[A-Z]+-\d+$`)

// FixedByTag is a commit carrying Fixes: or Task-number: footers,
// attributed to the release version its branch will ship in.
type FixedByTag struct {
	Repo        string
	Branch      string
	SHA1        string
	Author      string
	Subject     string
	Version     string // empty when it could not be guessed
	TaskNumbers []string
	Fixes       []string
}

// git log record/field separators. Using control characters keeps the
// parse safe against newlines inside commit bodies.
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// ParseCommits lists the commits a change introduced and extracts those
// with issue footers. The release version is guessed from the branch
// name against the repository's branches and tags.
func (r *Repository) ParseCommits(ctx context.Context, change Change) ([]FixedByTag, error) {
	commitRange := change.After
	if change.Before != "" {
		commitRange = change.Before + ".." + change.After
	}

	args := []string{"log", commitRange, "--format=" + recordSep + "%H" + fieldSep + "%an" + fieldSep + "%s" + fieldSep + "%b" + fieldSep}
	if change.Since != "" {
		args = append(args, "--since", change.Since)
	}

	out, err := r.git(ctx, gitTimeout, args...)
	if err != nil {
		return nil, err
	}

	records := strings.Split(strings.Trim(out, recordSep+"\n"), recordSep)
	var result []FixedByTag
	var version string
	versionGuessed := false

	for _, record := range records {
		fields := strings.SplitN(strings.TrimSuffix(strings.TrimSpace(record), fieldSep), fieldSep, 4)
		if len(fields) < 4 {
			continue
		}
		sha1, author, subject, body := fields[0], fields[1], fields[2], fields[3]

		taskNumbers, fixes := footerIssueKeys(body)
		if len(taskNumbers) == 0 && len(fixes) == 0 {
			continue
		}

		// Branches and tags only need listing once per change.
		if !versionGuessed {
			branches, err := r.showRef(ctx, false)
			if err != nil {
				return nil, err
			}
			tags, err := r.showRef(ctx, true)
			if err != nil {
				return nil, err
			}
			version = guessVersion(change.Branch, refNames(branches), refNames(tags))
			versionGuessed = true
		}

		result = append(result, FixedByTag{
			Repo:        r.Name,
			Branch:      cleanBranchName(change.Branch),
			SHA1:        sha1,
			Author:      author,
			Subject:     subject,
			Version:     version,
			TaskNumbers: taskNumbers,
			Fixes:       fixes,
		})
	}
	return result, nil
}

// footerIssueKeys scans a commit body for Task-number: and Fixes:
// footers whose value is a well-formed issue key.
func footerIssueKeys(body string) (taskNumbers, fixes []string) {
	for _, line := range strings.Split(body, "\n") {
		if key, ok := strings.CutPrefix(line, "Task-number:"); ok {
			key = strings.TrimSpace(key)
			if issueKeyRE.MatchString(key) {
				taskNumbers = append(taskNumbers, key)
			}
		}
		if key, ok := strings.CutPrefix(line, "Fixes:"); ok {
			key = strings.TrimSpace(key)
			if issueKeyRE.MatchString(key) {
				fixes = append(fixes, key)
			}
		}
	}
	return taskNumbers, fixes
}

func refNames(refs map[string]string) []string {
	names := make([]string, 0, len(refs))
	for ref := range refs {
		names = append(names, ref)
	}
	return names
}
