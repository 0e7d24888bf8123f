package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// maxLogRedirects bounds redirect following when resolving the signed
// log download URL from the GitHub API.
const maxLogRedirects = 4

// GitHubSource fetches the log of a single GitHub Actions job.
type GitHubSource struct {
	Owner string
	Repo  string
	JobID int64

	// client is injected by tests; production paths build one from the
	// token in NewGitHubSource.
	client *github.Client
}

// NewGitHubSource parses an "owner/repo/jobID" spec and builds an
// authenticated source. An empty token falls back to anonymous access,
// which works for public repositories only.
func NewGitHubSource(ctx context.Context, spec, token string) (*GitHubSource, error) {
	parts := strings.Split(spec, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("ingest: github spec %q must be owner/repo/jobID", spec)
	}
	jobID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ingest: github spec %q: job ID must be numeric", spec)
	}

	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	return &GitHubSource{
		Owner:  parts[0],
		Repo:   parts[1],
		JobID:  jobID,
		client: github.NewClient(httpClient),
	}, nil
}

// Open implements Source. The GitHub API answers with a redirect to a
// short-lived signed URL; go-github resolves it and returns the final
// location, which is then fetched directly.
func (s *GitHubSource) Open(ctx context.Context) (io.ReadCloser, error) {
	logURL, _, err := s.client.Actions.GetWorkflowJobLogs(ctx, s.Owner, s.Repo, s.JobID, maxLogRedirects)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve log URL for %s: %w", s.Description(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build request for %s: %w", s.Description(), err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch log for %s: %w", s.Description(), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ingest: fetch log for %s: unexpected status %s", s.Description(), resp.Status)
	}
	return maybeGzip(resp.Body)
}

// Description implements Source.
func (s *GitHubSource) Description() string {
	return fmt.Sprintf("github://%s/%s/jobs/%d", s.Owner, s.Repo, s.JobID)
}
