// Package ingest acquires raw CI build logs from their various homes:
// local files, Jenkins console URLs and GitHub Actions jobs.
package ingest

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Source is a handle to one raw build log.
type Source interface {
	// Open returns the log contents. The caller closes the reader.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Description identifies the source for display and storage.
	Description() string
}

// Resolve maps a scan argument to a Source: http(s) URLs become HTTP
// sources, everything else is treated as a local file path.
func Resolve(arg string) (Source, error) {
	if arg == "" {
		return nil, fmt.Errorf("ingest: log source is required")
	}
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return &HTTPSource{URL: arg}, nil
	}
	return &FileSource{Path: arg}, nil
}

// FileSource reads a log from the local filesystem.
type FileSource struct {
	Path string
}

// Open implements Source.
func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", s.Path, err)
	}
	return maybeGzip(f)
}

// Description implements Source.
func (s *FileSource) Description() string { return s.Path }

// HTTPSource fetches a log over HTTP, e.g. a Jenkins consoleText URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// JenkinsConsoleURL appends the consoleText suffix to a Jenkins build
// URL unless it is already a raw log URL.
func JenkinsConsoleURL(buildURL string) string {
	if strings.HasSuffix(buildURL, "/consoleText") {
		return buildURL
	}
	return strings.TrimRight(buildURL, "/") + "/consoleText"
}

// Open implements Source.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build request for %s: %w", s.URL, err)
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch %s: %w", s.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ingest: fetch %s: unexpected status %s", s.URL, resp.Status)
	}

	if resp.Header.Get("Content-Encoding") == "gzip" {
		return wrapGzip(resp.Body)
	}
	return maybeGzip(resp.Body)
}

// Description implements Source.
func (s *HTTPSource) Description() string { return s.URL }

// maybeGzip sniffs the stream for a gzip magic header and decompresses
// transparently. Jenkins archives rotated logs gzipped with no
// content-type hint.
func maybeGzip(rc io.ReadCloser) (io.ReadCloser, error) {
	br := newPeekReader(rc)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		rc.Close()
		return nil, fmt.Errorf("ingest: sniff stream: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return wrapGzip(br)
	}
	return br, nil
}

func wrapGzip(rc io.ReadCloser) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("ingest: gzip: %w", err)
	}
	return &gzipReadCloser{gz: gz, under: rc}, nil
}

// gzipReadCloser closes both the gzip layer and the underlying stream.
type gzipReadCloser struct {
	gz    *gzip.Reader
	under io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	underErr := g.under.Close()
	if gzErr != nil {
		return gzErr
	}
	return underErr
}
