package gitscan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lockPollInterval is how often a blocked Lock retries.
const lockPollInterval = 250 * time.Millisecond

// Lock serializes access to a repository clone across processes via a
// sidecar lock file. Unlock removes the file.
type Lock struct {
	path string
}

// Acquire takes the repository lock, waiting until it is free or the
// context is cancelled. The lock file records the owning PID to help
// debugging stale locks.
func (r *Repository) Acquire(ctx context.Context) (*Lock, error) {
	path := r.Path() + "_lock"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("gitscan: create workdir: %w", err)
	}

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("gitscan: create lock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gitscan: waiting for lock %s: %w", path, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// Release frees the lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("gitscan: release lock %s: %w", l.path, err)
	}
	return nil
}
