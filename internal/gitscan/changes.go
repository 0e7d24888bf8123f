package gitscan

import "context"

// Change records a branch head moving between two scans. Before is
// empty for newly created branches. Since, when set, widens the commit
// range to a date instead of the before/after pair.
type Change struct {
	Repo   string
	Branch string
	Before string
	After  string
	Since  string
}

// NewChanges fetches the repository and diffs branch heads against
// their state before the fetch. With since set, every branch is
// reported regardless of movement so the caller can scan a date range.
func (r *Repository) NewChanges(ctx context.Context, since string) ([]Change, error) {
	if err := r.EnsureClone(ctx); err != nil {
		return nil, err
	}

	before, err := r.showRef(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := r.fetchHeads(ctx); err != nil {
		return nil, err
	}
	after, err := r.showRef(ctx, false)
	if err != nil {
		return nil, err
	}

	var changes []Change
	for branch, sha1 := range after {
		if since != "" {
			changes = append(changes, Change{Repo: r.Name, Branch: branch, After: sha1, Since: since})
		} else if before[branch] != sha1 {
			changes = append(changes, Change{Repo: r.Name, Branch: branch, Before: before[branch], After: sha1})
		}
	}
	return changes, nil
}
