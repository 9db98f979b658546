package repo

import (
	"sort"

	"github.com/systemshift/giclone/internal/dag"
	"github.com/systemshift/giclone/internal/worktree"
)

// Changes lists the paths that differ between two snapshots.
type Changes struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Empty reports whether no path differs.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// DiffSnapshots compares a against b. Each list is sorted.
func DiffSnapshots(a, b dag.Snapshot) Changes {
	var ch Changes
	for p, bc := range b {
		ac, ok := a[p]
		switch {
		case !ok:
			ch.Added = append(ch.Added, p)
		case ac != bc:
			ch.Modified = append(ch.Modified, p)
		}
	}
	for p := range a {
		if _, ok := b[p]; !ok {
			ch.Removed = append(ch.Removed, p)
		}
	}
	sort.Strings(ch.Added)
	sort.Strings(ch.Removed)
	sort.Strings(ch.Modified)
	return ch
}

// Diff compares the snapshots of two revisions (see ResolveRevision).
func (r *Repository) Diff(revA, revB string) (Changes, error) {
	a, err := r.revisionSnapshot(revA)
	if err != nil {
		return Changes{}, err
	}
	b, err := r.revisionSnapshot(revB)
	if err != nil {
		return Changes{}, err
	}
	return DiffSnapshots(a, b), nil
}

func (r *Repository) revisionSnapshot(rev string) (dag.Snapshot, error) {
	c, _, err := r.ResolveRevision(rev)
	if err != nil {
		return nil, err
	}
	return r.Commits.Snapshot(c)
}

// Status is the state of the staging area and working tree relative to HEAD.
type Status struct {
	Head HeadInfo

	// Staged is HEAD's snapshot against the snapshot the next commit would record.
	Staged Changes

	// Modified and Deleted are tracked files whose working copy differs from
	// the staged or committed blob.
	Modified []string
	Deleted  []string

	// Untracked are files in the working tree that are neither tracked nor ignored.
	Untracked []string
}

// Clean reports whether there is nothing staged and the working tree matches.
func (s *Status) Clean() bool {
	return s.Staged.Empty() && len(s.Modified) == 0 && len(s.Deleted) == 0 && len(s.Untracked) == 0
}

// Status compares HEAD, the staging area and the working tree.
func (r *Repository) Status() (*Status, error) {
	head, err := r.Head()
	if err != nil {
		return nil, err
	}
	headSnap, err := r.Commits.Snapshot(head.CID)
	if err != nil {
		return nil, err
	}
	next := r.index.Apply(headSnap)
	st := &Status{Head: head, Staged: DiffSnapshots(headSnap, next)}

	for _, p := range next.Paths() {
		data, err := r.tree.ReadFile(p)
		if err != nil {
			if worktree.IsNotExist(err) {
				st.Deleted = append(st.Deleted, p)
				continue
			}
			return nil, &dag.StorageError{Op: "read " + p, Err: err}
		}
		c, err := dag.BlobCID(data)
		if err != nil {
			return nil, err
		}
		if dag.CIDToFilename(c) != next[p] {
			st.Modified = append(st.Modified, p)
		}
	}

	err = r.tree.Walk(".", func(p string) error {
		if _, tracked := next[p]; tracked || r.isIgnore(p) {
			return nil
		}
		st.Untracked = append(st.Untracked, p)
		return nil
	})
	if err != nil {
		return nil, &dag.StorageError{Op: "walk working tree", Err: err}
	}
	return st, nil
}
