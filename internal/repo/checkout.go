package repo

import (
	"fmt"
	"path"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/giclone/internal/dag"
	"github.com/systemshift/giclone/internal/worktree"
)

// CheckoutOptions adjusts Checkout.
type CheckoutOptions struct {
	// Force discards staged changes instead of refusing.
	Force bool
}

// CheckoutResult summarizes what a checkout did to the working tree.
type CheckoutResult struct {
	CID     gocid.Cid
	Branch  string // empty for a detached checkout
	Written []string
	Removed []string
}

// Checkout makes the working tree an exact replica of target's snapshot.
// target is tried as a branch name first, then as a full or abbreviated commit
// CID. Files tracked at the current HEAD but absent from the target are
// removed; untracked files are left alone. HEAD ends attached for a branch and
// detached for a CID.
func (r *Repository) Checkout(target string, opts CheckoutOptions) (*CheckoutResult, error) {
	c, branch, err := r.ResolveRevision(target)
	if err != nil {
		return nil, err
	}
	current, head, err := r.Refs.ResolveHead()
	if err != nil {
		return nil, err
	}
	from, err := r.Commits.Snapshot(current)
	if err != nil {
		return nil, err
	}
	if !opts.Force {
		pending, err := r.pendingChanges(from)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, ErrUncommittedChanges
		}
	}
	to, err := r.Commits.Snapshot(c)
	if err != nil {
		return nil, err
	}

	written, removed, err := r.materialize(from, to)
	if err != nil {
		return nil, err
	}

	if branch != "" {
		err = r.Refs.SetHeadSymbolic(branch)
	} else {
		err = r.Refs.SetHeadDetached(c)
	}
	if err != nil {
		return nil, err
	}
	if !r.index.Empty() {
		if err := r.ClearStaging(); err != nil {
			return nil, err
		}
	}

	reason := fmt.Sprintf("checkout: moving from %s to %s", describeHead(head, current), target)
	if err := r.Reflog.Append("HEAD", current, c, reason); err != nil {
		r.log.Warn("reflog append failed", "err", err)
	}
	r.log.Info("checkout", "target", target, "cid", dag.CIDToFilename(c), "written", len(written), "removed", len(removed))
	return &CheckoutResult{CID: c, Branch: branch, Written: written, Removed: removed}, nil
}

// materialize turns a working tree that holds snapshot from into one that
// holds snapshot to. Every blob and every untracked obstruction is checked
// before the tree is touched. Paths only in from are removed first so a file
// can take the place of a directory and the other way round.
func (r *Repository) materialize(from, to dag.Snapshot) (written, removed []string, err error) {
	if bad := to.DirConflicts(); len(bad) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrPathConflict, strings.Join(bad, ", "))
	}
	blobs := make(map[string]gocid.Cid, len(to))
	for p, s := range to {
		c, err := dag.ParseCID(s)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot entry %s: %w", p, err)
		}
		if !r.Store.Has(c) {
			return nil, nil, fmt.Errorf("blob for %s: %w", p, dag.ErrObjectNotFound)
		}
		blobs[p] = c
	}
	if err := r.checkObstructions(from, to); err != nil {
		return nil, nil, err
	}

	for _, p := range from.Paths() {
		if _, keep := to[p]; keep {
			continue
		}
		if err := r.tree.Remove(p); err != nil && !worktree.IsNotExist(err) {
			return written, removed, &dag.StorageError{Op: "remove " + p, Err: err}
		}
		removed = append(removed, p)
	}
	for _, p := range to.Paths() {
		data, err := r.Store.Get(blobs[p])
		if err != nil {
			return written, removed, fmt.Errorf("blob for %s: %w", p, err)
		}
		if info, err := r.tree.Stat(p); err == nil && info.IsDir() {
			// left empty by the removals above
			if err := r.tree.Remove(p); err != nil {
				return written, removed, &dag.StorageError{Op: "remove " + p, Err: err}
			}
		}
		if err := r.tree.WriteFile(p, data); err != nil {
			return written, removed, &dag.StorageError{Op: "write " + p, Err: err}
		}
		written = append(written, p)
	}
	return written, removed, nil
}

// checkObstructions fails with ErrWorkTreeObstructed when a file of to would
// land on an untracked file's parent directory, or on a directory holding
// files that stay after the paths only in from are removed.
func (r *Repository) checkObstructions(from, to dag.Snapshot) error {
	leaving := func(p string) bool {
		_, inFrom := from[p]
		_, inTo := to[p]
		return inFrom && !inTo
	}
	seen := map[string]bool{}
	for _, p := range to.Paths() {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if seen[dir] {
				break
			}
			seen[dir] = true
			if info, err := r.tree.Stat(dir); err == nil && !info.IsDir() && !leaving(dir) {
				return fmt.Errorf("%w: %s", ErrWorkTreeObstructed, dir)
			}
		}
		info, err := r.tree.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		err = r.tree.Walk(p, func(f string) error {
			if !leaving(f) {
				return fmt.Errorf("%w: %s", ErrWorkTreeObstructed, f)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func describeHead(head dag.Head, c gocid.Cid) string {
	if !head.IsDetached() {
		return head.Branch
	}
	return dag.CIDToFilename(c)
}
