package repo

import (
	"errors"
	"fmt"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/giclone/internal/dag"
)

// HeadInfo describes where HEAD currently is.
type HeadInfo struct {
	Branch   string    // empty when detached
	CID      gocid.Cid // CidUndef on an unborn branch
	Detached bool
}

// Head resolves HEAD.
func (r *Repository) Head() (HeadInfo, error) {
	c, head, err := r.Refs.ResolveHead()
	if err != nil {
		return HeadInfo{}, err
	}
	return HeadInfo{Branch: head.Branch, CID: c, Detached: head.IsDetached()}, nil
}

// Commit records the parent snapshot overlaid with the staged changes as a new
// commit, advances HEAD's branch (or HEAD itself when detached) and clears the
// staging area. The commit object is stored before any reference moves. A
// staging area that would leave the parent unchanged is cleared and reported
// as ErrNothingToCommit.
func (r *Repository) Commit(message string) (gocid.Cid, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return gocid.Undef, ErrEmptyMessage
	}
	parent, head, err := r.Refs.ResolveHead()
	if err != nil {
		return gocid.Undef, err
	}
	parentSnap, err := r.Commits.Snapshot(parent)
	if err != nil {
		return gocid.Undef, fmt.Errorf("read parent: %w", err)
	}
	pending, err := r.pendingChanges(parentSnap)
	if err != nil {
		return gocid.Undef, err
	}
	if !pending {
		return gocid.Undef, ErrNothingToCommit
	}
	next := r.index.Apply(parentSnap)
	if bad := next.DirConflicts(); len(bad) > 0 {
		return gocid.Undef, fmt.Errorf("%w: %s", ErrPathConflict, strings.Join(bad, ", "))
	}

	commit := &dag.CommitObject{
		V:         1,
		Author:    r.Config.Author.String(),
		Timestamp: r.now().UTC(),
		Files:     next,
		Message:   message,
	}
	if parent.Defined() {
		commit.Parent = dag.CIDToFilename(parent)
	}
	c, err := r.Commits.Write(commit)
	if err != nil {
		return gocid.Undef, err
	}

	action := "commit"
	if !parent.Defined() {
		action = "commit (initial)"
	}
	if err := r.advanceHead(head, parent, c, action+": "+firstLine(message)); err != nil {
		return gocid.Undef, err
	}
	if err := r.ClearStaging(); err != nil {
		return gocid.Undef, err
	}
	r.log.Info("commit", "cid", dag.CIDToFilename(c), "files", len(next), "branch", head.Branch)
	return c, nil
}

// advanceHead moves the branch HEAD is attached to, or HEAD itself when
// detached, from one commit to another, and journals the move.
func (r *Repository) advanceHead(head dag.Head, from, to gocid.Cid, reason string) error {
	ref := "HEAD"
	if head.IsDetached() {
		if err := r.Refs.SetHeadDetached(to); err != nil {
			return err
		}
	} else {
		if err := r.Refs.Set(head.Branch, to); err != nil {
			return err
		}
		ref = head.Branch
	}
	if err := r.Reflog.Append(ref, from, to, reason); err != nil {
		r.log.Warn("reflog append failed", "err", err)
	}
	return nil
}

// Log returns up to n commits (n <= 0 for all) on HEAD's first-parent chain,
// newest first. An unborn HEAD has an empty log.
func (r *Repository) Log(n int) ([]dag.LogEntry, error) {
	c, _, err := r.Refs.ResolveHead()
	if err != nil {
		return nil, err
	}
	if !c.Defined() {
		return nil, nil
	}
	return r.Commits.Log(c, n)
}

// Branch creates a branch at the commit HEAD resolves to. HEAD itself does
// not move.
func (r *Repository) Branch(name string) (gocid.Cid, error) {
	c, _, err := r.Refs.ResolveHead()
	if err != nil {
		return gocid.Undef, err
	}
	if !c.Defined() {
		return gocid.Undef, fmt.Errorf("branch %s: %w", name, ErrNoHead)
	}
	if err := r.Refs.Create(name, c); err != nil {
		return gocid.Undef, err
	}
	if err := r.Reflog.Append(name, gocid.Undef, c, "branch: Created from HEAD"); err != nil {
		r.log.Warn("reflog append failed", "err", err)
	}
	r.log.Info("branch", "name", name, "cid", dag.CIDToFilename(c))
	return c, nil
}

// BranchInfo is one row of the branch listing.
type BranchInfo struct {
	Name    string
	CID     gocid.Cid
	Current bool
}

// Branches lists all branches, marking the one HEAD is attached to.
func (r *Repository) Branches() ([]BranchInfo, error) {
	head, err := r.Refs.Head()
	if err != nil {
		return nil, err
	}
	names, err := r.Refs.List()
	if err != nil {
		return nil, err
	}
	out := make([]BranchInfo, 0, len(names))
	for _, name := range names {
		c, err := r.Refs.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, BranchInfo{Name: name, CID: c, Current: !head.IsDetached() && head.Branch == name})
	}
	return out, nil
}

// DeleteBranch removes a branch other than the checked-out one. The commits
// stay in the store.
func (r *Repository) DeleteBranch(name string) error {
	head, err := r.Refs.Head()
	if err != nil {
		return err
	}
	if !head.IsDetached() && head.Branch == name {
		return fmt.Errorf("%w: %s", ErrCurrentBranch, name)
	}
	if err := r.Refs.Delete(name); err != nil {
		return err
	}
	r.log.Info("branch deleted", "name", name)
	return nil
}

// ReflogEntries returns up to n reference moves, newest first.
func (r *Repository) ReflogEntries(n int) ([]dag.ReflogEntry, error) {
	return r.Reflog.Entries(n)
}

// ResolveRevision resolves a branch name, "HEAD", or a full or abbreviated
// commit CID. branch is set when rev named a branch.
func (r *Repository) ResolveRevision(rev string) (c gocid.Cid, branch string, err error) {
	if rev == "HEAD" {
		c, _, err := r.Refs.ResolveHead()
		if err != nil {
			return gocid.Undef, "", err
		}
		if !c.Defined() {
			return gocid.Undef, "", ErrNoHead
		}
		return c, "", nil
	}
	if r.Refs.Has(rev) {
		c, err := r.Refs.Get(rev)
		return c, rev, err
	}
	c, err = r.Store.Resolve(rev)
	if errors.Is(err, dag.ErrAmbiguousPrefix) || errors.Is(err, dag.ErrStorageFault) {
		return gocid.Undef, "", err
	}
	if err != nil {
		return gocid.Undef, "", fmt.Errorf("%w: %s", ErrRefNotFound, rev)
	}
	if !r.Store.IsCommit(c) {
		return gocid.Undef, "", fmt.Errorf("%w: %s is not a commit", ErrRefNotFound, rev)
	}
	return c, "", nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
