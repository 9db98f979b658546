package repo

import (
	"fmt"
	"sort"

	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/giclone/internal/dag"
)

// MergeKind is how a merge was resolved.
type MergeKind int

const (
	// MergeUpToDate means the other branch was already contained in HEAD.
	MergeUpToDate MergeKind = iota
	// MergeFastForward means HEAD moved straight to the other branch's tip.
	MergeFastForward
	// MergeCommitted means a two-parent merge commit was written.
	MergeCommitted
)

func (k MergeKind) String() string {
	switch k {
	case MergeUpToDate:
		return "up-to-date"
	case MergeFastForward:
		return "fast-forward"
	case MergeCommitted:
		return "merge"
	default:
		return fmt.Sprintf("MergeKind(%d)", int(k))
	}
}

// MergeResult describes a successful merge.
type MergeResult struct {
	Kind   MergeKind
	Ours   gocid.Cid
	Theirs gocid.Cid
	Base   gocid.Cid // CidUndef for disjoint histories or non-three-way outcomes
	Commit gocid.Cid // new HEAD commit; equals Ours when up to date
}

// Merge brings the named branch into HEAD. A conflicting merge returns a
// *ConflictError and changes nothing on disk.
func (r *Repository) Merge(branch string) (*MergeResult, error) {
	ours, head, err := r.Refs.ResolveHead()
	if err != nil {
		return nil, err
	}
	if !ours.Defined() {
		return nil, fmt.Errorf("merge %s: %w", branch, ErrNoHead)
	}
	oursSnap, err := r.Commits.Snapshot(ours)
	if err != nil {
		return nil, err
	}
	pending, err := r.pendingChanges(oursSnap)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrUncommittedChanges
	}
	theirs, err := r.Refs.Get(branch)
	if err != nil {
		return nil, err
	}
	res := &MergeResult{Ours: ours, Theirs: theirs, Commit: ours}
	logger := r.log.With("op", "merge", "branch", branch)

	contained, err := r.Commits.IsAncestor(theirs, ours)
	if err != nil {
		return nil, err
	}
	if contained {
		res.Kind = MergeUpToDate
		logger.Info("already up to date")
		return res, nil
	}

	theirsSnap, err := r.Commits.Snapshot(theirs)
	if err != nil {
		return nil, err
	}

	ff, err := r.Commits.IsAncestor(ours, theirs)
	if err != nil {
		return nil, err
	}
	if ff {
		if _, _, err := r.materialize(oursSnap, theirsSnap); err != nil {
			return nil, err
		}
		if err := r.advanceHead(head, ours, theirs, "merge "+branch+": Fast-forward"); err != nil {
			return nil, err
		}
		res.Kind = MergeFastForward
		res.Commit = theirs
		logger.Info("fast-forward", "to", dag.CIDToFilename(theirs))
		return res, nil
	}

	baseSnap := dag.Snapshot{}
	base, ok, err := r.Commits.MergeBase(ours, theirs)
	if err != nil {
		return nil, err
	}
	if ok {
		res.Base = base
		if baseSnap, err = r.Commits.Snapshot(base); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no common ancestor, merging as two-way")
	}

	merged, conflicts := ThreeWay(baseSnap, oursSnap, theirsSnap)
	if len(conflicts) > 0 {
		logger.Info("conflicts", "paths", len(conflicts))
		return nil, &ConflictError{Paths: conflicts}
	}

	into := head.Branch
	if head.IsDetached() {
		into = "HEAD"
	}
	commit := &dag.CommitObject{
		V:           1,
		Parent:      dag.CIDToFilename(ours),
		MergeParent: dag.CIDToFilename(theirs),
		Author:      r.Config.Author.String(),
		Timestamp:   r.now().UTC(),
		Files:       merged,
		Message:     fmt.Sprintf("Merge branch '%s' into %s", branch, into),
	}
	c, err := r.Commits.Write(commit)
	if err != nil {
		return nil, err
	}
	if _, _, err := r.materialize(oursSnap, merged); err != nil {
		return nil, err
	}
	if err := r.advanceHead(head, ours, c, "merge "+branch+": Merge made by the three-way strategy"); err != nil {
		return nil, err
	}
	res.Kind = MergeCommitted
	res.Commit = c
	logger.Info("merged", "cid", dag.CIDToFilename(c), "files", len(merged))
	return res, nil
}

// ThreeWay merges two snapshots against their common ancestor, path by path.
// A side "changed" a path when its entry differs from the base, with absence
// counting as an entry. A path conflicts when both sides changed it and
// disagree on the result. An empty base makes every path an add/add check. A
// clean result where one side's file sits on the other side's directory
// reports the file path as conflicting.
// Conflicts are returned sorted; merged is only meaningful without conflicts.
func ThreeWay(base, ours, theirs dag.Snapshot) (merged dag.Snapshot, conflicts []string) {
	paths := map[string]bool{}
	for p := range ours {
		paths[p] = true
	}
	for p := range theirs {
		paths[p] = true
	}

	merged = dag.Snapshot{}
	for p := range paths {
		o, t, b := ours[p], theirs[p], base[p]
		var result string
		switch {
		case o == t:
			result = o
		case o == b:
			result = t
		case t == b:
			result = o
		default:
			conflicts = append(conflicts, p)
			continue
		}
		if result != "" {
			merged[p] = result
		}
	}
	if len(conflicts) == 0 {
		conflicts = merged.DirConflicts()
	}
	sort.Strings(conflicts)
	return merged, conflicts
}
