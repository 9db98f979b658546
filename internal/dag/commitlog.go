package dag

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"
)

// CommitLog reads and writes commit records and walks the graph they form.
// Nothing here is cached; every walk re-reads the object store.
type CommitLog struct {
	store *ObjectStore
}

// NewCommitLog creates a CommitLog over store.
func NewCommitLog(store *ObjectStore) *CommitLog {
	return &CommitLog{store: store}
}

// LogEntry pairs a commit with its CID.
type LogEntry struct {
	CID    gocid.Cid
	Commit *CommitObject
}

// Write encodes and stores a commit, returning its CID. Parents must already
// be stored commits.
func (cl *CommitLog) Write(commit *CommitObject) (gocid.Cid, error) {
	parents, err := commit.Parents()
	if err != nil {
		return gocid.Undef, err
	}
	for _, p := range parents {
		if !cl.store.IsCommit(p) {
			return gocid.Undef, fmt.Errorf("%w: parent %s is not a stored commit", ErrInvalidTarget, p)
		}
	}
	if commit.V == 0 {
		commit.V = 1
	}
	data, err := commit.Encode()
	if err != nil {
		return gocid.Undef, fmt.Errorf("serialize commit: %w", err)
	}
	c, err := cl.store.PutCommit(data)
	if err != nil {
		return gocid.Undef, fmt.Errorf("store commit: %w", err)
	}
	return c, nil
}

// GetCommit reads and unmarshals a commit by CID.
func (cl *CommitLog) GetCommit(c gocid.Cid) (*CommitObject, error) {
	if c.Defined() && c.Type() != CommitCodec {
		return nil, fmt.Errorf("%w: %s is not a commit", ErrInvalidTarget, CIDToFilename(c))
	}
	data, err := cl.store.Get(c)
	if err != nil {
		return nil, err
	}
	return DecodeCommit(data)
}

// Log walks the first-parent chain from start, returning up to n commits
// (newest first). n <= 0 walks to the root.
func (cl *CommitLog) Log(start gocid.Cid, n int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start
	for current.Defined() && (n <= 0 || len(entries) < n) {
		commit, err := cl.GetCommit(current)
		if err != nil {
			return entries, fmt.Errorf("log %s: %w", CIDToFilename(current), err)
		}
		entries = append(entries, LogEntry{CID: current, Commit: commit})

		if commit.Parent == "" {
			break
		}
		current, err = ParseCID(commit.Parent)
		if err != nil {
			return entries, err
		}
	}
	return entries, nil
}

// IsAncestor reports whether a is reachable from b through first or second
// parents, zero or more steps (so every commit is its own ancestor).
func (cl *CommitLog) IsAncestor(a, b gocid.Cid) (bool, error) {
	if a.Equals(b) {
		return true, nil
	}
	seen := map[gocid.Cid]bool{b: true}
	queue := []gocid.Cid{b}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		commit, err := cl.GetCommit(current)
		if err != nil {
			return false, err
		}
		parents, err := commit.Parents()
		if err != nil {
			return false, err
		}
		for _, p := range parents {
			if p.Equals(a) {
				return true, nil
			}
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return false, nil
}

// MergeBase finds the nearest common ancestor of a and b. Both histories are
// walked breadth-first in lockstep over both parents; the first commit seen
// from both sides wins. ok is false for disjoint histories.
func (cl *CommitLog) MergeBase(a, b gocid.Cid) (base gocid.Cid, ok bool, err error) {
	if a.Equals(b) {
		return a, true, nil
	}
	seen := [2]map[gocid.Cid]bool{{a: true}, {b: true}}
	queues := [2][]gocid.Cid{{a}, {b}}

	for len(queues[0]) > 0 || len(queues[1]) > 0 {
		for side := 0; side < 2; side++ {
			if len(queues[side]) == 0 {
				continue
			}
			current := queues[side][0]
			queues[side] = queues[side][1:]
			if seen[1-side][current] {
				return current, true, nil
			}

			commit, err := cl.GetCommit(current)
			if err != nil {
				return gocid.Undef, false, err
			}
			parents, err := commit.Parents()
			if err != nil {
				return gocid.Undef, false, err
			}
			for _, p := range parents {
				if !seen[side][p] {
					seen[side][p] = true
					queues[side] = append(queues[side], p)
				}
			}
		}
	}
	return gocid.Undef, false, nil
}

// Snapshot returns the file tree of commit c, or an empty snapshot for CidUndef.
func (cl *CommitLog) Snapshot(c gocid.Cid) (Snapshot, error) {
	if !c.Defined() {
		return Snapshot{}, nil
	}
	commit, err := cl.GetCommit(c)
	if err != nil {
		return nil, err
	}
	return commit.Files, nil
}
