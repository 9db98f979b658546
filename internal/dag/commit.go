package dag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	gocid "github.com/ipfs/go-cid"
)

// Snapshot is a full repository tree: relative slash path -> blob CID (base32).
type Snapshot map[string]string

// Paths returns the snapshot's paths in sorted order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether both snapshots map the same paths to the same blobs.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// DirConflicts returns, sorted, the paths that are also a directory prefix of
// another path ("d" alongside "d/x"). Such a snapshot cannot be checked out.
func (s Snapshot) DirConflicts() []string {
	dirs := map[string]bool{}
	for p := range s {
		for i := strings.LastIndexByte(p, '/'); i > 0; i = strings.LastIndexByte(p[:i], '/') {
			if dirs[p[:i]] {
				break
			}
			dirs[p[:i]] = true
		}
	}
	var out []string
	for p := range s {
		if dirs[p] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// CommitObject is an immutable snapshot record in the commit graph.
// Encoded with encoding/json, whose sorted map keys make the bytes (and the CID)
// a pure function of the fields.
type CommitObject struct {
	V           int       `json:"v"`
	Parent      string    `json:"parent,omitempty"`       // CID (base32) of the first parent
	MergeParent string    `json:"merge_parent,omitempty"` // second parent, merge commits only
	Author      string    `json:"author,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Files       Snapshot  `json:"files"`
	Message     string    `json:"message"`
}

// Encode produces the stored bytes of the commit.
func (c *CommitObject) Encode() ([]byte, error) {
	if c.Files == nil {
		c.Files = Snapshot{}
	}
	return json.Marshal(c)
}

// DecodeCommit parses stored commit bytes.
func DecodeCommit(data []byte) (*CommitObject, error) {
	var commit CommitObject
	if err := json.Unmarshal(data, &commit); err != nil {
		return nil, fmt.Errorf("unmarshal commit: %w", err)
	}
	if commit.Files == nil {
		commit.Files = Snapshot{}
	}
	return &commit, nil
}

// Parents returns the parent CIDs, first parent first.
func (c *CommitObject) Parents() ([]gocid.Cid, error) {
	var parents []gocid.Cid
	for _, p := range []string{c.Parent, c.MergeParent} {
		if p == "" {
			continue
		}
		pc, err := ParseCID(p)
		if err != nil {
			return nil, fmt.Errorf("parent: %w", err)
		}
		parents = append(parents, pc)
	}
	return parents, nil
}

// IsMerge reports whether the commit records a second parent.
func (c *CommitObject) IsMerge() bool {
	return c.MergeParent != ""
}
