package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/systemshift/giclone/internal/dag"
	"github.com/systemshift/giclone/internal/worktree"
)

// Index is the staging area: blobs staged for the next commit plus paths
// staged for removal. It is persisted as JSON after every change.
type Index struct {
	path    string
	files   dag.Snapshot
	removed map[string]bool
}

type indexFile struct {
	V       int          `json:"v"`
	Files   dag.Snapshot `json:"files"`
	Removed []string     `json:"removed,omitempty"`
}

// LoadIndex reads the index at path; a missing file is an empty index.
func LoadIndex(path string) (*Index, error) {
	idx := &Index{path: path, files: dag.Snapshot{}, removed: map[string]bool{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, &dag.StorageError{Op: "read index", Err: err}
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	for p, c := range f.Files {
		idx.files[p] = c
	}
	for _, p := range f.Removed {
		idx.removed[p] = true
	}
	return idx, nil
}

func (idx *Index) save() error {
	removed := make([]string, 0, len(idx.removed))
	for p := range idx.removed {
		removed = append(removed, p)
	}
	sort.Strings(removed)
	if err := dag.SafeWriteJSON(idx.path, indexFile{V: 1, Files: idx.files, Removed: removed}); err != nil {
		return &dag.StorageError{Op: "write index", Err: err}
	}
	return nil
}

// Empty reports whether nothing is staged.
func (idx *Index) Empty() bool {
	return len(idx.files) == 0 && len(idx.removed) == 0
}

// Files returns a copy of the staged path -> blob mapping.
func (idx *Index) Files() dag.Snapshot {
	return idx.files.Clone()
}

// Removed returns the paths staged for removal, sorted.
func (idx *Index) Removed() []string {
	out := make([]string, 0, len(idx.removed))
	for p := range idx.removed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Apply overlays the staged changes on a parent snapshot.
func (idx *Index) Apply(parent dag.Snapshot) dag.Snapshot {
	next := parent.Clone()
	for p, c := range idx.files {
		next[p] = c
	}
	for p := range idx.removed {
		delete(next, p)
	}
	return next
}

// set stages path -> cid. Entries that would turn path's ancestors or
// descendants into both a file and a directory are dropped, and those tracked
// at head are staged for removal.
func (idx *Index) set(path, cid string, head dag.Snapshot) {
	for p := range idx.files {
		if overlaps(p, path) {
			delete(idx.files, p)
		}
	}
	for p := range head {
		if overlaps(p, path) {
			idx.removed[p] = true
		}
	}
	idx.files[path] = cid
	delete(idx.removed, path)
}

// overlaps reports whether one path lies strictly below the other.
func overlaps(a, b string) bool {
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}

// redundant reports whether applying the index to head changes nothing.
func (idx *Index) redundant(head dag.Snapshot) bool {
	return idx.Apply(head).Equal(head)
}

func (idx *Index) remove(path string, tracked bool) {
	delete(idx.files, path)
	if tracked {
		idx.removed[path] = true
	}
}

func (idx *Index) clear() {
	idx.files = dag.Snapshot{}
	idx.removed = map[string]bool{}
}

// Staged returns the current staging mapping (currentStaging).
func (r *Repository) Staged() dag.Snapshot {
	return r.index.Files()
}

// StagedRemovals returns the paths staged for removal.
func (r *Repository) StagedRemovals() []string {
	return r.index.Removed()
}

// checkPath normalizes p and rejects paths outside the tree or inside the
// meta directory.
func checkPath(p string) (string, error) {
	clean := worktree.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s is outside the repository", ErrPathNotFound, p)
	}
	if clean == MetaDirName || strings.HasPrefix(clean, MetaDirName+"/") {
		return "", fmt.Errorf("%w: %s is inside %s", ErrPathNotFound, p, MetaDirName)
	}
	return clean, nil
}

// Stage writes data as a blob and records path -> blob in the index,
// replacing any earlier entry. The blob is durable before the index names it.
func (r *Repository) Stage(path string, data []byte) error {
	clean, err := checkPath(path)
	if err != nil {
		return err
	}
	if clean == "." {
		return fmt.Errorf("%w: cannot stage the tree root as a file", ErrPathNotFound)
	}
	head, err := r.headSnapshot()
	if err != nil {
		return err
	}
	if err := r.stage(clean, data, head); err != nil {
		return err
	}
	return r.index.save()
}

func (r *Repository) stage(path string, data []byte, head dag.Snapshot) error {
	c, err := r.Store.Put(data)
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	r.index.set(path, dag.CIDToFilename(c), head)
	r.log.Debug("staged", "path", path, "cid", dag.CIDToFilename(c), "size", len(data))
	return nil
}

// Add stages every file named by paths, expanding directories recursively.
// Ignored files are skipped silently. Every path is checked before anything
// is staged, so a missing path leaves the index untouched. Returns the staged
// paths in order.
func (r *Repository) Add(paths ...string) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	for _, p := range paths {
		clean, err := checkPath(p)
		if err != nil {
			return nil, err
		}
		info, err := r.tree.Stat(clean)
		if worktree.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
		}
		if err != nil {
			return nil, &dag.StorageError{Op: "stat " + clean, Err: err}
		}
		if !info.IsDir() {
			if r.isIgnore(clean) {
				r.log.Debug("ignored", "path", clean)
				continue
			}
			if !seen[clean] {
				seen[clean] = true
				files = append(files, clean)
			}
			continue
		}
		err = r.tree.Walk(clean, func(f string) error {
			if r.isIgnore(f) {
				r.log.Debug("ignored", "path", f)
				return nil
			}
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
			return nil
		})
		if err != nil {
			return nil, &dag.StorageError{Op: "walk " + clean, Err: err}
		}
	}

	head, err := r.headSnapshot()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		data, err := r.tree.ReadFile(f)
		if err != nil {
			return nil, &dag.StorageError{Op: "read " + f, Err: err}
		}
		if err := r.stage(f, data, head); err != nil {
			return nil, err
		}
	}
	if len(files) > 0 {
		if err := r.index.save(); err != nil {
			return nil, err
		}
	}
	r.log.Info("add", "files", len(files))
	return files, nil
}

// Remove stages the removal of tracked paths (files or directories) and
// deletes them from the working tree. Paths neither committed at HEAD nor
// staged fail with ErrPathNotFound.
func (r *Repository) Remove(paths ...string) ([]string, error) {
	headSnap, err := r.headSnapshot()
	if err != nil {
		return nil, err
	}
	next := r.index.Apply(headSnap)

	var targets []string
	for _, p := range paths {
		clean, err := checkPath(p)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, tracked := range next.Paths() {
			if clean == "." || tracked == clean || strings.HasPrefix(tracked, clean+"/") {
				targets = append(targets, tracked)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: %s is not tracked", ErrPathNotFound, p)
		}
	}

	for _, p := range targets {
		_, inHead := headSnap[p]
		r.index.remove(p, inHead)
		if err := r.tree.Remove(p); err != nil && !worktree.IsNotExist(err) {
			return nil, &dag.StorageError{Op: "remove " + p, Err: err}
		}
	}
	if err := r.index.save(); err != nil {
		return nil, err
	}
	r.log.Info("rm", "files", len(targets))
	return targets, nil
}

// ClearStaging empties the staging area.
func (r *Repository) ClearStaging() error {
	r.index.clear()
	return r.index.save()
}

// headSnapshot returns the snapshot HEAD resolves to, empty on an unborn branch.
func (r *Repository) headSnapshot() (dag.Snapshot, error) {
	c, _, err := r.Refs.ResolveHead()
	if err != nil {
		return nil, err
	}
	return r.Commits.Snapshot(c)
}

// pendingChanges reports whether the staging area would change head. A
// non-empty index that changes nothing (files re-added unmodified) is cleared.
func (r *Repository) pendingChanges(head dag.Snapshot) (bool, error) {
	if r.index.Empty() {
		return false, nil
	}
	if !r.index.redundant(head) {
		return true, nil
	}
	r.log.Debug("dropping staged entries identical to HEAD")
	return false, r.ClearStaging()
}
