package dag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	gocid "github.com/ipfs/go-cid"
)

const symbolicPrefix = "ref: refs/heads/"

// Head is the resolved content of the HEAD record: either attached to a branch
// (which may not exist yet) or detached at a commit.
type Head struct {
	Branch   string
	Detached gocid.Cid
}

// IsDetached reports whether HEAD names a commit directly.
func (h Head) IsDetached() bool { return h.Branch == "" }

func (h Head) String() string {
	if h.IsDetached() {
		return CIDToFilename(h.Detached)
	}
	return symbolicPrefix + h.Branch
}

// RefStore manages branch name -> commit CID mappings as files, plus HEAD.
// Each branch is a file under refs/heads/ whose content is the base32 CID.
type RefStore struct {
	dir      string // refs/heads
	headPath string
	store    *ObjectStore
}

// NewRefStore creates a RefStore whose branches live in dir and whose HEAD is headPath.
// Targets are validated against store.
func NewRefStore(dir, headPath string, store *ObjectStore) (*RefStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, storageFault("create refs dir", err)
	}
	return &RefStore{dir: dir, headPath: headPath, store: store}, nil
}

// ValidateBranchName rejects names that cannot be stored as a ref file.
func ValidateBranchName(name string) error {
	switch {
	case name == "", name == "HEAD":
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	case strings.HasPrefix(name, "-"), strings.HasPrefix(name, "/"), strings.HasSuffix(name, "/"):
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	case strings.Contains(name, ".."), strings.Contains(name, "//"), strings.HasPrefix(name, tempPrefix):
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '\\' || r == ':' {
			return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
		}
	}
	return nil
}

func (r *RefStore) branchPath(name string) string {
	return filepath.Join(r.dir, filepath.FromSlash(name))
}

// Set writes a branch mapping name -> cid, creating or overwriting it.
func (r *RefStore) Set(name string, c gocid.Cid) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	if !r.store.IsCommit(c) {
		return fmt.Errorf("%w: %s is not a stored commit", ErrInvalidTarget, c)
	}
	path := r.branchPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return storageFault("create ref dir", err)
	}
	if err := SafeWrite(path, []byte(CIDToFilename(c)+"\n"), 0644); err != nil {
		return storageFault("write ref "+name, err)
	}
	return nil
}

// Create is Set for a name that must not exist yet.
func (r *RefStore) Create(name string, c gocid.Cid) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	if r.Has(name) {
		return fmt.Errorf("%w: %s", ErrBranchAlreadyExists, name)
	}
	return r.Set(name, c)
}

// Get resolves a branch name to a CID.
func (r *RefStore) Get(name string) (gocid.Cid, error) {
	if ValidateBranchName(name) != nil {
		return gocid.Undef, fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	data, err := os.ReadFile(r.branchPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return gocid.Undef, fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	if err != nil {
		return gocid.Undef, storageFault("read ref "+name, err)
	}
	c, err := ParseCID(string(data))
	if err != nil {
		return gocid.Undef, fmt.Errorf("decode ref %s: %w", name, err)
	}
	return c, nil
}

// Delete removes a branch.
func (r *RefStore) Delete(name string) error {
	if !r.Has(name) {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	if err := os.Remove(r.branchPath(name)); err != nil {
		return storageFault("delete ref "+name, err)
	}
	return nil
}

// Has checks if a branch exists.
func (r *RefStore) Has(name string) bool {
	if ValidateBranchName(name) != nil {
		return false
	}
	info, err := os.Stat(r.branchPath(name))
	return err == nil && info.Mode().IsRegular()
}

// List returns all branch names, sorted.
func (r *RefStore) List() ([]string, error) {
	var names []string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(r.dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, storageFault("list refs", err)
	}
	sort.Strings(names)
	return names, nil
}

// Head reads the HEAD record.
func (r *RefStore) Head() (Head, error) {
	data, err := os.ReadFile(r.headPath)
	if err != nil {
		return Head{}, storageFault("read HEAD", err)
	}
	s := strings.TrimSpace(string(data))
	if branch, ok := strings.CutPrefix(s, symbolicPrefix); ok {
		return Head{Branch: branch}, nil
	}
	c, err := ParseCID(s)
	if err != nil {
		return Head{}, fmt.Errorf("decode HEAD: %w", err)
	}
	return Head{Detached: c}, nil
}

// SetHeadSymbolic attaches HEAD to a branch. The branch need not exist yet.
func (r *RefStore) SetHeadSymbolic(name string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	if err := SafeWrite(r.headPath, []byte(symbolicPrefix+name+"\n"), 0644); err != nil {
		return storageFault("write HEAD", err)
	}
	return nil
}

// SetHeadDetached points HEAD directly at a commit.
func (r *RefStore) SetHeadDetached(c gocid.Cid) error {
	if !r.store.IsCommit(c) {
		return fmt.Errorf("%w: %s is not a stored commit", ErrInvalidTarget, c)
	}
	if err := SafeWrite(r.headPath, []byte(CIDToFilename(c)+"\n"), 0644); err != nil {
		return storageFault("write HEAD", err)
	}
	return nil
}

// ResolveHead returns the commit HEAD points at, or CidUndef when HEAD is
// attached to a branch with no commits yet.
func (r *RefStore) ResolveHead() (gocid.Cid, Head, error) {
	head, err := r.Head()
	if err != nil {
		return gocid.Undef, head, err
	}
	if head.IsDetached() {
		return head.Detached, head, nil
	}
	c, err := r.Get(head.Branch)
	if errors.Is(err, ErrBranchNotFound) {
		return gocid.Undef, head, nil
	}
	return c, head, err
}
