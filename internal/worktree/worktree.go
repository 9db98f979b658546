// Package worktree abstracts the working directory a repository checks files
// out into and stages files from.
//
// The repository only ever sees the Tree interface. Production code backs it
// with the OS file system; tests use an in-memory file system.
package worktree

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Tree is the working-directory capability. Paths are slash-separated and
// relative to the tree root.
type Tree interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating parent directories as needed.
	WriteFile(path string, data []byte) error

	// Remove deletes a file and any parent directories it leaves empty.
	Remove(path string) error

	// Stat returns file information; missing paths yield fs.ErrNotExist.
	Stat(path string) (fs.FileInfo, error)

	// Walk calls fn for every regular file at or below root, in lexical order.
	Walk(root string, fn func(path string) error) error
}

// BillyTree implements Tree over a go-billy file system.
type BillyTree struct {
	fs      billy.Filesystem
	exclude map[string]bool // top-level names never listed or walked
}

var _ Tree = (*BillyTree)(nil)

// New wraps fs. Directories named in exclude at the tree root are skipped by
// Walk (the repository meta directory, typically).
func New(fs billy.Filesystem, exclude ...string) *BillyTree {
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}
	return &BillyTree{fs: fs, exclude: ex}
}

// NewOS returns a Tree rooted at dir on the host file system.
func NewOS(dir string, exclude ...string) *BillyTree {
	return New(osfs.New(dir), exclude...)
}

// NewMemory returns an empty in-memory Tree.
func NewMemory(exclude ...string) *BillyTree {
	return New(memfs.New(), exclude...)
}

// Filesystem exposes the underlying billy file system.
func (t *BillyTree) Filesystem() billy.Filesystem { return t.fs }

// Clean normalizes a user-supplied relative path to the form used in snapshots.
func Clean(p string) string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "./")
	if p == "/" {
		return "."
	}
	return strings.TrimPrefix(p, "/")
}

func (t *BillyTree) ReadFile(p string) ([]byte, error) {
	f, err := t.fs.Open(Clean(p))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (t *BillyTree) WriteFile(p string, data []byte) error {
	p = Clean(p)
	if dir := path.Dir(p); dir != "." {
		if err := t.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return util.WriteFile(t.fs, p, data, 0644)
}

func (t *BillyTree) Remove(p string) error {
	p = Clean(p)
	if err := t.fs.Remove(p); err != nil {
		return err
	}
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		entries, err := t.fs.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := t.fs.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

func (t *BillyTree) Stat(p string) (fs.FileInfo, error) {
	return t.fs.Stat(Clean(p))
}

func (t *BillyTree) Walk(root string, fn func(path string) error) error {
	root = Clean(root)
	if t.excluded(root) {
		return nil
	}
	var files []string
	err := util.Walk(t.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		p = Clean(p)
		if info.IsDir() {
			if p != root && t.excluded(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (t *BillyTree) excluded(p string) bool {
	first, _, _ := strings.Cut(p, "/")
	return t.exclude[first]
}

// IsNotExist reports whether err means the path is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
