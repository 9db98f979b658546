// Package repo is the version-control engine: staging, commits, branches,
// checkout and merge over the content-addressed store in package dag.
package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/systemshift/giclone/internal/config"
	"github.com/systemshift/giclone/internal/dag"
	"github.com/systemshift/giclone/internal/ignore"
	"github.com/systemshift/giclone/internal/logging"
	"github.com/systemshift/giclone/internal/worktree"
)

// MetaDirName is the repository marker directory at the working-tree root.
const MetaDirName = ".giclone"

// IgnoreFunc reports whether a slash-separated relative path must not be staged.
type IgnoreFunc func(path string) bool

// Repository is the top-level facade for one repository. Several may be open
// in one process; they share nothing.
type Repository struct {
	root    string
	Config  *config.Config
	Store   *dag.ObjectStore
	Refs    *dag.RefStore
	Commits *dag.CommitLog
	Reflog  *dag.Reflog

	index    *Index
	tree     worktree.Tree
	isIgnore IgnoreFunc
	log      logging.Logger
	now      func() time.Time
}

// Option customizes Open and Init.
type Option func(*Repository)

// WithWorkTree replaces the OS-backed working tree.
func WithWorkTree(t worktree.Tree) Option {
	return func(r *Repository) { r.tree = t }
}

// WithLogger replaces the config-derived logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithIgnore replaces the ignore-file predicate.
func WithIgnore(fn IgnoreFunc) Option {
	return func(r *Repository) { r.isIgnore = fn }
}

// WithClock sets the time source stamped on commits.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func metaDir(root string) string {
	return filepath.Join(root, MetaDirName)
}

// Init creates a repository at root and opens it. HEAD is attached to the
// configured default branch, which has no commits yet.
func Init(root string, opts ...Option) (*Repository, error) {
	mx := metaDir(root)
	if _, err := os.Stat(filepath.Join(mx, "HEAD")); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryExists, root)
	}

	for _, dir := range []string{
		mx,
		filepath.Join(mx, "objects"),
		filepath.Join(mx, "refs", "heads"),
		filepath.Join(mx, "logs"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &dag.StorageError{Op: "create " + dir, Err: err}
		}
	}

	cfg, err := config.Load(filepath.Join(mx, config.FileName))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(mx, config.FileName)); errors.Is(err, fs.ErrNotExist) {
		data, err := cfg.Marshal()
		if err != nil {
			return nil, fmt.Errorf("encode config: %w", err)
		}
		if err := dag.SafeWrite(filepath.Join(mx, config.FileName), data, 0644); err != nil {
			return nil, &dag.StorageError{Op: "write config", Err: err}
		}
	}
	ignorePath := filepath.Join(mx, "ignore")
	if _, err := os.Stat(ignorePath); errors.Is(err, fs.ErrNotExist) {
		if err := dag.SafeWrite(ignorePath, []byte(MetaDirName+"/\n"), 0644); err != nil {
			return nil, &dag.StorageError{Op: "write ignore", Err: err}
		}
	}

	store, err := dag.NewObjectStore(filepath.Join(mx, "objects"))
	if err != nil {
		return nil, err
	}
	refs, err := dag.NewRefStore(filepath.Join(mx, "refs", "heads"), filepath.Join(mx, "HEAD"), store)
	if err != nil {
		return nil, err
	}
	if err := refs.SetHeadSymbolic(cfg.DefaultBranch); err != nil {
		return nil, fmt.Errorf("init HEAD: %w", err)
	}
	return Open(root, opts...)
}

// Open opens an existing repository at root.
func Open(root string, opts ...Option) (*Repository, error) {
	mx := metaDir(root)
	if _, err := os.Stat(filepath.Join(mx, "HEAD")); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, root)
	}

	cfg, err := config.Load(filepath.Join(mx, config.FileName))
	if err != nil {
		return nil, err
	}
	store, err := dag.NewObjectStore(filepath.Join(mx, "objects"))
	if err != nil {
		return nil, err
	}
	refs, err := dag.NewRefStore(filepath.Join(mx, "refs", "heads"), filepath.Join(mx, "HEAD"), store)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(mx, "logs"), 0755); err != nil {
		return nil, &dag.StorageError{Op: "create logs dir", Err: err}
	}

	r := &Repository{
		root:    root,
		Config:  cfg,
		Store:   store,
		Refs:    refs,
		Commits: dag.NewCommitLog(store),
		Reflog:  dag.NewReflog(filepath.Join(mx, "logs", "HEAD")),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.log == nil {
		l, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("configure logging: %w", err)
		}
		r.log = l
	}
	for _, dir := range []string{mx, filepath.Join(mx, "objects")} {
		n, err := dag.RemoveStaleTemps(dir)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			r.log.Warn("removed interrupted writes", "dir", dir, "files", n)
		}
	}
	if r.tree == nil {
		r.tree = worktree.NewOS(root, MetaDirName)
	}
	if r.isIgnore == nil {
		m, err := ignore.Load(filepath.Join(mx, "ignore"), MetaDirName+"/")
		if err != nil {
			return nil, err
		}
		r.isIgnore = m.IsIgnored
	}

	idx, err := LoadIndex(filepath.Join(mx, "index"))
	if err != nil {
		return nil, err
	}
	r.index = idx
	return r, nil
}

// Discover walks up from start to the nearest directory holding a meta
// directory and returns that directory.
func Discover(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(metaDir(dir)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w (or any parent): %s", ErrNotRepository, start)
		}
		dir = parent
	}
}

// Root returns the working-tree root.
func (r *Repository) Root() string { return r.root }

// MetaDir returns the path to the meta directory.
func (r *Repository) MetaDir() string { return metaDir(r.root) }

// WorkTree returns the working-tree capability in use.
func (r *Repository) WorkTree() worktree.Tree { return r.tree }
