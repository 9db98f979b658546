package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/systemshift/giclone/internal/config"
	"github.com/systemshift/giclone/internal/dag"
)

// Clone copies the repository to dest: every object, every branch, the
// config and ignore files, and HEAD's position. The clone's working tree is
// populated with HEAD's snapshot. Staged changes are not carried over.
func (r *Repository) Clone(dest string, opts ...Option) (*Repository, error) {
	dst := metaDir(dest)
	if _, err := os.Stat(filepath.Join(dst, "HEAD")); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryExists, dest)
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, &dag.StorageError{Op: "create " + dst, Err: err}
	}
	for _, name := range []string{config.FileName, "ignore"} {
		if err := copyFile(filepath.Join(r.MetaDir(), name), filepath.Join(dst, name)); err != nil {
			return nil, err
		}
	}

	clone, err := Init(dest, opts...)
	if err != nil {
		return nil, err
	}
	n, err := r.Store.CopyTo(clone.Store)
	if err != nil {
		return nil, fmt.Errorf("copy objects: %w", err)
	}

	branches, err := r.Refs.List()
	if err != nil {
		return nil, err
	}
	for _, name := range branches {
		c, err := r.Refs.Get(name)
		if err != nil {
			return nil, err
		}
		if err := clone.Refs.Set(name, c); err != nil {
			return nil, err
		}
	}

	headCID, head, err := r.Refs.ResolveHead()
	if err != nil {
		return nil, err
	}
	if head.IsDetached() {
		err = clone.Refs.SetHeadDetached(headCID)
	} else {
		err = clone.Refs.SetHeadSymbolic(head.Branch)
	}
	if err != nil {
		return nil, err
	}

	if headCID.Defined() {
		snap, err := clone.Commits.Snapshot(headCID)
		if err != nil {
			return nil, err
		}
		if _, _, err := clone.materialize(dag.Snapshot{}, snap); err != nil {
			return nil, err
		}
		if err := clone.Reflog.Append("HEAD", dag.CidUndef, headCID, "clone: from "+r.root); err != nil {
			clone.log.Warn("reflog append failed", "err", err)
		}
	}
	r.log.Info("clone", "dest", dest, "objects", n, "branches", len(branches))
	return clone, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &dag.StorageError{Op: "read " + src, Err: err}
	}
	if err := dag.SafeWrite(dst, data, 0644); err != nil {
		return &dag.StorageError{Op: "write " + dst, Err: err}
	}
	return nil
}
