package fuse

import (
	"context"
	"slices"
	"sort"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/systemshift/giclone/internal/dag"
	"github.com/systemshift/giclone/internal/repo"
)

// RootNode is the mountpoint directory. Contains "branches/", "commits/" and "log/".
type RootNode struct {
	fs.Inode
	repo *repo.Repository
}

var _ = (fs.NodeOnAdder)((*RootNode)(nil))
var _ = (fs.NodeGetattrer)((*RootNode)(nil))

func (r *RootNode) OnAdd(ctx context.Context) {
	children := []struct {
		name string
		node fs.InodeEmbedder
	}{
		{"branches", &BranchesDir{repo: r.repo}},
		{"commits", &CommitsDir{repo: r.repo}},
		{"log", &LogDir{repo: r.repo}},
	}
	for _, c := range children {
		inode := r.NewPersistentInode(ctx, c.node, fs.StableAttr{
			Mode: syscall.S_IFDIR,
			Ino:  stableIno(c.name),
		})
		r.AddChild(c.name, inode, true)
	}
}

func (r *RootNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("/")
	return fs.OK
}

// BranchesDir lists every branch; each entry is the snapshot at the branch tip,
// resolved when it is looked up. Names containing "/" appear as nested
// directories, so prefix is the path below branches/ ("" or "feature/").
type BranchesDir struct {
	fs.Inode
	repo   *repo.Repository
	prefix string
}

var _ = (fs.NodeLookuper)((*BranchesDir)(nil))
var _ = (fs.NodeReaddirer)((*BranchesDir)(nil))
var _ = (fs.NodeGetattrer)((*BranchesDir)(nil))

func (d *BranchesDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno(strings.TrimSuffix("branches/"+d.prefix, "/"))
	return fs.OK
}

// branchEntries splits the branch names under prefix into tips listed
// directly and the first component of deeper names.
func branchEntries(names []string, prefix string) (tips, dirs []string) {
	seen := map[string]bool{}
	for _, name := range names {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		if first, _, nested := strings.Cut(rest, "/"); nested {
			if !seen[first] {
				seen[first] = true
				dirs = append(dirs, first)
			}
			continue
		}
		tips = append(tips, rest)
	}
	return tips, dirs
}

func (d *BranchesDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names, err := d.repo.Refs.List()
	if err != nil {
		return nil, syscall.EIO
	}
	tips, dirs := branchEntries(names, d.prefix)
	var entries []fuse.DirEntry
	for _, name := range append(tips, dirs...) {
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFDIR,
			Ino:  stableIno("branches/" + d.prefix + name),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return fs.NewListDirStream(entries), fs.OK
}

func (d *BranchesDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	full := d.prefix + name
	if c, err := d.repo.Refs.Get(full); err == nil {
		// Inodes are keyed by commit, not branch name.
		dir := newCommitDir(d.repo, c, "commits/"+dag.CIDToFilename(c))
		if dir == nil {
			return nil, syscall.EIO
		}
		return d.NewInode(ctx, dir, fs.StableAttr{Mode: syscall.S_IFDIR, Ino: stableIno(dir.prefix)}), fs.OK
	}
	names, err := d.repo.Refs.List()
	if err != nil {
		return nil, syscall.EIO
	}
	if _, dirs := branchEntries(names, d.prefix); !slices.Contains(dirs, name) {
		return nil, syscall.ENOENT
	}
	sub := &BranchesDir{repo: d.repo, prefix: full + "/"}
	return d.NewInode(ctx, sub, fs.StableAttr{Mode: syscall.S_IFDIR, Ino: stableIno("branches/" + full)}), fs.OK
}

// CommitsDir lists every stored commit by CID. Lookup also accepts an
// abbreviated CID.
type CommitsDir struct {
	fs.Inode
	repo *repo.Repository
}

var _ = (fs.NodeLookuper)((*CommitsDir)(nil))
var _ = (fs.NodeReaddirer)((*CommitsDir)(nil))
var _ = (fs.NodeGetattrer)((*CommitsDir)(nil))

func (d *CommitsDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("commits")
	return fs.OK
}

func (d *CommitsDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	cids, err := d.repo.Store.List()
	if err != nil {
		return nil, syscall.EIO
	}
	var entries []fuse.DirEntry
	for _, c := range cids {
		if c.Type() != dag.CommitCodec {
			continue
		}
		name := dag.CIDToFilename(c)
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFDIR,
			Ino:  stableIno("commits/" + name),
		})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *CommitsDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	c, err := d.repo.Store.Resolve(name)
	if err != nil || !d.repo.Store.IsCommit(c) {
		return nil, syscall.ENOENT
	}
	dir := newCommitDir(d.repo, c, "commits/"+dag.CIDToFilename(c))
	if dir == nil {
		return nil, syscall.EIO
	}
	child := d.NewInode(ctx, dir, fs.StableAttr{Mode: syscall.S_IFDIR, Ino: stableIno(dir.prefix)})
	return child, fs.OK
}
