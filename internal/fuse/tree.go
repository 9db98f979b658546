package fuse

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/giclone/internal/dag"
	"github.com/systemshift/giclone/internal/repo"
)

// stableIno returns a stable inode number for a path in the mount.
func stableIno(path string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return h.Sum64()
}

// readSlice serves a read of dest at off from an in-memory file.
func readSlice(data, dest []byte, off int64) fuse.ReadResult {
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil)
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return fuse.ReadResultData(data[off:end])
}

// treeNode is one directory level of a snapshot. Snapshots are flat
// path -> blob maps, so directories only exist implicitly.
type treeNode struct {
	dirs  map[string]*treeNode
	files map[string]string // name -> blob CID
}

func newTreeNode() *treeNode {
	return &treeNode{dirs: map[string]*treeNode{}, files: map[string]string{}}
}

// buildTree folds a snapshot into nested directories.
func buildTree(snap dag.Snapshot) *treeNode {
	root := newTreeNode()
	for p, c := range snap {
		parts := strings.Split(p, "/")
		n := root
		for _, dir := range parts[:len(parts)-1] {
			child, ok := n.dirs[dir]
			if !ok {
				child = newTreeNode()
				n.dirs[dir] = child
			}
			n = child
		}
		n.files[parts[len(parts)-1]] = c
	}
	return root
}

// names lists the entries of n, directories and files merged and sorted.
func (n *treeNode) names() []string {
	out := make([]string, 0, len(n.dirs)+len(n.files))
	for name := range n.dirs {
		out = append(out, name)
	}
	for name := range n.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SnapshotDir is one directory inside a commit's snapshot. The prefix keeps
// inode numbers distinct across commits and branches.
type SnapshotDir struct {
	fs.Inode
	repo   *repo.Repository
	node   *treeNode
	prefix string
}

var _ = (fs.NodeLookuper)((*SnapshotDir)(nil))
var _ = (fs.NodeReaddirer)((*SnapshotDir)(nil))
var _ = (fs.NodeGetattrer)((*SnapshotDir)(nil))

func (d *SnapshotDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno(d.prefix)
	return fs.OK
}

func (d *SnapshotDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names := d.node.names()
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		mode := uint32(syscall.S_IFREG)
		if _, isDir := d.node.dirs[name]; isDir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode, Ino: stableIno(d.prefix + "/" + name)})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *SnapshotDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := d.prefix + "/" + name
	if sub, ok := d.node.dirs[name]; ok {
		child := &SnapshotDir{repo: d.repo, node: sub, prefix: p}
		return d.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR, Ino: stableIno(p)}), fs.OK
	}
	blob, ok := d.node.files[name]
	if !ok {
		return nil, syscall.ENOENT
	}
	c, err := dag.ParseCID(blob)
	if err != nil {
		return nil, syscall.EIO
	}
	f := &BlobFile{repo: d.repo, cid: c, path: p}
	return d.NewInode(ctx, f, fs.StableAttr{Mode: syscall.S_IFREG, Ino: stableIno(p)}), fs.OK
}

// BlobFile serves a stored blob read-only.
type BlobFile struct {
	fs.Inode
	repo *repo.Repository
	cid  gocid.Cid
	path string
}

var _ = (fs.NodeGetattrer)((*BlobFile)(nil))
var _ = (fs.NodeOpener)((*BlobFile)(nil))
var _ = (fs.NodeReader)((*BlobFile)(nil))

func (f *BlobFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	data, err := f.repo.Store.Get(f.cid)
	if err != nil {
		return syscall.EIO
	}
	out.Mode = 0444
	out.Size = uint64(len(data))
	out.Ino = stableIno(f.path)
	return fs.OK
}

func (f *BlobFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (f *BlobFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := f.repo.Store.Get(f.cid)
	if err != nil {
		return nil, syscall.EIO
	}
	return readSlice(data, dest, off), fs.OK
}

// newCommitDir builds the snapshot root for commit c, or nil if it cannot be read.
func newCommitDir(r *repo.Repository, c gocid.Cid, prefix string) *SnapshotDir {
	snap, err := r.Commits.Snapshot(c)
	if err != nil {
		return nil
	}
	return &SnapshotDir{repo: r, node: buildTree(snap), prefix: prefix}
}
