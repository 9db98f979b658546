package fuse

import (
	"context"
	"encoding/json"
	"strconv"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/systemshift/giclone/internal/dag"
	"github.com/systemshift/giclone/internal/repo"
)

const maxLogEntries = 64

// LogDir exposes HEAD's recent history as files.
// Layout: log/HEAD (branch and CID), log/0 (newest commit JSON), log/1, ...
type LogDir struct {
	fs.Inode
	repo *repo.Repository
}

var _ = (fs.NodeLookuper)((*LogDir)(nil))
var _ = (fs.NodeReaddirer)((*LogDir)(nil))
var _ = (fs.NodeGetattrer)((*LogDir)(nil))

func (d *LogDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("log")
	return fs.OK
}

func (d *LogDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Name: "HEAD", Mode: syscall.S_IFREG, Ino: stableIno("log/HEAD")},
	}
	commits, _ := d.repo.Log(maxLogEntries)
	for i := range commits {
		name := strconv.Itoa(i)
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFREG,
			Ino:  stableIno("log/" + name),
		})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *LogDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	var f fs.InodeEmbedder
	if name == "HEAD" {
		f = &textFile{ino: stableIno("log/HEAD"), content: func() []byte { return headBytes(d.repo) }}
	} else {
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 || idx >= maxLogEntries {
			return nil, syscall.ENOENT
		}
		commits, _ := d.repo.Log(idx + 1)
		if idx >= len(commits) {
			return nil, syscall.ENOENT
		}
		entry := commits[idx]
		f = &textFile{ino: stableIno("log/" + name), content: func() []byte { return entryBytes(entry) }}
	}
	child := d.NewInode(ctx, f, fs.StableAttr{Mode: syscall.S_IFREG, Ino: stableIno("log/" + name)})
	return child, fs.OK
}

func headBytes(r *repo.Repository) []byte {
	head, err := r.Head()
	if err != nil {
		return []byte("(error)\n")
	}
	ref := head.Branch
	if head.Detached {
		ref = "(detached)"
	}
	if !head.CID.Defined() {
		return []byte(ref + " (none)\n")
	}
	return []byte(ref + " " + dag.CIDToFilename(head.CID) + "\n")
}

// logEntryJSON is a commit with its own CID, as shown in log/<i>.
type logEntryJSON struct {
	CID string `json:"cid"`
	*dag.CommitObject
}

func entryBytes(e dag.LogEntry) []byte {
	data, _ := json.MarshalIndent(logEntryJSON{CID: dag.CIDToFilename(e.CID), CommitObject: e.Commit}, "", "  ")
	return append(data, '\n')
}

// textFile is a small read-only file whose content is computed on each access.
type textFile struct {
	fs.Inode
	ino     uint64
	content func() []byte
}

var _ = (fs.NodeGetattrer)((*textFile)(nil))
var _ = (fs.NodeReader)((*textFile)(nil))
var _ = (fs.NodeOpener)((*textFile)(nil))

func (f *textFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0444
	out.Size = uint64(len(f.content()))
	out.Ino = f.ino
	return fs.OK
}

func (f *textFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (f *textFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return readSlice(f.content(), dest, off), fs.OK
}
