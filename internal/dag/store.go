package dag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// CidUndef is the undefined/zero CID value, exported for use by other packages.
var CidUndef = gocid.Undef

// Codecs distinguishing the two object kinds. Blobs are opaque bytes, commits
// are deterministic JSON records.
const (
	BlobCodec   = gocid.Raw
	CommitCodec = gocid.DagJSON
)

// ObjectStore manages CID-addressed immutable objects on disk.
type ObjectStore struct {
	dir string // path to objects/ directory
}

// NewObjectStore creates an ObjectStore at the given directory.
func NewObjectStore(dir string) (*ObjectStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, storageFault("create objects dir", err)
	}
	return &ObjectStore{dir: dir}, nil
}

// ComputeCID computes a CIDv1 (SHA2-256) for data under the given codec.
func ComputeCID(codec uint64, data []byte) (gocid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(codec, mh), nil
}

// BlobCID is the CID a blob with this content has, whether or not it is stored.
func BlobCID(data []byte) (gocid.Cid, error) {
	return ComputeCID(BlobCodec, data)
}

// CIDToFilename returns the base32lower encoding of a CID for use as a filename.
func CIDToFilename(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

// ParseCID decodes the base32 form written by CIDToFilename.
func ParseCID(s string) (gocid.Cid, error) {
	_, cidBytes, err := multibase.Decode(strings.TrimSpace(s))
	if err != nil {
		return gocid.Undef, fmt.Errorf("decode CID %q: %w", s, err)
	}
	return gocid.Cast(cidBytes)
}

// Put writes a blob to the object store, returning the CID.
// If the object already exists, this is a no-op.
func (s *ObjectStore) Put(data []byte) (gocid.Cid, error) {
	return s.put(BlobCodec, data)
}

// PutCommit writes an encoded commit record.
func (s *ObjectStore) PutCommit(data []byte) (gocid.Cid, error) {
	return s.put(CommitCodec, data)
}

func (s *ObjectStore) put(codec uint64, data []byte) (gocid.Cid, error) {
	c, err := ComputeCID(codec, data)
	if err != nil {
		return gocid.Undef, err
	}
	path := filepath.Join(s.dir, CIDToFilename(c))
	if _, err := os.Stat(path); err == nil {
		return c, nil // already exists
	}
	if err := SafeWrite(path, data, 0444); err != nil {
		return gocid.Undef, storageFault("write object", err)
	}
	return c, nil
}

// Get reads an object by CID.
func (s *ObjectStore) Get(c gocid.Cid) ([]byte, error) {
	path := filepath.Join(s.dir, CIDToFilename(c))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, CIDToFilename(c))
	}
	if err != nil {
		return nil, storageFault("read object "+CIDToFilename(c), err)
	}
	return data, nil
}

// Has checks if an object exists.
func (s *ObjectStore) Has(c gocid.Cid) bool {
	if !c.Defined() {
		return false
	}
	path := filepath.Join(s.dir, CIDToFilename(c))
	_, err := os.Stat(path)
	return err == nil
}

// IsCommit reports whether c names a stored commit record.
func (s *ObjectStore) IsCommit(c gocid.Cid) bool {
	return c.Defined() && c.Type() == CommitCodec && s.Has(c)
}

// List returns the CIDs of every stored object.
func (s *ObjectStore) List() ([]gocid.Cid, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, storageFault("list objects", err)
	}
	cids := make([]gocid.Cid, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		c, err := ParseCID(e.Name())
		if err != nil {
			continue // foreign file
		}
		cids = append(cids, c)
	}
	return cids, nil
}

// Count returns the number of stored objects.
func (s *ObjectStore) Count() (int, error) {
	cids, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(cids), nil
}

// Resolve expands a full or abbreviated base32 CID string to a stored object.
func (s *ObjectStore) Resolve(prefix string) (gocid.Cid, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return gocid.Undef, fmt.Errorf("%w: empty prefix", ErrObjectNotFound)
	}
	if c, err := ParseCID(prefix); err == nil && s.Has(c) {
		return c, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return gocid.Undef, storageFault("list objects", err)
	}
	var match string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if match != "" {
			return gocid.Undef, fmt.Errorf("%w: %s", ErrAmbiguousPrefix, prefix)
		}
		match = e.Name()
	}
	if match == "" {
		return gocid.Undef, fmt.Errorf("%w: %s", ErrObjectNotFound, prefix)
	}
	return ParseCID(match)
}

// CopyTo copies every object into dst. Objects already present are skipped.
func (s *ObjectStore) CopyTo(dst *ObjectStore) (int, error) {
	cids, err := s.List()
	if err != nil {
		return 0, err
	}
	copied := 0
	for _, c := range cids {
		if dst.Has(c) {
			continue
		}
		data, err := s.Get(c)
		if err != nil {
			return copied, err
		}
		if _, err := dst.put(c.Type(), data); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}
