package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/giclone/internal/logging"
	"github.com/systemshift/giclone/internal/worktree"
)

func TestClone(t *testing.T) {
	src := newTestRepo(t)
	commitFiles(t, src, "one", map[string]string{"a.txt": "1", "dir/b.txt": "b"})
	_, err := src.Branch("feature")
	require.NoError(t, err)
	_, err = src.Checkout("feature", CheckoutOptions{})
	require.NoError(t, err)
	tip := commitFiles(t, src, "two", map[string]string{"f.txt": "f"})

	dest := t.TempDir()
	tree := worktree.NewMemory(MetaDirName)
	clone, err := src.Clone(dest, WithWorkTree(tree), WithLogger(logging.Nop()))
	require.NoError(t, err)

	head, err := clone.Head()
	require.NoError(t, err)
	assert.Equal(t, "feature", head.Branch)
	assert.Equal(t, tip, head.CID)

	srcBranches, err := src.Branches()
	require.NoError(t, err)
	cloneBranches, err := clone.Branches()
	require.NoError(t, err)
	assert.Equal(t, srcBranches, cloneBranches)

	srcCount, _ := src.Store.Count()
	cloneCount, _ := clone.Store.Count()
	assert.Equal(t, srcCount, cloneCount)

	assert.Equal(t, "1", readFile(t, clone, "a.txt"))
	assert.Equal(t, "b", readFile(t, clone, "dir/b.txt"))
	assert.Equal(t, "f", readFile(t, clone, "f.txt"))

	_, err = os.Stat(filepath.Join(dest, MetaDirName, "config.yaml"))
	assert.NoError(t, err)

	entries, err := clone.ReflogEntries(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Message, "clone: from "))

	st, err := clone.Status()
	require.NoError(t, err)
	assert.True(t, st.Clean())

	_, err = src.Clone(dest, WithWorkTree(worktree.NewMemory(MetaDirName)), WithLogger(logging.Nop()))
	assert.ErrorIs(t, err, ErrRepositoryExists)
}

func TestClone_Independent(t *testing.T) {
	src := newTestRepo(t)
	base := commitFiles(t, src, "one", map[string]string{"a.txt": "1"})

	clone, err := src.Clone(t.TempDir(), WithWorkTree(worktree.NewMemory(MetaDirName)), WithLogger(logging.Nop()), WithClock(testClock()))
	require.NoError(t, err)
	commitFiles(t, clone, "clone only", map[string]string{"a.txt": "2"})

	tip, err := src.Refs.Get("main")
	require.NoError(t, err)
	assert.Equal(t, base, tip)
}
