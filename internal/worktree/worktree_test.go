package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	cases := map[string]string{
		"a.txt":       "a.txt",
		"./a.txt":     "a.txt",
		"dir/../b":    "b",
		"/abs/c":      "abs/c",
		".":           ".",
		"dir/sub/":    "dir/sub",
		"./dir//x.go": "dir/x.go",
	}
	for in, want := range cases {
		assert.Equal(t, want, Clean(in), "Clean(%q)", in)
	}
}

func TestMemory_WriteReadRemove(t *testing.T) {
	tree := NewMemory()

	require.NoError(t, tree.WriteFile("deep/nested/file.txt", []byte("hi")))
	got, err := tree.ReadFile("deep/nested/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	require.NoError(t, tree.WriteFile("deep/nested/file.txt", []byte("bye")))
	got, _ = tree.ReadFile("deep/nested/file.txt")
	assert.Equal(t, "bye", string(got), "WriteFile must truncate")

	require.NoError(t, tree.Remove("deep/nested/file.txt"))
	_, err = tree.Stat("deep/nested/file.txt")
	assert.True(t, IsNotExist(err))
	_, err = tree.Stat("deep")
	assert.True(t, IsNotExist(err), "empty parents should be pruned")
}

func TestRemove_KeepsNonEmptyParents(t *testing.T) {
	tree := NewMemory()
	require.NoError(t, tree.WriteFile("dir/a", []byte("a")))
	require.NoError(t, tree.WriteFile("dir/b", []byte("b")))

	require.NoError(t, tree.Remove("dir/a"))
	info, err := tree.Stat("dir")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWalk_SortedAndExcluded(t *testing.T) {
	tree := NewMemory(".giclone")
	for _, p := range []string{"z.txt", "a/b.txt", "a/a.txt", ".giclone/HEAD", "m/n/o.txt"} {
		require.NoError(t, tree.WriteFile(p, []byte(p)))
	}

	var seen []string
	require.NoError(t, tree.Walk(".", func(p string) error {
		seen = append(seen, p)
		return nil
	}))
	assert.Equal(t, []string{"a/a.txt", "a/b.txt", "m/n/o.txt", "z.txt"}, seen)

	seen = nil
	require.NoError(t, tree.Walk("a", func(p string) error {
		seen = append(seen, p)
		return nil
	}))
	assert.Equal(t, []string{"a/a.txt", "a/b.txt"}, seen)

	seen = nil
	require.NoError(t, tree.Walk("z.txt", func(p string) error {
		seen = append(seen, p)
		return nil
	}))
	assert.Equal(t, []string{"z.txt"}, seen)
}

func TestOS_Backed(t *testing.T) {
	dir := t.TempDir()
	tree := NewOS(dir)

	require.NoError(t, tree.WriteFile("sub/f.txt", []byte("disk")))
	got, err := os.ReadFile(filepath.Join(dir, "sub", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "disk", string(got))

	_, err = tree.Stat("missing")
	assert.True(t, IsNotExist(err))
}
