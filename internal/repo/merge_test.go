package repo

import (
	"errors"
	"testing"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/giclone/internal/dag"
)

func TestThreeWay(t *testing.T) {
	tests := []struct {
		name      string
		base      dag.Snapshot
		ours      dag.Snapshot
		theirs    dag.Snapshot
		want      dag.Snapshot
		conflicts []string
	}{
		{
			name:   "unchanged",
			base:   dag.Snapshot{"a": "1"},
			ours:   dag.Snapshot{"a": "1"},
			theirs: dag.Snapshot{"a": "1"},
			want:   dag.Snapshot{"a": "1"},
		},
		{
			name:   "only theirs changed",
			base:   dag.Snapshot{"a": "1"},
			ours:   dag.Snapshot{"a": "1"},
			theirs: dag.Snapshot{"a": "2"},
			want:   dag.Snapshot{"a": "2"},
		},
		{
			name:   "only ours changed",
			base:   dag.Snapshot{"a": "1"},
			ours:   dag.Snapshot{"a": "2"},
			theirs: dag.Snapshot{"a": "1"},
			want:   dag.Snapshot{"a": "2"},
		},
		{
			name:   "same change both sides",
			base:   dag.Snapshot{"a": "1"},
			ours:   dag.Snapshot{"a": "2"},
			theirs: dag.Snapshot{"a": "2"},
			want:   dag.Snapshot{"a": "2"},
		},
		{
			name:   "theirs deleted",
			base:   dag.Snapshot{"a": "1", "b": "1"},
			ours:   dag.Snapshot{"a": "1", "b": "1"},
			theirs: dag.Snapshot{"a": "1"},
			want:   dag.Snapshot{"a": "1"},
		},
		{
			name:   "both deleted",
			base:   dag.Snapshot{"a": "1", "b": "1"},
			ours:   dag.Snapshot{"a": "1"},
			theirs: dag.Snapshot{"a": "1"},
			want:   dag.Snapshot{"a": "1"},
		},
		{
			name:   "disjoint adds",
			base:   dag.Snapshot{},
			ours:   dag.Snapshot{"a": "1"},
			theirs: dag.Snapshot{"b": "2"},
			want:   dag.Snapshot{"a": "1", "b": "2"},
		},
		{
			name:      "both modified",
			base:      dag.Snapshot{"a": "1"},
			ours:      dag.Snapshot{"a": "2"},
			theirs:    dag.Snapshot{"a": "3"},
			conflicts: []string{"a"},
		},
		{
			name:      "delete versus modify",
			base:      dag.Snapshot{"a": "1"},
			ours:      dag.Snapshot{},
			theirs:    dag.Snapshot{"a": "2"},
			conflicts: []string{"a"},
		},
		{
			name:      "add/add different",
			base:      dag.Snapshot{},
			ours:      dag.Snapshot{"z": "1", "a": "1"},
			theirs:    dag.Snapshot{"z": "2", "a": "2"},
			conflicts: []string{"a", "z"},
		},
		{
			name:      "file versus directory",
			base:      dag.Snapshot{"k": "1"},
			ours:      dag.Snapshot{"k": "1", "d": "1"},
			theirs:    dag.Snapshot{"k": "1", "d/x": "2"},
			conflicts: []string{"d"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conflicts := ThreeWay(tt.base, tt.ours, tt.theirs)
			assert.Equal(t, tt.conflicts, conflicts)
			if len(tt.conflicts) == 0 {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// diverge builds base -> (main: ours) and base -> (feature: theirs) and leaves
// HEAD on main.
func diverge(t *testing.T, r *Repository, base, ours, theirs map[string]string) (gocid.Cid, gocid.Cid) {
	t.Helper()
	commitFiles(t, r, "base", base)
	_, err := r.Branch("feature")
	require.NoError(t, err)

	_, err = r.Checkout("feature", CheckoutOptions{})
	require.NoError(t, err)
	theirsCID := commitFiles(t, r, "feature change", theirs)

	_, err = r.Checkout("main", CheckoutOptions{})
	require.NoError(t, err)
	oursCID := commitFiles(t, r, "main change", ours)
	return oursCID, theirsCID
}

func TestMerge_FastForward(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"a.txt": "1"})
	_, err := r.Branch("feature")
	require.NoError(t, err)
	_, err = r.Checkout("feature", CheckoutOptions{})
	require.NoError(t, err)
	tip := commitFiles(t, r, "ahead", map[string]string{"a.txt": "2", "b.txt": "b"})
	_, err = r.Checkout("main", CheckoutOptions{})
	require.NoError(t, err)

	before, err := r.Store.Count()
	require.NoError(t, err)
	res, err := r.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, MergeFastForward, res.Kind)
	assert.Equal(t, tip, res.Commit)

	mainTip, err := r.Refs.Get("main")
	require.NoError(t, err)
	assert.Equal(t, tip, mainTip)
	after, _ := r.Store.Count()
	assert.Equal(t, before, after, "fast-forward writes no commit")
	assert.Equal(t, "2", readFile(t, r, "a.txt"))
	assert.Equal(t, "b", readFile(t, r, "b.txt"))
}

func TestMerge_UpToDate(t *testing.T) {
	r := newTestRepo(t)
	c1 := commitFiles(t, r, "one", map[string]string{"a.txt": "1"})
	_, err := r.Branch("old")
	require.NoError(t, err)
	c2 := commitFiles(t, r, "two", map[string]string{"a.txt": "2"})

	res, err := r.Merge("old")
	require.NoError(t, err)
	assert.Equal(t, MergeUpToDate, res.Kind)
	assert.Equal(t, c2, res.Commit)
	assert.Equal(t, c1, res.Theirs)

	res, err = r.Merge("main")
	require.NoError(t, err)
	assert.Equal(t, MergeUpToDate, res.Kind, "merging a branch into itself")
}

func TestMerge_CleanThreeWay(t *testing.T) {
	r := newTestRepo(t)
	ours, theirs := diverge(t, r,
		map[string]string{"shared.txt": "s", "edit.txt": "v1"},
		map[string]string{"ours.txt": "o"},
		map[string]string{"theirs.txt": "t", "edit.txt": "v2"},
	)

	res, err := r.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, MergeCommitted, res.Kind)
	assert.True(t, res.Base.Defined())

	commit, err := r.Commits.GetCommit(res.Commit)
	require.NoError(t, err)
	assert.True(t, commit.IsMerge())
	parents, err := commit.Parents()
	require.NoError(t, err)
	assert.Equal(t, []gocid.Cid{ours, theirs}, parents)
	assert.Equal(t, "Merge branch 'feature' into main", commit.Message)
	assert.Equal(t, []string{"edit.txt", "ours.txt", "shared.txt", "theirs.txt"}, commit.Files.Paths())

	mainTip, err := r.Refs.Get("main")
	require.NoError(t, err)
	assert.Equal(t, res.Commit, mainTip)
	assert.Equal(t, "v2", readFile(t, r, "edit.txt"))
	assert.Equal(t, "t", readFile(t, r, "theirs.txt"))

	entries, err := r.Log(0)
	require.NoError(t, err)
	require.Len(t, entries, 3, "log follows first parents")
	assert.Equal(t, ours, entries[1].CID)
}

func TestMerge_ConflictChangesNothing(t *testing.T) {
	r := newTestRepo(t)
	ours, _ := diverge(t, r,
		map[string]string{"a.txt": "base", "b.txt": "b"},
		map[string]string{"a.txt": "ours"},
		map[string]string{"a.txt": "theirs"},
	)
	before, err := r.Store.Count()
	require.NoError(t, err)

	_, err = r.Merge("feature")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMergeConflict)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"a.txt"}, ce.Paths)

	after, err := r.Store.Count()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	mainTip, err := r.Refs.Get("main")
	require.NoError(t, err)
	assert.Equal(t, ours, mainTip)
	assert.Equal(t, "ours", readFile(t, r, "a.txt"))
}

func TestMerge_DeleteModifyConflict(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"a.txt": "1", "b.txt": "b"})
	_, err := r.Branch("feature")
	require.NoError(t, err)
	_, err = r.Remove("a.txt")
	require.NoError(t, err)
	_, err = r.Commit("drop a")
	require.NoError(t, err)

	_, err = r.Checkout("feature", CheckoutOptions{})
	require.NoError(t, err)
	commitFiles(t, r, "edit a", map[string]string{"a.txt": "2"})
	_, err = r.Checkout("main", CheckoutOptions{})
	require.NoError(t, err)

	_, err = r.Merge("feature")
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"a.txt"}, ce.Paths)
}

func TestMerge_DisjointHistories(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "main root", map[string]string{"a.txt": "a"})

	blob, err := r.Store.Put([]byte("x"))
	require.NoError(t, err)
	orphan, err := r.Commits.Write(&dag.CommitObject{
		Files:   dag.Snapshot{"x.txt": dag.CIDToFilename(blob)},
		Message: "orphan root",
	})
	require.NoError(t, err)
	require.NoError(t, r.Refs.Set("orphan", orphan))

	res, err := r.Merge("orphan")
	require.NoError(t, err)
	assert.Equal(t, MergeCommitted, res.Kind)
	assert.False(t, res.Base.Defined())
	assert.Equal(t, "x", readFile(t, r, "x.txt"))
	assert.Equal(t, "a", readFile(t, r, "a.txt"))
}

func TestMerge_Preconditions(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.Merge("main")
	assert.ErrorIs(t, err, ErrNoHead)

	commitFiles(t, r, "one", map[string]string{"a.txt": "1"})
	_, err = r.Merge("missing")
	assert.ErrorIs(t, err, ErrBranchNotFound)

	require.NoError(t, r.Stage("p.txt", []byte("p")))
	_, err = r.Merge("main")
	assert.ErrorIs(t, err, ErrUncommittedChanges)
}

func TestMerge_FastForwardFileDirectorySwap(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "dir", map[string]string{"d/x": "nested"})
	_, err := r.Branch("feature")
	require.NoError(t, err)
	_, err = r.Checkout("feature", CheckoutOptions{})
	require.NoError(t, err)
	_, err = r.Remove("d")
	require.NoError(t, err)
	tip := commitFiles(t, r, "file", map[string]string{"d": "flat"})
	_, err = r.Checkout("main", CheckoutOptions{})
	require.NoError(t, err)

	res, err := r.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, MergeFastForward, res.Kind)
	assert.Equal(t, tip, res.Commit)
	assert.Equal(t, "flat", readFile(t, r, "d"))
	assertMissing(t, r, "d/x")
}

func TestMerge_AfterNoOpCommit(t *testing.T) {
	r := newTestRepo(t)
	commitFiles(t, r, "base", map[string]string{"a.txt": "a", "dir/b.txt": "b"})
	_, err := r.Branch("feature")
	require.NoError(t, err)

	_, err = r.Add(".")
	require.NoError(t, err)
	_, err = r.Commit("nothing new")
	require.ErrorIs(t, err, ErrNothingToCommit)

	res, err := r.Merge("feature")
	require.NoError(t, err)
	assert.Equal(t, MergeUpToDate, res.Kind)

	_, err = r.Add("a.txt")
	require.NoError(t, err)
	res, err = r.Merge("feature")
	require.NoError(t, err, "staging identical to HEAD is not pending work")
	assert.Equal(t, MergeUpToDate, res.Kind)
	assert.Empty(t, r.Staged())
}

func TestMergeKind_String(t *testing.T) {
	assert.Equal(t, "fast-forward", MergeFastForward.String())
	assert.Equal(t, "MergeKind(9)", MergeKind(9).String())
}
