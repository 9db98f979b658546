package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systemshift/giclone/internal/dag"
)

// Error kinds for repository operations. Store-level kinds are re-exported so
// callers only need this package.
var (
	ErrObjectNotFound      = dag.ErrObjectNotFound
	ErrBranchNotFound      = dag.ErrBranchNotFound
	ErrBranchAlreadyExists = dag.ErrBranchAlreadyExists
	ErrInvalidTarget       = dag.ErrInvalidTarget
	ErrInvalidBranchName   = dag.ErrInvalidBranchName
	ErrStorageFault        = dag.ErrStorageFault

	// ErrNotRepository indicates no meta directory was found.
	ErrNotRepository = errors.New("not a giclone repository")

	// ErrRepositoryExists indicates init was run on an initialized directory.
	ErrRepositoryExists = errors.New("repository already exists")

	// ErrRefNotFound indicates a checkout target is neither a branch nor a commit.
	ErrRefNotFound = errors.New("ref not found")

	// ErrPathNotFound indicates a path given to add or rm does not exist.
	ErrPathNotFound = errors.New("path not found")

	// ErrNothingToCommit indicates the next commit would equal its parent.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrEmptyMessage indicates a commit without a message.
	ErrEmptyMessage = errors.New("empty commit message")

	// ErrUncommittedChanges indicates the staging area holds pending work.
	ErrUncommittedChanges = errors.New("uncommitted changes in staging area")

	// ErrPathConflict indicates a snapshot that holds a path both as a file
	// and as a directory.
	ErrPathConflict = errors.New("path is both a file and a directory")

	// ErrWorkTreeObstructed indicates untracked files stand where a checkout
	// needs to write.
	ErrWorkTreeObstructed = errors.New("untracked working tree files would be overwritten")

	// ErrMergeConflict is the kind of *ConflictError.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrNoHead indicates HEAD does not resolve to a commit yet.
	ErrNoHead = errors.New("HEAD has no commits")

	// ErrCurrentBranch indicates an attempt to delete the checked-out branch.
	ErrCurrentBranch = errors.New("branch is checked out")
)

// ConflictError reports every path both sides of a merge changed differently.
type ConflictError struct {
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s in %d path(s): %s", ErrMergeConflict, len(e.Paths), strings.Join(e.Paths, ", "))
}

// Is lets errors.Is(err, ErrMergeConflict) match.
func (e *ConflictError) Is(target error) bool { return target == ErrMergeConflict }
