package dag

import (
	"errors"
	"fmt"
)

// Error kinds for the object and reference stores.
var (
	// ErrObjectNotFound indicates no object with the requested CID exists.
	ErrObjectNotFound = errors.New("object not found")

	// ErrBranchNotFound indicates the named branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrBranchAlreadyExists indicates a branch with that name is already present.
	ErrBranchAlreadyExists = errors.New("branch already exists")

	// ErrInvalidTarget indicates a reference was pointed at something that is not a stored commit.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidBranchName indicates a branch name that cannot be stored as a ref.
	ErrInvalidBranchName = errors.New("invalid branch name")

	// ErrAmbiguousPrefix indicates an abbreviated CID matched more than one object.
	ErrAmbiguousPrefix = errors.New("ambiguous object prefix")

	// ErrStorageFault is the kind of every underlying I/O failure.
	ErrStorageFault = errors.New("storage fault")
)

// StorageError wraps an I/O failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v: %v", ErrStorageFault, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports ErrStorageFault so callers can match the kind without unwrapping.
func (e *StorageError) Is(target error) bool { return target == ErrStorageFault }

func storageFault(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
