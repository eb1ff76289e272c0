package state

import "errors"

var (
	// ErrInvalidID indicates a malformed project identifier or a resolved
	// path escaping the store root. Returned before any file I/O.
	ErrInvalidID = errors.New("invalid project id")

	// ErrNotFound indicates the referenced project has no state file.
	ErrNotFound = errors.New("project not found")

	// ErrLockTimeout indicates an advisory lock was not acquired within the
	// configured bound. No mutation has been applied when this is returned.
	ErrLockTimeout = errors.New("lock timeout")
)
