package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// lockGuard holds one acquired advisory lock. Release is safe to call more
// than once and must run on every exit path, so callers defer it
// immediately after acquisition.
type lockGuard struct {
	file     *os.File
	released bool
}

// Release drops the advisory lock and closes the lock file.
func (g *lockGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	syscall.Flock(int(g.file.Fd()), syscall.LOCK_UN)
	g.file.Close()
}

// acquireLock obtains an exclusive advisory lock on <resource>.lock,
// waiting up to timeout. Locks are not reentrant: code running under a
// held lock must use the *Locked helpers rather than acquiring again.
//
// The first attempt is non-blocking; on contention the lock is polled
// with exponential backoff until the deadline.
func acquireLock(resource string, timeout time.Duration) (*lockGuard, error) {
	lockPath := resource + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return &lockGuard{file: file}, nil
	}
	if !errors.Is(err, syscall.EWOULDBLOCK) {
		file.Close()
		return nil, fmt.Errorf("flock %s: %w", lockPath, err)
	}

	const (
		minBackoff = 5 * time.Millisecond
		maxBackoff = 250 * time.Millisecond
	)
	deadline := time.Now().Add(timeout)
	backoff := minBackoff

	for {
		if time.Now().After(deadline) {
			file.Close()
			return nil, fmt.Errorf("%w: %s not acquired within %v", ErrLockTimeout, lockPath, timeout)
		}
		time.Sleep(backoff)

		err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &lockGuard{file: file}, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			file.Close()
			return nil, fmt.Errorf("flock %s: %w", lockPath, err)
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
