package flock

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock is a held exclusive lock backed by a lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire creates the lock file if needed and takes an exclusive,
// non-blocking lock on it. A lock held by another process is an immediate
// error, not a wait.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- caller-controlled lock path
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := Exclusive(file.Fd()); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("lock %s is held by another process: %w", path, err)
	}

	return &Lock{file: file, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. The file itself is left in
// place; only the lock is dropped.
func (l *Lock) Release() error {
	unlockErr := Unlock(l.file.Fd())
	closeErr := l.file.Close()
	if unlockErr != nil {
		return fmt.Errorf("releasing lock %s: %w", l.path, unlockErr)
	}
	return closeErr
}
