//go:build unix

package flock_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/forge/internal/flock"
)

func TestExclusiveLockLifecycle(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- temp dir
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	require.NoError(t, flock.Exclusive(f.Fd()))
	require.NoError(t, flock.Unlock(f.Fd()))

	// Reacquirable after release.
	require.NoError(t, flock.Exclusive(f.Fd()))
	require.NoError(t, flock.Unlock(f.Fd()))
}

func TestAcquireCreatesFileAndDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".forge", "run.lock")
	lock, err := flock.Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, lock.Path())
	assert.FileExists(t, path)

	require.NoError(t, lock.Release())
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.lock")
	first, err := flock.Acquire(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, first.Release()) }()

	// flock(2) locks are per open file description, so a second descriptor
	// on the same file contends the way a second process would.
	f, err := os.OpenFile(path, os.O_RDWR, 0o600) // #nosec G304 -- temp dir
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Error(t, flock.Exclusive(f.Fd()))
}

func TestReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.lock")

	lock, err := flock.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	again, err := flock.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
