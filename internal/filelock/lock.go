// Package filelock serializes configuration transactions across processes
// with an advisory lock on a sidecar file next to the configuration.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrTimeout is returned when the lock could not be acquired before the
// timeout elapsed.
var ErrTimeout = errors.New("filelock: timed out waiting for lock")

// pollInterval is how often a contended lock is retried.
var pollInterval = 10 * time.Millisecond

// Lock is a held exclusive lock. Release it exactly once.
type Lock struct {
	path string
	f    *os.File
}

// PathFor returns the sidecar lock path for the file at configPath, e.g.
// /etc/wireguard/.wg0.conf.lock for /etc/wireguard/wg0.conf.
func PathFor(configPath string) string {
	dir, name := filepath.Split(configPath)
	return filepath.Join(dir, "."+name+".lock")
}

// Acquire takes the exclusive lock at path, creating the file if needed. It
// retries until the lock is free, timeout elapses (ErrTimeout) or ctx is
// done. A timeout of zero or less waits on ctx alone.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		f, err := tryLock(path)
		if err == nil {
			return &Lock{path: path, f: f}, nil
		}
		if !errors.Is(err, errContended) {
			return nil, fmt.Errorf("filelock: acquire %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("filelock: acquire %s: %w", path, ctx.Err())
		case <-deadline:
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, path, timeout)
		case <-time.After(pollInterval):
		}
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. Calling Release on a nil or released Lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlock(l.path, l.f)
	l.f = nil
	if err != nil {
		return fmt.Errorf("filelock: release %s: %w", l.path, err)
	}
	return nil
}

// errContended reports that another holder owns the lock.
var errContended = errors.New("filelock: lock held elsewhere")
