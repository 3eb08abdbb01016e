//go:build !unix

package filelock

import (
	"errors"
	"os"
)

// tryLock falls back to exclusive creation of the lock file where flock is
// unavailable. A crashed holder leaves a stale file that must be removed by hand.
func tryLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errContended
		}
		return nil, err
	}
	return f, nil
}

func unlock(path string, f *os.File) error {
	err := f.Close()
	if rerr := os.Remove(path); err == nil {
		err = rerr
	}
	return err
}
