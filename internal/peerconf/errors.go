package peerconf

import (
	"errors"
	"fmt"
)

// Sentinel errors for transaction failures.
var (
	// ErrLockTimeout means another writer held the file lock for longer than
	// the configured timeout. Nothing was read or written.
	ErrLockTimeout = errors.New("peerconf: lock timeout")

	// ErrPersist means the new file content could not be written. The
	// configuration file is unchanged.
	ErrPersist = errors.New("peerconf: persist failure")

	// ErrReload means the file change was committed but the daemon did not
	// pick it up. The change stands; retry with Manager.Reload.
	ErrReload = errors.New("peerconf: reload failure")

	// ErrAddressOutOfRange means an explicit address is not a usable host of
	// the subnet.
	ErrAddressOutOfRange = errors.New("peerconf: address outside subnet")
)

// PersistError carries the cause of a failed write.
// It matches ErrPersist with errors.Is.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("peerconf: persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPersist.
func (e *PersistError) Is(target error) bool { return target == ErrPersist }

// ReloadError carries the cause of a failed reload after a committed write.
// It matches ErrReload with errors.Is.
type ReloadError struct {
	Path string
	Err  error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("peerconf: reload after writing %s: %v", e.Path, e.Err)
}

func (e *ReloadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrReload.
func (e *ReloadError) Is(target error) bool { return target == ErrReload }
