// Package peerconf runs read-modify-write transactions against a WireGuard
// configuration file: lock, read, edit, atomically replace, reload, unlock.
package peerconf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/licht8/wg-qr-generator/internal/filelock"
	"github.com/licht8/wg-qr-generator/internal/fsutil"
	"github.com/licht8/wg-qr-generator/internal/ipalloc"
	"github.com/licht8/wg-qr-generator/internal/peerdb"
	"github.com/licht8/wg-qr-generator/internal/reload"
	"github.com/licht8/wg-qr-generator/internal/wgconf"
)

// writeFunc replaces a file atomically.
type writeFunc func(dir, name string, data []byte, perm os.FileMode) error

// Manager serializes edits to one configuration file. Every operation
// re-reads the file; nothing is cached between calls.
type Manager struct {
	cfg        Config
	opts       wgconf.Options
	reloader   reload.Reloader
	standalone *reload.Coalescer
	records    *peerdb.Store
	logger     *slog.Logger
	write      writeFunc
}

// NewManager creates a Manager for cfg.Path. Config defaults are applied
// automatically. reloader may be nil (no reload); records may be nil (no
// record file).
func NewManager(cfg Config, reloader reload.Reloader, records *peerdb.Store, logger *slog.Logger) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reloader == nil {
		reloader = reload.Nop{}
	}
	m := &Manager{
		cfg:      cfg,
		opts:     cfg.documentOptions(),
		reloader: reloader,
		records:  records,
		logger:   logger.With("component", "peerconf"),
		write:    fsutil.WriteFileAtomic,
	}
	m.standalone = reload.Coalesce(reload.Func(m.lockedReload), cfg.Path, m.logger)
	return m, nil
}

// Path returns the managed configuration file.
func (m *Manager) Path() string { return m.cfg.Path }

// Update runs fn against the current document under the file lock. If fn
// succeeds and changed the text, the new text atomically replaces the file
// and the daemon is reloaded. A change that leaves the text byte-identical
// writes nothing and does not reload.
//
// Errors from fn are returned as is and leave the file untouched. A
// *PersistError also leaves the file untouched. A *ReloadError is returned
// after the change has been committed.
func (m *Manager) Update(ctx context.Context, fn func(*wgconf.Document) error) error {
	_, err := m.update(ctx, fn, nil)
	return err
}

// update is Update with an onCommit hook, run under the lock once the file
// holds fn's result: after a successful write and before the reload, or right
// away when the text was already current.
func (m *Manager) update(ctx context.Context, fn func(*wgconf.Document) error, onCommit func()) (changed bool, err error) {
	lock, err := m.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer m.release(lock)

	doc, before, err := m.read()
	if err != nil {
		return false, err
	}
	if err := fn(doc); err != nil {
		return false, err
	}

	after := doc.Serialize()
	if after == before {
		m.logger.Debug("configuration unchanged", "path", m.cfg.Path)
		if onCommit != nil {
			onCommit()
		}
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("peerconf: update %s: %w", m.cfg.Path, err)
	}
	dir, name := filepath.Split(m.cfg.Path)
	if dir == "" {
		dir = "."
	}
	if err := m.write(dir, name, []byte(after), 0o600); err != nil {
		m.logger.Error("configuration write failed", "path", m.cfg.Path, "error", err)
		return false, &PersistError{Path: m.cfg.Path, Err: err}
	}
	m.logger.Info("configuration written", "path", m.cfg.Path, "bytes", len(after))

	if onCommit != nil {
		onCommit()
	}

	if err := m.reloader.Reload(ctx); err != nil {
		m.logger.Warn("reload failed; configuration change stands", "path", m.cfg.Path, "error", err)
		return true, &ReloadError{Path: m.cfg.Path, Err: err}
	}
	return true, nil
}

func (m *Manager) acquire(ctx context.Context) (*filelock.Lock, error) {
	lock, err := filelock.Acquire(ctx, filelock.PathFor(m.cfg.Path), m.cfg.LockTimeout)
	if err != nil {
		if errors.Is(err, filelock.ErrTimeout) {
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}
		return nil, fmt.Errorf("peerconf: lock %s: %w", m.cfg.Path, err)
	}
	return lock, nil
}

func (m *Manager) release(lock *filelock.Lock) {
	if err := lock.Release(); err != nil {
		m.logger.Error("lock release failed", "path", lock.Path(), "error", err)
	}
}

func (m *Manager) read() (*wgconf.Document, string, error) {
	data, err := os.ReadFile(m.cfg.Path)
	if err != nil {
		return nil, "", fmt.Errorf("peerconf: read: %w", err)
	}
	text := string(data)
	return wgconf.ParseWithOptions(text, m.opts), text, nil
}

// subnet returns the allocation pool: the configured override, or the one
// derived from the document's [Interface] Address line.
func (m *Manager) subnet(doc *wgconf.Document) (ipalloc.Subnet, error) {
	var (
		s   ipalloc.Subnet
		err error
	)
	if m.cfg.Subnet != "" {
		s, err = ipalloc.ParseSubnet(m.cfg.Subnet)
	} else {
		s, err = doc.Subnet()
	}
	if err != nil {
		return ipalloc.Subnet{}, err
	}
	if m.cfg.Subnet6 != "" {
		return s.WithIPv6(m.cfg.Subnet6)
	}
	return s, nil
}

// Reload asks the daemon to re-read the file without changing it. It takes
// the file lock so it never applies a half-finished transaction, and
// concurrent calls share one reload.
func (m *Manager) Reload(ctx context.Context) error {
	if err := m.standalone.Reload(ctx); err != nil {
		if errors.Is(err, ErrLockTimeout) || ctx.Err() != nil {
			return err
		}
		return &ReloadError{Path: m.cfg.Path, Err: err}
	}
	return nil
}

func (m *Manager) lockedReload(ctx context.Context) error {
	lock, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer m.release(lock)
	return m.reloader.Reload(ctx)
}

// AllocateAddress returns the lowest free host of subnet not in inUse.
func AllocateAddress(subnet ipalloc.Subnet, inUse ipalloc.AddressSet) (netip.Addr, error) {
	return ipalloc.Allocate(subnet, inUse)
}
