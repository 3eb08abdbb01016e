// Package reload tells the running WireGuard daemon to pick up a rewritten
// configuration file.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Reloader applies the on-disk configuration to the running daemon.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Func adapts a function to a Reloader.
type Func func(ctx context.Context) error

// Reload calls f(ctx).
func (f Func) Reload(ctx context.Context) error { return f(ctx) }

// Nop is a Reloader that does nothing.
type Nop struct{}

// Reload returns nil.
func (Nop) Reload(context.Context) error { return nil }

// WithTimeout bounds every Reload of r by d. A non-positive d returns r.
func WithTimeout(r Reloader, d time.Duration) Reloader {
	if d <= 0 {
		return r
	}
	return Func(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return r.Reload(ctx)
	})
}

// Coalescer merges concurrent Reload calls into one run of the wrapped
// Reloader. Every caller waiting on the same run observes its result.
type Coalescer struct {
	r      Reloader
	key    string
	group  singleflight.Group
	logger *slog.Logger
}

// Coalesce wraps r so that concurrent reloads are shared.
func Coalesce(r Reloader, key string, logger *slog.Logger) *Coalescer {
	return &Coalescer{r: r, key: key, logger: logger}
}

// Reload runs or joins a shared reload. The shared run is detached from the
// cancellation of any single caller; ctx only bounds how long this caller waits.
func (c *Coalescer) Reload(ctx context.Context) error {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.key, func() (interface{}, error) {
		return nil, c.r.Reload(detached)
	})
	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("reload coalesced",
				"component", "reload",
				"key", c.key,
			)
		}
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("reload: wait: %w", ctx.Err())
	}
}

// Reload methods accepted by New.
const (
	MethodSyncConf = "syncconf"
	MethodSystemd  = "systemd"
	MethodDevice   = "device"
	MethodNone     = "none"
)

// ErrUnknownMethod is returned by New for an unrecognised Method.
var ErrUnknownMethod = errors.New("reload: unknown method")

// Config selects and parameterises the reload strategy.
type Config struct {
	// Method is one of syncconf, systemd, device or none.
	// Default: "syncconf"
	Method string

	// Interface is the WireGuard interface name.
	// Default: "wg0"
	Interface string

	// ConfigPath is the configuration file; syncconf and device read it.
	ConfigPath string

	// Timeout bounds a single reload.
	// Default: 15s
	Timeout time.Duration
}

// DefaultTimeout is the default per-reload timeout.
const DefaultTimeout = 15 * time.Second

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = MethodSyncConf
	}
	if c.Interface == "" {
		c.Interface = "wg0"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	switch c.Method {
	case MethodSyncConf, MethodSystemd, MethodDevice, MethodNone:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, c.Method)
	}
	if c.Timeout < 0 {
		return errors.New("reload: config: Timeout must not be negative")
	}
	if (c.Method == MethodSyncConf || c.Method == MethodDevice) && c.ConfigPath == "" {
		return fmt.Errorf("reload: config: ConfigPath is required for method %s", c.Method)
	}
	return nil
}
