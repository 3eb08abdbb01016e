package peerconf

import (
	"errors"
	"time"

	"github.com/licht8/wg-qr-generator/internal/wgconf"
)

// Config holds the configuration for peer transactions.
// Config is passed as a constructor argument; there is no file I/O in this package
// beyond the configuration file it manages.
type Config struct {
	// Path is the WireGuard configuration file.
	// Default: "/etc/wireguard/wg0.conf"
	Path string

	// Subnet overrides the IPv4 pool derived from the [Interface] Address
	// line. Either form is accepted: "10.66.66.1/24" or "10.66.66.0/24".
	Subnet string

	// Subnet6 overrides the IPv6 network paired with Subnet.
	Subnet6 string

	// Marker is the comment prefix of disabled lines.
	// Default: "# "
	Marker string

	// IdentityPrefix opens a peer block.
	// Default: "### Client "
	IdentityPrefix string

	// LockTimeout bounds how long a transaction waits for the file lock.
	// A negative value sets no bound; the wait ends only with the context.
	// Default: 10s
	LockTimeout time.Duration
}

// Default values.
const (
	DefaultPath        = "/etc/wireguard/wg0.conf"
	DefaultLockTimeout = 10 * time.Second
)

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Marker == "" {
		c.Marker = wgconf.DefaultMarker
	}
	if c.IdentityPrefix == "" {
		c.IdentityPrefix = wgconf.DefaultIdentityPrefix
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultLockTimeout
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("peerconf: config: Path is required")
	}
	opts := c.documentOptions()
	return opts.Validate()
}

func (c *Config) documentOptions() wgconf.Options {
	return wgconf.Options{Marker: c.Marker, IdentityPrefix: c.IdentityPrefix}
}
