package wireguard

import (
	"errors"
	"strings"
)

// Config holds the configuration for talking to the WireGuard device.
// Config is passed as a constructor argument; this package does no file I/O.
type Config struct {
	// InterfaceName is the WireGuard network interface name.
	// Default: "wg0"
	InterfaceName string
}

// DefaultInterfaceName is the default WireGuard interface name.
const DefaultInterfaceName = "wg0"

// maxInterfaceNameLen is IFNAMSIZ minus the trailing NUL.
const maxInterfaceNameLen = 15

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.InterfaceName == "" {
		c.InterfaceName = DefaultInterfaceName
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.InterfaceName == "" {
		return errors.New("wireguard: config: InterfaceName is required")
	}
	if len(c.InterfaceName) > maxInterfaceNameLen {
		return errors.New("wireguard: config: InterfaceName must be at most 15 bytes")
	}
	if strings.ContainsAny(c.InterfaceName, "/ \t\r\n") {
		return errors.New("wireguard: config: InterfaceName must not contain '/' or whitespace")
	}
	return nil
}
