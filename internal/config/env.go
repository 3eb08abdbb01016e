package config

import (
	"fmt"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WGPEER_"

// ApplyEnv overrides fields from WGPEER_* variables found via lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("CONFIG_PATH", &c.WireGuard.ConfigPath)
	str("INTERFACE", &c.WireGuard.Interface)
	str("SUBNET", &c.Subnet)
	str("SUBNET6", &c.Subnet6)
	str("DISABLE_MARKER", &c.DisableMarker)
	str("IDENTITY_PREFIX", &c.IdentityPrefix)
	str("RELOAD_METHOD", &c.Reload.Method)
	str("RECORDS_PATH", &c.Records.Path)
	if err := dur("LOCK_TIMEOUT", &c.LockTimeout); err != nil {
		return err
	}
	return dur("RELOAD_TIMEOUT", &c.Reload.Timeout)
}
