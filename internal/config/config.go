// Package config loads wgpeer settings from an optional YAML file and
// WGPEER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/licht8/wg-qr-generator/internal/ipalloc"
	"github.com/licht8/wg-qr-generator/internal/peerconf"
	"github.com/licht8/wg-qr-generator/internal/reload"
	"github.com/licht8/wg-qr-generator/internal/wgconf"
	"github.com/licht8/wg-qr-generator/internal/wireguard"
)

const (
	// DefaultPath is where the configuration file is looked up.
	DefaultPath = "/etc/wgpeer/config.yaml"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log output format.
	DefaultLogFormat = "text"
)

// Config is the top-level wgpeer configuration.
type Config struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat is "text", "json" or "console".
	// Default: "text"
	LogFormat string `yaml:"log_format" validate:"oneof=text json console"`

	WireGuard WireGuardConfig `yaml:"wireguard"`

	// Subnet overrides the IPv4 pool derived from the [Interface] Address line.
	Subnet string `yaml:"subnet"`

	// Subnet6 overrides the paired IPv6 network.
	Subnet6 string `yaml:"subnet6"`

	// DisableMarker is the comment prefix of disabled lines.
	// Default: "# "
	DisableMarker string `yaml:"disable_marker" validate:"required"`

	// IdentityPrefix opens a peer block.
	// Default: "### Client "
	IdentityPrefix string `yaml:"identity_prefix" validate:"required"`

	// LockTimeout bounds waiting for the configuration lock. A negative
	// value (e.g. -1s) waits until the command is interrupted.
	// Default: 10s
	LockTimeout time.Duration `yaml:"lock_timeout"`

	Reload  ReloadConfig  `yaml:"reload"`
	Records RecordsConfig `yaml:"records"`
}

// WireGuardConfig locates the managed interface and its configuration file.
type WireGuardConfig struct {
	// ConfigPath is the wg-quick configuration file.
	// Default: "/etc/wireguard/wg0.conf"
	ConfigPath string `yaml:"config_path" validate:"required"`

	// Interface is the WireGuard interface name.
	// Default: "wg0"
	Interface string `yaml:"interface" validate:"required,ifname"`
}

// ReloadConfig selects how the daemon is told about changes.
type ReloadConfig struct {
	// Method is syncconf, systemd, device or none.
	// Default: "syncconf"
	Method string `yaml:"method" validate:"oneof=syncconf systemd device none"`

	// Timeout bounds a single reload.
	// Default: 15s
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// RecordsConfig locates the optional peer record file.
type RecordsConfig struct {
	// Path of user_records.json. Empty disables the record file.
	Path string `yaml:"path"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.WireGuard.ConfigPath == "" {
		c.WireGuard.ConfigPath = peerconf.DefaultPath
	}
	if c.WireGuard.Interface == "" {
		c.WireGuard.Interface = wireguard.DefaultInterfaceName
	}
	if c.DisableMarker == "" {
		c.DisableMarker = wgconf.DefaultMarker
	}
	if c.IdentityPrefix == "" {
		c.IdentityPrefix = wgconf.DefaultIdentityPrefix
	}
	if c.LockTimeout == 0 {
		c.LockTimeout = peerconf.DefaultLockTimeout
	}
	if c.Reload.Method == "" {
		c.Reload.Method = reload.MethodSyncConf
	}
	if c.Reload.Timeout == 0 {
		c.Reload.Timeout = reload.DefaultTimeout
	}
}

// Validate checks struct tags first, then the cross-field rules owned by
// the individual packages.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.Subnet != "" {
		s, err := ipalloc.ParseSubnet(c.Subnet)
		if err != nil {
			return fmt.Errorf("config: subnet: %w", err)
		}
		if _, err := s.WithIPv6(c.Subnet6); err != nil {
			return fmt.Errorf("config: subnet6: %w", err)
		}
	}
	pc := c.PeerConf()
	if err := pc.Validate(); err != nil {
		return err
	}
	rc := c.ReloadConf()
	if err := rc.Validate(); err != nil {
		return err
	}
	wc := c.WireGuardConf()
	return wc.Validate()
}

// PeerConf returns the transaction settings.
func (c *Config) PeerConf() peerconf.Config {
	return peerconf.Config{
		Path:           c.WireGuard.ConfigPath,
		Subnet:         c.Subnet,
		Subnet6:        c.Subnet6,
		Marker:         c.DisableMarker,
		IdentityPrefix: c.IdentityPrefix,
		LockTimeout:    c.LockTimeout,
	}
}

// ReloadConf returns the reload settings.
func (c *Config) ReloadConf() reload.Config {
	return reload.Config{
		Method:     c.Reload.Method,
		Interface:  c.WireGuard.Interface,
		ConfigPath: c.WireGuard.ConfigPath,
		Timeout:    c.Reload.Timeout,
	}
}

// WireGuardConf returns the device settings.
func (c *Config) WireGuardConf() wireguard.Config {
	return wireguard.Config{InterfaceName: c.WireGuard.Interface}
}

// DocumentOptions returns the parse options for the configuration file.
func (c *Config) DocumentOptions() wgconf.Options {
	return wgconf.Options{Marker: c.DisableMarker, IdentityPrefix: c.IdentityPrefix}
}

// Load builds a Config from the YAML file at path (if any), then the
// environment, then defaults. A missing file is an error unless path is
// DefaultPath or empty. The result is not validated; callers apply flag
// overrides and then call Validate.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if lookup != nil {
		if err := cfg.ApplyEnv(lookup); err != nil {
			return nil, err
		}
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment.
// Variables already set are not overwritten.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: env file %s: %w", path, err)
	}
	return nil
}
