package wireguard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/licht8/wg-qr-generator/internal/wgconf"
)

// Manager applies configuration-file peers to the live WireGuard device.
type Manager struct {
	ctrl   WGController
	cfg    Config
	logger *slog.Logger
}

// NewManager creates a new Manager. Config defaults are applied automatically.
func NewManager(ctrl WGController, cfg Config, logger *slog.Logger) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		ctrl:   ctrl,
		cfg:    cfg,
		logger: logger,
	}
}

// Interface returns the managed interface name.
func (m *Manager) Interface() string { return m.cfg.InterfaceName }

// Sync replaces the device peer set with peers. Unlike a per-peer upsert any
// conversion error aborts before the device is touched, so a bad line in the
// file never strips every other peer from the interface.
func (m *Manager) Sync(ctx context.Context, peers []wgconf.DevicePeer) error {
	cfgs := make([]PeerConfig, 0, len(peers))
	for _, p := range peers {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("wireguard: sync: %w", err)
		}
		pc, err := PeerConfigFromDevice(p)
		if err != nil {
			return fmt.Errorf("wireguard: sync: %w", err)
		}
		cfgs = append(cfgs, pc)
	}

	if err := m.ctrl.ReplacePeers(m.cfg.InterfaceName, cfgs); err != nil {
		return fmt.Errorf("wireguard: sync: %w", err)
	}

	m.logger.Info("device peers synced",
		"component", "wireguard",
		"interface", m.cfg.InterfaceName,
		"count", len(cfgs),
	)

	return nil
}

// Status returns the live device state.
func (m *Manager) Status() (*DeviceStatus, error) {
	st, err := m.ctrl.Device(m.cfg.InterfaceName)
	if err != nil {
		return nil, fmt.Errorf("wireguard: status: %w", err)
	}
	return st, nil
}
