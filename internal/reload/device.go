package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/licht8/wg-qr-generator/internal/wgconf"
	"github.com/licht8/wg-qr-generator/internal/wireguard"
)

// Device reloads in-process: it reads the active peers from the file and
// replaces the peer table of the live interface over netlink.
type Device struct {
	ConfigPath string
	Options    wgconf.Options
	Manager    *wireguard.Manager
	Logger     *slog.Logger
}

// Reload parses the configuration file and syncs its active peers.
func (d *Device) Reload(ctx context.Context) error {
	data, err := os.ReadFile(d.ConfigPath)
	if err != nil {
		return fmt.Errorf("reload: device: %w", err)
	}
	peers, err := wgconf.ParseWithOptions(string(data), d.Options).ActivePeers()
	if err != nil {
		return fmt.Errorf("reload: device: %w", err)
	}
	if err := d.Manager.Sync(ctx, peers); err != nil {
		return fmt.Errorf("reload: device: %w", err)
	}
	d.Logger.Debug("device reloaded",
		"component", "reload",
		"method", MethodDevice,
		"interface", d.Manager.Interface(),
		"peers", len(peers),
	)
	return nil
}

// New builds the Reloader selected by cfg, bounded by cfg.Timeout. ctrl is
// only used by the device method and may be nil otherwise.
func New(cfg Config, opts wgconf.Options, ctrl wireguard.WGController, logger *slog.Logger) (Reloader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var r Reloader
	switch cfg.Method {
	case MethodSyncConf:
		r = NewSyncConf(cfg.Interface, cfg.ConfigPath, logger)
	case MethodSystemd:
		r = NewSystemd(cfg.Interface, logger)
	case MethodDevice:
		if ctrl == nil {
			ctrl = wireguard.NewNetlinkController(logger)
		}
		r = &Device{
			ConfigPath: cfg.ConfigPath,
			Options:    opts,
			Manager:    wireguard.NewManager(ctrl, wireguard.Config{InterfaceName: cfg.Interface}, logger),
			Logger:     logger,
		}
	case MethodNone:
		return Nop{}, nil
	}
	return WithTimeout(r, cfg.Timeout), nil
}
