package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/licht8/wg-qr-generator/internal/config"
	"github.com/licht8/wg-qr-generator/internal/peerconf"
	"github.com/licht8/wg-qr-generator/internal/peerdb"
	"github.com/licht8/wg-qr-generator/internal/reload"
	"github.com/licht8/wg-qr-generator/internal/wireguard"
)

// newController builds the device controller used by status and the device
// reload method.
var newController = func(logger *slog.Logger) wireguard.WGController {
	return wireguard.NewNetlinkController(logger)
}

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	peers  *peerconf.Manager
}

// loadConfig layers the config file, the environment and the CLI flags.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cfgFile, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if wgConfig != "" {
		cfg.WireGuard.ConfigPath = wgConfig
	}
	if iface != "" {
		cfg.WireGuard.Interface = iface
	}
	if subnet != "" {
		cfg.Subnet = subnet
	}
	if reloadMethod != "" {
		cfg.Reload.Method = reloadMethod
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	reloader, err := reload.New(cfg.ReloadConf(), cfg.DocumentOptions(), newController(logger), logger)
	if err != nil {
		return nil, err
	}

	var records *peerdb.Store
	if cfg.Records.Path != "" {
		records = peerdb.NewStore(cfg.Records.Path)
	}

	peers, err := peerconf.NewManager(cfg.PeerConf(), reloader, records, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, peers: peers}, nil
}

// commandContext is cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// finishMutation downgrades a reload failure after a committed change to a
// warning; the file already holds the change.
func finishMutation(cmd *cobra.Command, err error) error {
	var rerr *peerconf.ReloadError
	if errors.As(err, &rerr) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s was updated but the reload failed: %v\n", rerr.Path, rerr.Err)
		return nil
	}
	return err
}

func joinPrefixes(ps []netip.Prefix) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
