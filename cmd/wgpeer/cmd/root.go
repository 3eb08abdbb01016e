// Package cmd implements the wgpeer CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/licht8/wg-qr-generator/internal/config"
)

var (
	cfgFile      string
	envFile      string
	logLevel     string
	logFormat    string
	wgConfig     string
	iface        string
	subnet       string
	reloadMethod string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("wgpeer version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "wgpeer",
	Short: "wgpeer manages WireGuard peers in a wg-quick configuration file",
	Long: "wgpeer edits the peer blocks of a WireGuard server configuration file.\n" +
		"It enables and disables peers by commenting their lines, adds peers on the\n" +
		"next free address, and asks the running daemon to pick up every change.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load WGPEER_* variables from this file first")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json, console)")
	rootCmd.PersistentFlags().StringVar(&wgConfig, "wg-config", "", "WireGuard configuration file (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&iface, "interface", "i", "", "WireGuard interface name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&subnet, "subnet", "", "IPv4 address pool (overrides config)")
	rootCmd.PersistentFlags().StringVar(&reloadMethod, "reload-method", "", "reload method: syncconf, systemd, device or none (overrides config)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("wgpeer version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
