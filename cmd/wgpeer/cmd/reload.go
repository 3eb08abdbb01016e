package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the daemon",
	Long:  "Ask the WireGuard daemon to re-read the configuration file without changing it.",
	Args:  cobra.NoArgs,
	RunE:  runReload,
}

func init() {
	rootCmd.AddCommand(reloadCmd)
}

func runReload(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("wgpeer reload: %w", err)
	}
	ctx, stop := commandContext(cmd)
	defer stop()

	if err := rt.peers.Reload(ctx); err != nil {
		return fmt.Errorf("wgpeer reload: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reloaded %s (%s)\n", rt.peers.Path(), rt.cfg.Reload.Method)
	return nil
}
