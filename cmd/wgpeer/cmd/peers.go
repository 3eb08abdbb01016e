package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/licht8/wg-qr-generator/internal/wgconf"
)

var peerPublicKey string

var enableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a peer",
	Long:  "Uncomment the peer block of <name> and reload the daemon. Enabling an enabled peer changes nothing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabled(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a peer",
	Long: "Comment out the peer block of <name> and reload the daemon. The block stays\n" +
		"in the file and keeps its address.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetEnabled(cmd, args[0], false)
	},
}

func init() {
	for _, c := range []*cobra.Command{enableCmd, disableCmd} {
		c.Flags().StringVar(&peerPublicKey, "public-key", "", "public key the peer must have")
		rootCmd.AddCommand(c)
	}
}

func runSetEnabled(cmd *cobra.Command, name string, enabled bool) error {
	op := "disable"
	if enabled {
		op = "enable"
	}

	rt, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("wgpeer %s: %w", op, err)
	}
	ctx, stop := commandContext(cmd)
	defer stop()

	id := wgconf.Identity{Name: name, PublicKey: peerPublicKey}
	if err := finishMutation(cmd, rt.peers.SetPeerEnabled(ctx, id, enabled)); err != nil {
		return fmt.Errorf("wgpeer %s: %w", op, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "peer %s %sd\n", name, op)
	return nil
}
