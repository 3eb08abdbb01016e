package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var allocatePool bool

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Show the next free address",
	Long:  "Print the address the next add would assign. The file is not changed.",
	Args:  cobra.NoArgs,
	RunE:  runAllocate,
}

func init() {
	allocateCmd.Flags().BoolVar(&allocatePool, "pool", false, "also print the pool size and the assigned addresses")
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("wgpeer allocate: %w", err)
	}
	ctx, stop := commandContext(cmd)
	defer stop()

	addr, err := rt.peers.NextAddress(ctx)
	if err != nil {
		return fmt.Errorf("wgpeer allocate: %w", err)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, addr)
	if !allocatePool {
		return nil
	}

	u, err := rt.peers.Pool(ctx)
	if err != nil {
		return fmt.Errorf("wgpeer allocate: %w", err)
	}
	assigned := make([]string, len(u.Assigned))
	for i, a := range u.Assigned {
		assigned[i] = a.String()
	}
	fmt.Fprintf(w, "pool:     %s (%d hosts)\n", u.Subnet.Prefix, u.Subnet.Usable())
	if u.Subnet.Server.IsValid() {
		fmt.Fprintf(w, "server:   %s\n", u.Subnet.Server)
	}
	fmt.Fprintf(w, "assigned: %s\n", strings.Join(assigned, ", "))
	fmt.Fprintf(w, "free:     %d\n", u.Free)
	return nil
}
