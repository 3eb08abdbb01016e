package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List peers",
	Long:  "List the peer blocks of the configuration file in file order.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
	rootCmd.AddCommand(listCmd)
}

type listEntry struct {
	Name       string `json:"name"`
	PublicKey  string `json:"public_key"`
	State      string `json:"state"`
	AllowedIPs string `json:"allowed_ips"`
	Line       int    `json:"line"`
	EndLine    int    `json:"end_line"`
}

func runList(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("wgpeer list: %w", err)
	}
	ctx, stop := commandContext(cmd)
	defer stop()

	peers, err := rt.peers.ListPeers(ctx)
	if err != nil {
		return fmt.Errorf("wgpeer list: %w", err)
	}

	entries := make([]listEntry, 0, len(peers))
	for _, p := range peers {
		entries = append(entries, listEntry{
			Name:       p.Name,
			PublicKey:  p.PublicKey,
			State:      p.State.String(),
			AllowedIPs: joinPrefixes(p.AllowedIPs),
			Line:       p.Line,
			EndLine:    p.EndLine,
		})
	}

	w := cmd.OutOrStdout()
	if listJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "no peers")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tALLOWED IPS\tPUBLIC KEY\tLINES")
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d-%d\n", name, e.State, e.AllowedIPs, e.PublicKey, e.Line, e.EndLine)
	}
	return tw.Flush()
}
