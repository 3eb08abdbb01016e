package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/licht8/wg-qr-generator/internal/peerconf"
	"github.com/licht8/wg-qr-generator/internal/wireguard"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show live interface status",
	Long: "Read the WireGuard device and show each peer of the configuration file\n" +
		"with its endpoint, latest handshake and transfer counters.",
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("wgpeer status: %w", err)
	}
	ctx, stop := commandContext(cmd)
	defer stop()

	peers, err := rt.peers.ListPeers(ctx)
	if err != nil {
		return fmt.Errorf("wgpeer status: %w", err)
	}
	dev := wireguard.NewManager(newController(rt.logger), rt.cfg.WireGuardConf(), rt.logger)
	st, err := dev.Status()
	if err != nil {
		return fmt.Errorf("wgpeer status: %w", err)
	}

	printStatus(cmd.OutOrStdout(), st, peers, time.Now())
	return nil
}

func printStatus(w io.Writer, st *wireguard.DeviceStatus, peers []peerconf.PeerInfo, now time.Time) {
	link := "down"
	if st.Up {
		link = "up"
	}
	fmt.Fprintf(w, "interface: %s\n", st.Name)
	fmt.Fprintf(w, "  public key: %s\n", st.PublicKey)
	fmt.Fprintf(w, "  listening port: %d\n", st.ListenPort)
	fmt.Fprintf(w, "  link: %s, mtu %d\n", link, st.MTU)

	live := make(map[string]wireguard.PeerStatus, len(st.Peers))
	for _, p := range st.Peers {
		live[p.PublicKey] = p
	}

	for _, p := range peers {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "\npeer: %s\n", name)
		fmt.Fprintf(w, "  public key: %s\n", p.PublicKey)
		fmt.Fprintf(w, "  config state: %s\n", p.State)

		ps, ok := live[p.PublicKey]
		if !ok {
			fmt.Fprintln(w, "  device: not configured")
			continue
		}
		delete(live, p.PublicKey)
		printPeerStatus(w, ps, now)
	}

	for _, p := range st.Peers {
		if _, ok := live[p.PublicKey]; !ok {
			continue
		}
		fmt.Fprintf(w, "\npeer: (not in configuration file)\n")
		fmt.Fprintf(w, "  public key: %s\n", p.PublicKey)
		printPeerStatus(w, p, now)
	}
}

func printPeerStatus(w io.Writer, p wireguard.PeerStatus, now time.Time) {
	if p.Endpoint != "" {
		fmt.Fprintf(w, "  endpoint: %s\n", p.Endpoint)
	}
	fmt.Fprintf(w, "  latest handshake: %s\n", handshakeAge(p.LatestHandshake, now))
	fmt.Fprintf(w, "  transfer: %s received, %s sent\n", formatBytes(p.ReceiveBytes), formatBytes(p.TransmitBytes))
}

func handshakeAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return now.Sub(t).Truncate(time.Second).String() + " ago"
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
