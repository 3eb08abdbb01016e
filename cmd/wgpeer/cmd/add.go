package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/licht8/wg-qr-generator/internal/clientconf"
	"github.com/licht8/wg-qr-generator/internal/fsutil"
	"github.com/licht8/wg-qr-generator/internal/wgconf"
	"github.com/licht8/wg-qr-generator/internal/wgkey"
)

var (
	addPublicKey  string
	addAddress    string
	addPSK        string
	addNoPSK      bool
	addEndpoint   string
	addDNS        string
	addClientIPs  string
	addKeepalive  int
	addOutputPath string
)

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a peer",
	Long: "Append a peer block for <name> on the next free address (or --address) and\n" +
		"reload the daemon. Without --public-key a keypair is generated and the\n" +
		"client configuration is printed.",
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	f := addCmd.Flags()
	f.StringVar(&addPublicKey, "public-key", "", "client public key (generated when empty)")
	f.StringVar(&addAddress, "address", "", "client IPv4 address (allocated when empty)")
	f.StringVar(&addPSK, "psk", "", "preshared key (generated when empty)")
	f.BoolVar(&addNoPSK, "no-psk", false, "do not use a preshared key")
	f.StringVar(&addEndpoint, "endpoint", "", "server host[:port] for the client configuration")
	f.StringVar(&addDNS, "dns", "", "DNS servers for the client configuration")
	f.StringVar(&addClientIPs, "client-allowed-ips", clientconf.DefaultAllowedIPs, "AllowedIPs of the client configuration")
	f.IntVar(&addKeepalive, "keepalive", 0, "PersistentKeepalive of the client configuration")
	f.StringVarP(&addOutputPath, "output", "o", "", "write the client configuration to this file")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	if addNoPSK && addPSK != "" {
		return errors.New("wgpeer add: --psk and --no-psk are mutually exclusive")
	}

	rt, err := setup(cmd)
	if err != nil {
		return fmt.Errorf("wgpeer add: %w", err)
	}
	ctx, stop := commandContext(cmd)
	defer stop()

	var kp *wgkey.Keypair
	pub := addPublicKey
	if pub == "" {
		kp, err = wgkey.GenerateKeypair()
		if err != nil {
			return fmt.Errorf("wgpeer add: %w", err)
		}
		pub = kp.EncodePublicKey()
	} else if _, err := wgkey.Decode(pub); err != nil {
		return fmt.Errorf("wgpeer add: public key: %w", err)
	}

	psk := addPSK
	switch {
	case addNoPSK:
	case psk == "":
		if psk, err = wgkey.GeneratePresharedKey(); err != nil {
			return fmt.Errorf("wgpeer add: %w", err)
		}
	default:
		if _, err := wgkey.Decode(psk); err != nil {
			return fmt.Errorf("wgpeer add: preshared key: %w", err)
		}
	}

	id := wgconf.Identity{Name: name, PublicKey: pub}
	var allowed []netip.Prefix
	if addAddress != "" {
		addr, perr := netip.ParseAddr(addAddress)
		if perr != nil {
			return fmt.Errorf("wgpeer add: address: %w", perr)
		}
		allowed, err = rt.peers.InsertPeer(ctx, id, addr, psk)
	} else {
		allowed, err = rt.peers.AddPeer(ctx, id, psk)
	}
	if err := finishMutation(cmd, err); err != nil {
		return fmt.Errorf("wgpeer add: %w", err)
	}

	// A caller-supplied key means the private half lives elsewhere.
	if kp == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "peer %s added with %s\n", name, joinPrefixes(allowed))
		return nil
	}

	text, err := renderClientConfig(ctx, rt, kp, psk, allowed)
	if err != nil {
		return fmt.Errorf("wgpeer add: peer %s added but %w", name, err)
	}

	if addOutputPath != "" {
		if err := fsutil.WriteFileAtomic(filepath.Dir(addOutputPath), filepath.Base(addOutputPath), []byte(text), 0o600); err != nil {
			return fmt.Errorf("wgpeer add: peer %s added but %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "peer %s added with %s\n", name, joinPrefixes(allowed))
		fmt.Fprintf(cmd.OutOrStdout(), "client configuration written to %s\n", addOutputPath)
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "peer %s added with %s\n", name, joinPrefixes(allowed))
	_, err = io.WriteString(cmd.OutOrStdout(), text)
	return err
}

func renderClientConfig(ctx context.Context, rt *app, kp *wgkey.Keypair, psk string, allowed []netip.Prefix) (string, error) {
	doc, err := rt.peers.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	priv, ok := doc.InterfaceValue("PrivateKey")
	if !ok {
		return "", errors.New("the server [Interface] has no PrivateKey")
	}
	serverPub, err := wgkey.PublicFromPrivate(priv)
	if err != nil {
		return "", fmt.Errorf("server key: %w", err)
	}

	endpoint := addEndpoint
	if endpoint != "" {
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			if port, ok := doc.InterfaceValue("ListenPort"); ok {
				endpoint = net.JoinHostPort(endpoint, port)
			}
		}
	}

	return clientconf.Render(clientconf.Params{
		PrivateKey:          kp.EncodePrivateKey(),
		Addresses:           allowed,
		DNS:                 addDNS,
		ServerPublicKey:     serverPub,
		PresharedKey:        psk,
		Endpoint:            endpoint,
		AllowedIPs:          addClientIPs,
		PersistentKeepalive: addKeepalive,
	})
}
