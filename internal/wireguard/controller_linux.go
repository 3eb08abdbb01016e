//go:build linux

package wireguard

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// NetlinkController implements WGController using Linux netlink and wgctrl.
type NetlinkController struct {
	logger *slog.Logger
}

// NewNetlinkController returns a new NetlinkController.
func NewNetlinkController(logger *slog.Logger) *NetlinkController {
	return &NetlinkController{logger: logger}
}

// ReplacePeers configures iface so that exactly peers are present.
// A new wgctrl client is created per call to avoid stale netlink socket issues
// across long-lived controller instances.
func (c *NetlinkController) ReplacePeers(iface string, peers []PeerConfig) error {
	client, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("wireguard: replace peers: open wgctrl: %w", err)
	}
	defer client.Close()

	cfgs := make([]wgtypes.PeerConfig, 0, len(peers))
	for _, p := range peers {
		pc, err := toPeerConfig(p)
		if err != nil {
			return fmt.Errorf("wireguard: replace peers: %w", err)
		}
		cfgs = append(cfgs, pc)
	}

	err = client.ConfigureDevice(iface, wgtypes.Config{
		ReplacePeers: true,
		Peers:        cfgs,
	})
	if err != nil {
		return fmt.Errorf("wireguard: replace peers: configure device: %w", err)
	}

	c.logger.Debug("peers replaced",
		"component", "wireguard",
		"interface", iface,
		"count", len(cfgs),
	)

	return nil
}

func toPeerConfig(cfg PeerConfig) (wgtypes.PeerConfig, error) {
	pubKey, err := wgtypes.NewKey(cfg.PublicKey)
	if err != nil {
		return wgtypes.PeerConfig{}, fmt.Errorf("parse public key: %w", err)
	}

	peerCfg := wgtypes.PeerConfig{
		PublicKey:         pubKey,
		ReplaceAllowedIPs: true,
	}

	if cfg.Endpoint != "" {
		udpAddr, err := net.ResolveUDPAddr("udp", cfg.Endpoint)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("resolve endpoint: %w", err)
		}
		peerCfg.Endpoint = udpAddr
	}

	for _, cidr := range cfg.AllowedIPs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("parse allowed IP %q: %w", cidr, err)
		}
		peerCfg.AllowedIPs = append(peerCfg.AllowedIPs, *ipNet)
	}

	if len(cfg.PSK) > 0 {
		psk, err := wgtypes.NewKey(cfg.PSK)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("parse psk: %w", err)
		}
		peerCfg.PresharedKey = &psk
	}

	if cfg.PersistentKeepalive > 0 {
		keepalive := time.Duration(cfg.PersistentKeepalive) * time.Second
		peerCfg.PersistentKeepaliveInterval = &keepalive
	}

	return peerCfg, nil
}

// Device reads the WireGuard state and link attributes of iface.
func (c *NetlinkController) Device(iface string) (*DeviceStatus, error) {
	client, err := wgctrl.New()
	if err != nil {
		return nil, fmt.Errorf("wireguard: device: open wgctrl: %w", err)
	}
	defer client.Close()

	dev, err := client.Device(iface)
	if err != nil {
		return nil, fmt.Errorf("wireguard: device %s: %w", iface, err)
	}

	status := &DeviceStatus{
		Name:       dev.Name,
		PublicKey:  dev.PublicKey.String(),
		ListenPort: dev.ListenPort,
	}

	if link, err := netlink.LinkByName(iface); err == nil {
		attrs := link.Attrs()
		status.MTU = attrs.MTU
		status.Up = attrs.Flags&net.FlagUp != 0
	} else {
		c.logger.Debug("link attributes unavailable",
			"component", "wireguard",
			"interface", iface,
			"error", err,
		)
	}

	for _, p := range dev.Peers {
		ps := PeerStatus{
			PublicKey:       p.PublicKey.String(),
			LatestHandshake: p.LastHandshakeTime,
			ReceiveBytes:    p.ReceiveBytes,
			TransmitBytes:   p.TransmitBytes,
		}
		if p.Endpoint != nil {
			ps.Endpoint = p.Endpoint.String()
		}
		for _, n := range p.AllowedIPs {
			ps.AllowedIPs = append(ps.AllowedIPs, n.String())
		}
		status.Peers = append(status.Peers, ps)
	}

	return status, nil
}
