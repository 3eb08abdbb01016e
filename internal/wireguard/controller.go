package wireguard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/licht8/wg-qr-generator/internal/wgconf"
)

// ErrUnsupported is returned by controllers on platforms without kernel
// WireGuard support.
var ErrUnsupported = errors.New("wireguard: device control not supported on this platform")

// WGController abstracts OS-level WireGuard operations for testability.
type WGController interface {
	// ReplacePeers makes peers the complete peer set of iface. Peers not in
	// the list are removed; the interface keys and listen port are untouched.
	ReplacePeers(iface string, peers []PeerConfig) error

	// Device reads the live state of iface.
	Device(iface string) (*DeviceStatus, error)
}

// PeerConfig holds the WireGuard-native configuration for a single peer.
type PeerConfig struct {
	PublicKey           []byte
	Endpoint            string
	AllowedIPs          []string
	PSK                 []byte // nil if no PSK
	PersistentKeepalive int
}

// PeerConfigFromDevice translates an active configuration-file peer to a
// WireGuard PeerConfig. PublicKey and PSK are decoded from base64; an empty
// PSK is allowed.
func PeerConfigFromDevice(peer wgconf.DevicePeer) (PeerConfig, error) {
	pubKey, err := base64.StdEncoding.DecodeString(peer.PublicKey)
	if err != nil {
		return PeerConfig{}, fmt.Errorf("wireguard: decode public key: %w", err)
	}
	if len(pubKey) != 32 {
		return PeerConfig{}, fmt.Errorf("wireguard: public key %s is %d bytes, want 32", peer.PublicKey, len(pubKey))
	}

	var psk []byte
	if peer.PresharedKey != "" {
		psk, err = base64.StdEncoding.DecodeString(peer.PresharedKey)
		if err != nil {
			return PeerConfig{}, fmt.Errorf("wireguard: decode psk: %w", err)
		}
	}

	allowed := make([]string, len(peer.AllowedIPs))
	for i, p := range peer.AllowedIPs {
		allowed[i] = p.String()
	}

	return PeerConfig{
		PublicKey:           pubKey,
		Endpoint:            peer.Endpoint,
		AllowedIPs:          allowed,
		PSK:                 psk,
		PersistentKeepalive: peer.PersistentKeepalive,
	}, nil
}

// DeviceStatus is a snapshot of a running WireGuard interface.
type DeviceStatus struct {
	Name       string
	PublicKey  string
	ListenPort int
	Up         bool
	MTU        int
	Peers      []PeerStatus
}

// PeerStatus is the live state of one peer on the device.
type PeerStatus struct {
	PublicKey       string
	Endpoint        string
	AllowedIPs      []string
	LatestHandshake time.Time
	ReceiveBytes    int64
	TransmitBytes   int64
}
