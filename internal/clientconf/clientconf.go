// Package clientconf renders the wg-quick configuration handed to a new
// client after it has been added to the server.
package clientconf

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/valyala/fasttemplate"
)

// DefaultAllowedIPs routes all client traffic through the tunnel.
const DefaultAllowedIPs = "0.0.0.0/0,::/0"

// Params are the values substituted into the client configuration.
type Params struct {
	// PrivateKey is the client's private key.
	PrivateKey string

	// Addresses become the client's [Interface] Address line.
	Addresses []netip.Prefix

	// DNS servers, comma separated. Optional.
	DNS string

	// ServerPublicKey is the public key of the server interface.
	ServerPublicKey string

	// PresharedKey is shared with the server's [Peer] block. Optional.
	PresharedKey string

	// Endpoint is the server's host:port. Optional.
	Endpoint string

	// AllowedIPs the client routes into the tunnel.
	// Default: "0.0.0.0/0,::/0"
	AllowedIPs string

	// PersistentKeepalive in seconds; zero omits it.
	PersistentKeepalive int
}

const clientTemplate = "[Interface]\n" +
	"PrivateKey = [private_key]\n" +
	"Address = [address]\n" +
	"[dns]" +
	"\n" +
	"[Peer]\n" +
	"PublicKey = [server_public_key]\n" +
	"[preshared_key]" +
	"[endpoint]" +
	"AllowedIPs = [allowed_ips]\n" +
	"[keepalive]"

var client = fasttemplate.New(clientTemplate, "[", "]")

// Validate checks that the mandatory values are present and single-line.
func (p Params) Validate() error {
	if p.PrivateKey == "" {
		return errors.New("clientconf: private key is required")
	}
	if p.ServerPublicKey == "" {
		return errors.New("clientconf: server public key is required")
	}
	if len(p.Addresses) == 0 {
		return errors.New("clientconf: at least one address is required")
	}
	for _, v := range []string{p.PrivateKey, p.ServerPublicKey, p.PresharedKey, p.Endpoint, p.DNS, p.AllowedIPs} {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("clientconf: value %q spans lines", v)
		}
	}
	if p.PersistentKeepalive < 0 {
		return errors.New("clientconf: persistent keepalive must not be negative")
	}
	return nil
}

// Render returns the client configuration text.
func Render(p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if p.AllowedIPs == "" {
		p.AllowedIPs = DefaultAllowedIPs
	}

	addrs := make([]string, len(p.Addresses))
	for i, a := range p.Addresses {
		addrs[i] = a.String()
	}

	optional := func(w io.Writer, key, value string) (int, error) {
		if value == "" {
			return 0, nil
		}
		return fmt.Fprintf(w, "%s = %s\n", key, value)
	}

	var keepalive string
	if p.PersistentKeepalive > 0 {
		keepalive = fmt.Sprint(p.PersistentKeepalive)
	}

	out, err := client.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		switch tag {
		case "private_key":
			return io.WriteString(w, p.PrivateKey)
		case "address":
			return io.WriteString(w, strings.Join(addrs, ","))
		case "dns":
			return optional(w, "DNS", p.DNS)
		case "server_public_key":
			return io.WriteString(w, p.ServerPublicKey)
		case "preshared_key":
			return optional(w, "PresharedKey", p.PresharedKey)
		case "endpoint":
			return optional(w, "Endpoint", p.Endpoint)
		case "allowed_ips":
			return io.WriteString(w, p.AllowedIPs)
		case "keepalive":
			return optional(w, "PersistentKeepalive", keepalive)
		default:
			return 0, fmt.Errorf("clientconf: unknown tag %q", tag)
		}
	})
	if err != nil {
		return "", fmt.Errorf("clientconf: render: %w", err)
	}
	return out, nil
}
