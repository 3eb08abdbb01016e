package wgconf

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/licht8/wg-qr-generator/internal/ipalloc"
)

// AllocatedAddresses returns every host address assigned in the document:
// AllowedIPs of all peers, active or disabled, and the interface Address
// lines. A disabled peer keeps its address so re-enabling it cannot collide.
func (d *Document) AllocatedAddresses() ipalloc.AddressSet {
	set := ipalloc.NewAddressSet()
	for _, raw := range d.lines {
		key, value, ok := keyValue(raw, d.opts.Marker)
		if !ok {
			continue
		}
		if strings.EqualFold(key, "AllowedIPs") || strings.EqualFold(key, "Address") {
			for _, p := range parsePrefixes(value) {
				set.Add(p.Addr())
			}
		}
	}
	return set
}

// InterfaceAddresses returns the prefixes of the active Address lines of the
// [Interface] section, in file order.
func (d *Document) InterfaceAddresses() []netip.Prefix {
	var out []netip.Prefix
	d.eachInterfaceValue(func(key, value string) bool {
		if strings.EqualFold(key, "Address") {
			out = append(out, parsePrefixes(value)...)
		}
		return true
	})
	return out
}

// InterfaceValue returns the value of the first active key line of the
// [Interface] section, such as PrivateKey or ListenPort.
func (d *Document) InterfaceValue(key string) (string, bool) {
	var (
		found string
		ok    bool
	)
	d.eachInterfaceValue(func(k, v string) bool {
		if strings.EqualFold(k, key) {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

// eachInterfaceValue calls fn for every active key line inside an
// [Interface] section until fn returns false.
func (d *Document) eachInterfaceValue(fn func(key, value string) bool) {
	inInterface := false
	for _, raw := range d.lines {
		content := strings.TrimSpace(trimEOL(raw))
		switch {
		case isSection(content, "Interface"):
			inInterface = true
			continue
		case isSection(content, "Peer"):
			inInterface = false
			continue
		}
		if !inInterface {
			continue
		}
		if key, value, ok := activeKeyValue(raw); ok && !fn(key, value) {
			return
		}
	}
}

// Subnet derives the allocation subnet from the [Interface] Address line:
// the first IPv4 prefix becomes the pool, the first IPv6 prefix (if any) the
// paired IPv6 network.
func (d *Document) Subnet() (ipalloc.Subnet, error) {
	var v4, v6 netip.Prefix
	for _, p := range d.InterfaceAddresses() {
		switch {
		case p.Addr().Is4() && !v4.IsValid():
			v4 = p
		case p.Addr().Is6() && !v6.IsValid():
			v6 = p
		}
	}
	if !v4.IsValid() {
		return ipalloc.Subnet{}, fmt.Errorf("%w: no IPv4 Address in [Interface]", ipalloc.ErrInvalidSubnet)
	}
	s, err := ipalloc.NewSubnet(v4)
	if err != nil {
		return ipalloc.Subnet{}, err
	}
	if v6.IsValid() {
		return s.WithIPv6(v6.String())
	}
	return s, nil
}

// DevicePeer is a peer as the daemon sees it: only active lines count.
type DevicePeer struct {
	PublicKey           string
	PresharedKey        string
	Endpoint            string
	AllowedIPs          []netip.Prefix
	PersistentKeepalive int
}

// ActivePeers returns the [Peer] sections that are live for the daemon, in
// file order. Unlike the block index it follows section semantics: a section
// runs until the next section header, blank lines included. Sections whose
// PublicKey line is disabled are skipped.
func (d *Document) ActivePeers() ([]DevicePeer, error) {
	var (
		peers []DevicePeer
		cur   *DevicePeer
	)
	flush := func() {
		if cur != nil && cur.PublicKey != "" {
			peers = append(peers, *cur)
		}
		cur = nil
	}

	for i, raw := range d.lines {
		content := strings.TrimSpace(trimEOL(raw))
		switch {
		case isSection(content, "Peer"):
			flush()
			cur = &DevicePeer{}
			continue
		case isSection(content, "Interface"):
			flush()
			continue
		}
		if cur == nil {
			continue
		}
		key, value, ok := activeKeyValue(raw)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "publickey":
			cur.PublicKey = value
		case "presharedkey":
			cur.PresharedKey = value
		case "endpoint":
			cur.Endpoint = value
		case "allowedips":
			for _, field := range strings.Split(value, ",") {
				field = strings.TrimSpace(field)
				if field == "" {
					continue
				}
				p, err := netip.ParsePrefix(field)
				if err != nil {
					return nil, fmt.Errorf("wgconf: line %d: AllowedIPs %q: %w", i+1, field, err)
				}
				cur.AllowedIPs = append(cur.AllowedIPs, p)
			}
		case "persistentkeepalive":
			if strings.EqualFold(value, "off") {
				cur.PersistentKeepalive = 0
				continue
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 65535 {
				return nil, fmt.Errorf("wgconf: line %d: PersistentKeepalive %q is not a valid interval", i+1, value)
			}
			cur.PersistentKeepalive = n
		}
	}
	flush()
	return peers, nil
}
