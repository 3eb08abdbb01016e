// Package ipalloc allocates tunnel addresses for WireGuard peers from a bounded subnet.
package ipalloc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Sentinel errors returned by subnet parsing and allocation.
var (
	ErrInvalidSubnet          = errors.New("ipalloc: invalid subnet")
	ErrAddressSpaceExhausted  = errors.New("ipalloc: address space exhausted")
	errIPv6OffsetOutOfNetwork = errors.New("ipalloc: host offset outside IPv6 subnet")
)

const (
	minIPv4Bits = 1
	maxIPv4Bits = 30
	maxIPv6Bits = 126
)

// Subnet describes the pool peers are allocated from.
//
// Prefix is always the masked IPv4 network. Server is the address held by the
// interface itself and is never handed out. IPv6 is optional; its zero value
// means the tunnel is IPv4-only.
type Subnet struct {
	Prefix netip.Prefix
	Server netip.Addr
	IPv6   netip.Prefix
}

// ParseSubnet parses an IPv4 CIDR. Both the interface form ("10.0.0.1/24",
// which records 10.0.0.1 as the server address) and the network form
// ("10.0.0.0/24", which reserves the first host for the server) are accepted.
func ParseSubnet(cidr string) (Subnet, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return Subnet{}, fmt.Errorf("%w: %q: %v", ErrInvalidSubnet, cidr, err)
	}
	return NewSubnet(p)
}

// NewSubnet builds a Subnet from an IPv4 prefix. See ParseSubnet for how the
// server address is chosen.
func NewSubnet(p netip.Prefix) (Subnet, error) {
	if !p.IsValid() || !p.Addr().Unmap().Is4() {
		return Subnet{}, fmt.Errorf("%w: %s is not an IPv4 network", ErrInvalidSubnet, p)
	}
	p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits())
	if p.Bits() < minIPv4Bits || p.Bits() > maxIPv4Bits {
		return Subnet{}, fmt.Errorf("%w: prefix length /%d leaves no usable host range (want /%d to /%d)",
			ErrInvalidSubnet, p.Bits(), minIPv4Bits, maxIPv4Bits)
	}

	masked := p.Masked()
	s := Subnet{Prefix: masked, Server: p.Addr()}
	if s.Server == masked.Addr() {
		s.Server = fromUint32(toUint32(masked.Addr()) + 1)
	}
	if err := s.Validate(); err != nil {
		return Subnet{}, err
	}
	return s, nil
}

// WithIPv6 returns a copy of s with the IPv6 network set from cidr. An empty
// string clears it.
func (s Subnet) WithIPv6(cidr string) (Subnet, error) {
	cidr = strings.TrimSpace(cidr)
	if cidr == "" {
		s.IPv6 = netip.Prefix{}
		return s, nil
	}
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Subnet{}, fmt.Errorf("%w: %q: %v", ErrInvalidSubnet, cidr, err)
	}
	s.IPv6 = p.Masked()
	if err := s.Validate(); err != nil {
		return Subnet{}, err
	}
	return s, nil
}

// Validate checks the invariants every allocation relies on.
func (s Subnet) Validate() error {
	if !s.Prefix.IsValid() || !s.Prefix.Addr().Is4() {
		return fmt.Errorf("%w: missing IPv4 network", ErrInvalidSubnet)
	}
	if s.Prefix.Bits() < minIPv4Bits || s.Prefix.Bits() > maxIPv4Bits {
		return fmt.Errorf("%w: prefix length /%d leaves no usable host range (want /%d to /%d)",
			ErrInvalidSubnet, s.Prefix.Bits(), minIPv4Bits, maxIPv4Bits)
	}
	if s.Prefix != s.Prefix.Masked() {
		return fmt.Errorf("%w: %s should be %s", ErrInvalidSubnet, s.Prefix, s.Prefix.Masked())
	}
	if s.Server.IsValid() {
		first, last := s.hostRange()
		n := toUint32(s.Server.Unmap())
		if !s.Server.Unmap().Is4() || n < first || n > last {
			return fmt.Errorf("%w: server address %s is not a usable host of %s", ErrInvalidSubnet, s.Server, s.Prefix)
		}
	}
	if s.IPv6.IsValid() {
		if !s.IPv6.Addr().Is6() || s.IPv6.Addr().Is4In6() {
			return fmt.Errorf("%w: %s is not an IPv6 network", ErrInvalidSubnet, s.IPv6)
		}
		if s.IPv6.Bits() > maxIPv6Bits {
			return fmt.Errorf("%w: IPv6 prefix /%d is too long", ErrInvalidSubnet, s.IPv6.Bits())
		}
	}
	return nil
}

// Contains reports whether a is a usable host address of the IPv4 network.
func (s Subnet) Contains(a netip.Addr) bool {
	a = a.Unmap()
	if !a.Is4() || !s.Prefix.Contains(a) {
		return false
	}
	first, last := s.hostRange()
	n := toUint32(a)
	return n >= first && n <= last
}

// Usable returns the number of usable host addresses, excluding the network
// and broadcast addresses. The server address is counted.
func (s Subnet) Usable() int {
	if s.Validate() != nil {
		return 0
	}
	first, last := s.hostRange()
	return int(last - first + 1)
}

// String returns the server address with the prefix length, the form used by
// the [Interface] Address line.
func (s Subnet) String() string {
	if !s.Server.IsValid() {
		return s.Prefix.String()
	}
	return netip.PrefixFrom(s.Server, s.Prefix.Bits()).String()
}

// hostRange returns the first and last usable host as integers.
func (s Subnet) hostRange() (first, last uint32) {
	base := toUint32(s.Prefix.Addr())
	size := uint32(1) << (32 - s.Prefix.Bits())
	return base + 1, base + size - 2
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(n uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return netip.AddrFrom4(b)
}
