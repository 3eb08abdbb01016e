package ipalloc

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"slices"
)

// AddressSet is a set of host addresses already assigned to peers.
// The zero value (nil) is an empty read-only set.
type AddressSet map[netip.Addr]struct{}

// NewAddressSet returns a set holding addrs.
func NewAddressSet(addrs ...netip.Addr) AddressSet {
	s := make(AddressSet, len(addrs))
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add inserts a. IPv4-mapped IPv6 addresses are stored in their IPv4 form.
func (s AddressSet) Add(a netip.Addr) {
	if !a.IsValid() {
		return
	}
	s[a.Unmap()] = struct{}{}
}

// Contains reports whether a is in the set.
func (s AddressSet) Contains(a netip.Addr) bool {
	_, ok := s[a.Unmap()]
	return ok
}

// Len returns the number of addresses in the set.
func (s AddressSet) Len() int { return len(s) }

// Sorted returns the addresses in ascending order.
func (s AddressSet) Sorted() []netip.Addr {
	out := make([]netip.Addr, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b netip.Addr) int { return a.Compare(b) })
	return out
}

// Allocate returns the lowest usable host address of subnet that is neither
// the server address nor in inUse. It has no side effects: identical inputs
// always yield the identical address.
func Allocate(subnet Subnet, inUse AddressSet) (netip.Addr, error) {
	if err := subnet.Validate(); err != nil {
		return netip.Addr{}, err
	}
	first, last := subnet.hostRange()
	for n := first; n <= last; n++ {
		a := fromUint32(n)
		if a == subnet.Server || inUse.Contains(a) {
			continue
		}
		return a, nil
	}
	return netip.Addr{}, fmt.Errorf("%w: no free host address in %s (%d in use)",
		ErrAddressSpaceExhausted, subnet.Prefix, inUse.Len())
}

// PairIPv6 returns the IPv6 address at the same host offset as v4 inside the
// subnet's IPv6 network. ok is false when the subnet has no IPv6 network.
func PairIPv6(subnet Subnet, v4 netip.Addr) (addr netip.Addr, ok bool, err error) {
	if !subnet.IPv6.IsValid() {
		return netip.Addr{}, false, nil
	}
	if !subnet.Contains(v4) {
		return netip.Addr{}, false, fmt.Errorf("%w: %s is outside %s", ErrInvalidSubnet, v4, subnet.Prefix)
	}
	offset := uint64(toUint32(v4.Unmap()) - toUint32(subnet.Prefix.Addr()))

	b := subnet.IPv6.Addr().As16()
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	sum := lo + offset
	if sum < lo {
		hi++
	}
	binary.BigEndian.PutUint64(b[:8], hi)
	binary.BigEndian.PutUint64(b[8:], sum)

	addr = netip.AddrFrom16(b)
	if !subnet.IPv6.Contains(addr) {
		return netip.Addr{}, false, fmt.Errorf("%w: offset %d in %s", errIPv6OffsetOutOfNetwork, offset, subnet.IPv6)
	}
	return addr, true, nil
}
