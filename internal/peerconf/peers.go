package peerconf

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/licht8/wg-qr-generator/internal/ipalloc"
	"github.com/licht8/wg-qr-generator/internal/peerdb"
	"github.com/licht8/wg-qr-generator/internal/wgconf"
)

// SetPeerEnabled enables or disables the block owned by id and reloads the
// daemon. Repeating the call neither writes nor reloads, but still brings the
// peer's record in line with the file.
func (m *Manager) SetPeerEnabled(ctx context.Context, id wgconf.Identity, enabled bool) error {
	var owner wgconf.Identity
	_, err := m.update(ctx, func(doc *wgconf.Document) error {
		if err := wgconf.SetEnabled(doc, id, enabled); err != nil {
			return err
		}
		b, err := doc.FindPeerBlock(id)
		if err != nil {
			return err
		}
		owner = b.Identity
		return nil
	}, func() {
		status := peerdb.StatusActive
		if !enabled {
			status = peerdb.StatusBlocked
		}
		m.recordStatus(owner, status)
	})
	if err != nil {
		return err
	}

	m.logger.Info("peer state set", "peer", id.String(), "enabled", enabled)
	return nil
}

// InsertPeer appends an enabled block for id with address as its tunnel
// address. When the subnet has an IPv6 network the paired IPv6 host is added
// to AllowedIPs.
func (m *Manager) InsertPeer(ctx context.Context, id wgconf.Identity, address netip.Addr, presharedKey string) ([]netip.Prefix, error) {
	var allowed []netip.Prefix
	_, err := m.update(ctx, func(doc *wgconf.Document) error {
		var err error
		allowed, err = m.allowedIPs(doc, address)
		if err != nil {
			return err
		}
		return wgconf.InsertPeer(doc, wgconf.PeerSpec{Identity: id, PresharedKey: presharedKey, AllowedIPs: allowed})
	}, func() {
		m.recordNew(id, allowed)
	})
	if err != nil && !errors.Is(err, ErrReload) {
		return nil, err
	}

	m.logger.Info("peer inserted", "peer", id.String(), "address", address)
	return allowed, err
}

// AddPeer allocates the next free address and inserts a block for id in a
// single transaction.
func (m *Manager) AddPeer(ctx context.Context, id wgconf.Identity, presharedKey string) ([]netip.Prefix, error) {
	var allowed []netip.Prefix
	_, err := m.update(ctx, func(doc *wgconf.Document) error {
		subnet, err := m.subnet(doc)
		if err != nil {
			return err
		}
		addr, err := ipalloc.Allocate(subnet, doc.AllocatedAddresses())
		if err != nil {
			return err
		}
		allowed, err = hostPrefixes(subnet, addr)
		if err != nil {
			return err
		}
		return wgconf.InsertPeer(doc, wgconf.PeerSpec{Identity: id, PresharedKey: presharedKey, AllowedIPs: allowed})
	}, func() {
		m.recordNew(id, allowed)
	})
	if err != nil && !errors.Is(err, ErrReload) {
		return nil, err
	}

	m.logger.Info("peer added", "peer", id.String(), "allowed_ips", allowed)
	return allowed, err
}

// NextAddress reports the address AddPeer would allocate now, without
// changing the file.
func (m *Manager) NextAddress(ctx context.Context) (netip.Addr, error) {
	var addr netip.Addr
	err := m.Update(ctx, func(doc *wgconf.Document) error {
		subnet, err := m.subnet(doc)
		if err != nil {
			return err
		}
		addr, err = AllocateAddress(subnet, doc.AllocatedAddresses())
		return err
	})
	return addr, err
}

// PoolUsage describes the IPv4 allocation pool.
type PoolUsage struct {
	Subnet   ipalloc.Subnet
	Assigned []netip.Addr // peer addresses inside the pool, ascending
	Free     int
}

// Pool reports how much of the allocation pool is taken. Like ListPeers it
// reads a snapshot without the lock.
func (m *Manager) Pool(ctx context.Context) (PoolUsage, error) {
	doc, err := m.Snapshot(ctx)
	if err != nil {
		return PoolUsage{}, err
	}
	subnet, err := m.subnet(doc)
	if err != nil {
		return PoolUsage{}, err
	}

	u := PoolUsage{Subnet: subnet}
	for _, a := range doc.AllocatedAddresses().Sorted() {
		if subnet.Contains(a) && a != subnet.Server {
			u.Assigned = append(u.Assigned, a)
		}
	}
	u.Free = subnet.Usable() - len(u.Assigned)
	if subnet.Server.IsValid() {
		u.Free--
	}
	return u, nil
}

// PeerInfo summarises one block for listing.
type PeerInfo struct {
	Name       string
	PublicKey  string
	State      wgconf.State
	AllowedIPs []netip.Prefix
	Line       int // 1-based line of the block header
	EndLine    int // 1-based last line of the block
}

// ListPeers returns the peer blocks in file order. It reads a snapshot
// without taking the lock; the atomic replace guarantees a whole file.
func (m *Manager) ListPeers(ctx context.Context) ([]PeerInfo, error) {
	doc, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	blocks := doc.Blocks()
	out := make([]PeerInfo, 0, len(blocks))
	for _, b := range blocks {
		start, end := b.Range()
		out = append(out, PeerInfo{
			Name:       b.Identity.Name,
			PublicKey:  b.Identity.PublicKey,
			State:      b.State,
			AllowedIPs: b.AllowedIPs,
			Line:       start + 1,
			EndLine:    end,
		})
	}
	return out, nil
}

// Snapshot returns the current document without taking the lock.
func (m *Manager) Snapshot(ctx context.Context) (*wgconf.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, _, err := m.read()
	return doc, err
}

// allowedIPs validates an explicit address against the subnet (when one can
// be determined) and returns its host prefixes.
func (m *Manager) allowedIPs(doc *wgconf.Document, address netip.Addr) ([]netip.Prefix, error) {
	address = address.Unmap()
	if !address.IsValid() {
		return nil, fmt.Errorf("%w: invalid address", ErrAddressOutOfRange)
	}
	subnet, err := m.subnet(doc)
	if err != nil {
		if m.cfg.Subnet != "" || !errors.Is(err, ipalloc.ErrInvalidSubnet) {
			return nil, err
		}
		// No pool to check against; take the address as given.
		return []netip.Prefix{netip.PrefixFrom(address, address.BitLen())}, nil
	}
	if !subnet.Contains(address) {
		return nil, fmt.Errorf("%w: %s is not a usable host of %s", ErrAddressOutOfRange, address, subnet.Prefix)
	}
	if address == subnet.Server {
		return nil, fmt.Errorf("%w: %s is the server address", wgconf.ErrAddressInUse, address)
	}
	return hostPrefixes(subnet, address)
}

func hostPrefixes(subnet ipalloc.Subnet, v4 netip.Addr) ([]netip.Prefix, error) {
	out := []netip.Prefix{netip.PrefixFrom(v4, 32)}
	v6, ok, err := ipalloc.PairIPv6(subnet, v4)
	if err != nil {
		return nil, err
	}
	if ok {
		out = append(out, netip.PrefixFrom(v6, 128))
	}
	return out, nil
}

func (m *Manager) recordNew(id wgconf.Identity, allowed []netip.Prefix) {
	if m.records == nil {
		return
	}
	rec := peerdb.Record{
		Username:   id.Name,
		PublicKey:  id.PublicKey,
		AllowedIPs: joinPrefixes(allowed),
		Status:     peerdb.StatusActive,
	}
	if err := m.records.Put(rec); err != nil {
		m.logger.Warn("peer record update failed", "peer", id.Name, "error", err)
	}
}

func (m *Manager) recordStatus(id wgconf.Identity, status string) {
	if m.records == nil || id.Name == "" {
		return
	}
	if rec, ok, err := m.records.Get(id.Name); err == nil && ok && rec.Status == status {
		return
	}
	if err := m.records.SetStatus(id.Name, status); err != nil {
		m.logger.Warn("peer record update failed", "peer", id.Name, "error", err)
	}
}

func joinPrefixes(ps []netip.Prefix) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
