package wgconf

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/valyala/fasttemplate"
)

// SetEnabled rewrites the body of id's block so every line is active
// (enabled) or carries the marker (disabled). Lines already in the target
// state are left untouched, so applying the same call twice is a no-op, and a
// block left half-toggled by a manual edit is normalised. Header lines and
// lines outside the block are never modified.
func SetEnabled(d *Document, id Identity, enabled bool) error {
	b, err := d.FindPeerBlock(id)
	if err != nil {
		return err
	}

	marker := d.opts.Marker
	for i := b.BodyStart; i < b.End; i++ {
		raw := d.lines[i]
		marked := strings.HasPrefix(raw, marker)
		switch {
		case enabled && marked:
			// A line disabled twice carries the marker twice.
			for strings.HasPrefix(raw, marker) {
				raw = raw[len(marker):]
			}
			d.lines[i] = raw
		case !enabled && !marked:
			d.lines[i] = marker + raw
		}
	}

	d.reindex()
	return nil
}

// PeerSpec describes a peer block to insert.
type PeerSpec struct {
	Identity     Identity
	PresharedKey string
	AllowedIPs   []netip.Prefix
}

const peerBlockTemplate = "{identity}{eol}" +
	"[Peer]{eol}" +
	"PublicKey = {public_key}{eol}" +
	"{preshared_key}" +
	"AllowedIPs = {allowed_ips}{eol}"

var peerBlock = fasttemplate.New(peerBlockTemplate, "{", "}")

// InsertPeer appends a new enabled block for spec at the end of the document,
// separated from preceding text by a blank line.
//
// Both the name and the public key must be new to the document, and none of
// the allowed addresses may already be assigned (active or disabled).
func InsertPeer(d *Document, spec PeerSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}

	id := spec.Identity
	for _, b := range d.blocks {
		if b.Identity.Name == id.Name {
			return fmt.Errorf("%w: name %q on line %d", ErrPeerExists, id.Name, b.Start+1)
		}
		if b.Identity.PublicKey == id.PublicKey {
			return fmt.Errorf("%w: public key %s on line %d", ErrPeerExists, id.PublicKey, b.Start+1)
		}
	}

	inUse := d.AllocatedAddresses()
	for _, p := range spec.AllowedIPs {
		if inUse.Contains(p.Addr()) {
			return fmt.Errorf("%w: %s", ErrAddressInUse, p.Addr())
		}
	}

	eol := d.eol()
	var sb strings.Builder
	if n := len(d.lines); n > 0 {
		last := d.lines[n-1]
		if !strings.HasSuffix(last, "\n") {
			// Terminate the existing final line; its bytes are otherwise unchanged.
			d.lines[n-1] = last + eol
			last = d.lines[n-1]
		}
		if strings.TrimSpace(last) != "" {
			sb.WriteString(eol)
		}
	}

	psk := ""
	if spec.PresharedKey != "" {
		psk = "PresharedKey = " + spec.PresharedKey + eol
	}
	sb.WriteString(peerBlock.ExecuteString(map[string]interface{}{
		"identity":      d.opts.IdentityPrefix + id.Name,
		"public_key":    id.PublicKey,
		"preshared_key": psk,
		"allowed_ips":   joinPrefixes(spec.AllowedIPs),
		"eol":           eol,
	}))

	d.lines = append(d.lines, splitLines(sb.String())...)
	d.reindex()
	return nil
}

func (s PeerSpec) validate() error {
	name := s.Identity.Name
	if name == "" {
		return fmt.Errorf("wgconf: insert peer: name is required")
	}
	if strings.ContainsAny(name, "\r\n") || name != strings.TrimSpace(name) {
		return fmt.Errorf("wgconf: insert peer: name %q must be a single trimmed line", name)
	}
	// Structural presence only; key material is not verified.
	key := s.Identity.PublicKey
	if key == "" || strings.ContainsAny(key, " \t\r\n") {
		return fmt.Errorf("wgconf: insert peer: public key must be a single non-empty token")
	}
	if strings.ContainsAny(s.PresharedKey, " \t\r\n") {
		return fmt.Errorf("wgconf: insert peer: preshared key must be a single token")
	}
	if len(s.AllowedIPs) == 0 {
		return fmt.Errorf("wgconf: insert peer: at least one allowed IP is required")
	}
	for _, p := range s.AllowedIPs {
		if !p.IsValid() {
			return fmt.Errorf("wgconf: insert peer: invalid allowed IP %v", p)
		}
	}
	return nil
}

func joinPrefixes(ps []netip.Prefix) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
