package wgconf

import (
	"fmt"
)

// FindPeerBlock returns the block owned by id.
//
// A name matches the identity comment of a block; a public key matches the
// block's PublicKey line, active or disabled. When id carries both and they
// point at different blocks (or the matched block disagrees with the other
// half of id) the lookup fails with ErrIdentityConflict rather than guessing.
func (d *Document) FindPeerBlock(id Identity) (Block, error) {
	if id.IsZero() {
		return Block{}, fmt.Errorf("%w: empty identity", ErrPeerNotFound)
	}

	byName, err := d.unique(id.Name, func(b Block) string { return b.Identity.Name }, "name")
	if err != nil {
		return Block{}, err
	}
	byKey, err := d.unique(id.PublicKey, func(b Block) string { return b.Identity.PublicKey }, "public key")
	if err != nil {
		return Block{}, err
	}

	switch {
	case byName >= 0 && byKey >= 0:
		if byName != byKey {
			return Block{}, fmt.Errorf("%w: name %q is on line %d but public key %s is on line %d",
				ErrIdentityConflict, id.Name, d.blocks[byName].Start+1, id.PublicKey, d.blocks[byKey].Start+1)
		}
		return d.blocks[byName], nil

	case byName >= 0:
		b := d.blocks[byName]
		if id.PublicKey != "" && b.Identity.PublicKey != "" {
			return Block{}, fmt.Errorf("%w: block %q on line %d has public key %s, not %s",
				ErrIdentityConflict, id.Name, b.Start+1, b.Identity.PublicKey, id.PublicKey)
		}
		return b, nil

	case byKey >= 0:
		b := d.blocks[byKey]
		if id.Name != "" && b.Identity.Name != "" {
			return Block{}, fmt.Errorf("%w: public key %s on line %d belongs to %q, not %q",
				ErrIdentityConflict, id.PublicKey, b.Start+1, b.Identity.Name, id.Name)
		}
		return b, nil
	}

	return Block{}, fmt.Errorf("%w: %s", ErrPeerNotFound, id)
}

// unique returns the index of the only block whose field equals want, -1 if
// none does or want is empty.
func (d *Document) unique(want string, field func(Block) string, what string) (int, error) {
	if want == "" {
		return -1, nil
	}
	found := -1
	for i, b := range d.blocks {
		if field(b) != want {
			continue
		}
		if found >= 0 {
			return -1, fmt.Errorf("%w: %s %q appears in blocks on lines %d and %d",
				ErrIdentityConflict, what, want, d.blocks[found].Start+1, b.Start+1)
		}
		found = i
	}
	return found, nil
}
