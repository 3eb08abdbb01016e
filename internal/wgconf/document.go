// Package wgconf models a wg-quick configuration file as an ordered sequence
// of raw lines with a derived index of peer blocks.
//
// A Document never reformats text it was not asked to change: Serialize on an
// unmodified Document returns the parsed input byte for byte.
package wgconf

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultMarker is the comment prefix that makes a line inert to the daemon.
	DefaultMarker = "# "

	// DefaultIdentityPrefix opens a peer block and carries the peer's name.
	DefaultIdentityPrefix = "### Client "
)

// Sentinel errors returned by block lookup and editing.
var (
	ErrPeerNotFound     = errors.New("wgconf: peer not found")
	ErrIdentityConflict = errors.New("wgconf: identity conflict")
	ErrPeerExists       = errors.New("wgconf: peer already exists")
	ErrAddressInUse     = errors.New("wgconf: address already in use")
)

// Options controls how headers and disabled lines are recognised.
type Options struct {
	// Marker is prepended to every body line of a disabled peer.
	// Default: "# "
	Marker string

	// IdentityPrefix is the comment prefix of an identity header line.
	// Default: "### Client "
	IdentityPrefix string
}

// ApplyDefaults sets default values for zero-valued fields.
func (o *Options) ApplyDefaults() {
	if o.Marker == "" {
		o.Marker = DefaultMarker
	}
	if o.IdentityPrefix == "" {
		o.IdentityPrefix = DefaultIdentityPrefix
	}
}

// Validate checks that the options can round-trip an enable/disable toggle.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.Marker) == "" {
		return errors.New("wgconf: options: Marker must contain a non-space character")
	}
	if strings.ContainsAny(o.Marker, "\r\n") {
		return errors.New("wgconf: options: Marker must not contain line breaks")
	}
	if strings.TrimSpace(o.IdentityPrefix) == "" {
		return errors.New("wgconf: options: IdentityPrefix must not be empty")
	}
	if strings.TrimSpace(o.IdentityPrefix) == strings.TrimSpace(o.Marker) {
		return errors.New("wgconf: options: IdentityPrefix must differ from Marker")
	}
	return nil
}

// Identity names a peer. Either field may be empty for lookups; when both are
// set they must denote the same block.
type Identity struct {
	Name      string
	PublicKey string
}

// IsZero reports whether neither name nor key is set.
func (id Identity) IsZero() bool {
	return id.Name == "" && id.PublicKey == ""
}

func (id Identity) String() string {
	switch {
	case id.Name != "" && id.PublicKey != "":
		return fmt.Sprintf("%s (%s)", id.Name, id.PublicKey)
	case id.Name != "":
		return id.Name
	default:
		return id.PublicKey
	}
}

// Document is an in-memory view of a configuration file. The zero value is
// not usable; construct one with Parse or ParseWithOptions.
type Document struct {
	opts   Options
	lines  []string // raw lines, each with its own terminator
	blocks []Block
}

// Parse builds a Document with default Options. It never fails: text without
// recognisable peer blocks yields a Document with no blocks.
func Parse(text string) *Document {
	return ParseWithOptions(text, Options{})
}

// ParseWithOptions builds a Document using opts for header and marker recognition.
func ParseWithOptions(text string, opts Options) *Document {
	opts.ApplyDefaults()
	d := &Document{opts: opts, lines: splitLines(text)}
	d.reindex()
	return d
}

// Serialize returns the document text.
func (d *Document) Serialize() string {
	var sb strings.Builder
	n := 0
	for _, l := range d.lines {
		n += len(l)
	}
	sb.Grow(n)
	for _, l := range d.lines {
		sb.WriteString(l)
	}
	return sb.String()
}

// Blocks returns the peer blocks in file order.
func (d *Document) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

func (d *Document) reindex() {
	d.blocks = scanBlocks(d.lines, d.opts)
}

// eol returns the line terminator used by the document, "\n" unless the
// file already uses CRLF.
func (d *Document) eol() string {
	for _, l := range d.lines {
		if strings.HasSuffix(l, "\r\n") {
			return "\r\n"
		}
	}
	return "\n"
}

// splitLines splits text after every "\n", keeping terminators. A final line
// without a terminator is kept as is, so concatenation restores text exactly.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func trimEOL(raw string) string {
	return strings.TrimRight(raw, "\r\n")
}
