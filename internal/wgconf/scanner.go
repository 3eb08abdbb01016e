package wgconf

import (
	"net/netip"
	"strings"
)

// State is the enabled/disabled state of a peer block's body.
type State int

const (
	// StateEnabled means no body line carries the marker.
	StateEnabled State = iota
	// StateDisabled means every body line carries the marker.
	StateDisabled
	// StateMixed means some body lines carry the marker and some do not.
	StateMixed
)

func (s State) String() string {
	switch s {
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Block is the contiguous run of lines owned by one peer.
//
// Lines [Start, BodyStart) are header lines and are never rewritten by the
// editor. Lines [BodyStart, End) are body lines.
type Block struct {
	Identity   Identity
	Start      int
	BodyStart  int
	End        int
	State      State
	AllowedIPs []netip.Prefix
}

// Range returns the half-open line range [start, end) covered by the block.
func (b Block) Range() (start, end int) { return b.Start, b.End }

// lineKind classifies a raw line for the block scanner.
type lineKind int

const (
	kindOther lineKind = iota
	kindBlank
	kindIdentity
	kindPeerSection
	kindMarkedPeerSection
	kindOtherSection
)

// scanState is the state of the block scanner.
type scanState int

const (
	stateOutside scanState = iota
	stateInBlock
)

// scanner walks lines once and emits blocks. A block opens on an identity
// comment or an active [Peer] line and closes on the first blank line, the
// next header, an [Interface] line, or EOF.
type scanner struct {
	opts   Options
	state  scanState
	cur    Block
	byName bool // current block was opened by an identity comment
	peered bool // current block has seen its [Peer] line
	blocks []Block
}

func scanBlocks(lines []string, opts Options) []Block {
	s := &scanner{opts: opts}
	for i, raw := range lines {
		s.step(i, raw)
	}
	s.close(len(lines), lines)
	return s.blocks
}

func (s *scanner) step(i int, raw string) {
	kind, name := s.classify(raw)

	if s.state == stateOutside {
		switch kind {
		case kindIdentity:
			s.open(i, name, false)
		case kindPeerSection:
			s.open(i, "", true)
		}
		return
	}

	switch kind {
	case kindBlank, kindOtherSection:
		s.closeAt(i)
	case kindIdentity:
		s.closeAt(i)
		s.open(i, name, false)
	case kindPeerSection:
		if s.byName && !s.peered {
			s.peered = true
			s.body(raw)
			return
		}
		s.closeAt(i)
		s.open(i, "", true)
	case kindMarkedPeerSection:
		s.peered = true
		s.body(raw)
	default:
		s.body(raw)
	}
}

func (s *scanner) open(i int, name string, bare bool) {
	s.state = stateInBlock
	s.byName = !bare
	s.peered = bare
	s.cur = Block{
		Identity:  Identity{Name: name},
		Start:     i,
		BodyStart: i + 1,
	}
}

func (s *scanner) body(raw string) {
	key, value, ok := keyValue(raw, s.opts.Marker)
	if !ok {
		return
	}
	switch {
	case strings.EqualFold(key, "PublicKey"):
		if s.cur.Identity.PublicKey == "" {
			s.cur.Identity.PublicKey = value
		}
	case strings.EqualFold(key, "AllowedIPs"):
		s.cur.AllowedIPs = append(s.cur.AllowedIPs, parsePrefixes(value)...)
	}
}

// closeAt ends the current block before line i.
func (s *scanner) closeAt(i int) {
	s.cur.End = i
	s.blocks = append(s.blocks, s.cur)
	s.state = stateOutside
	s.cur = Block{}
}

func (s *scanner) close(n int, lines []string) {
	if s.state == stateInBlock {
		s.closeAt(n)
	}
	for i := range s.blocks {
		s.blocks[i].State = bodyState(lines[s.blocks[i].BodyStart:s.blocks[i].End], s.opts.Marker)
	}
}

func (s *scanner) classify(raw string) (lineKind, string) {
	content := strings.TrimSpace(trimEOL(raw))
	if content == "" {
		return kindBlank, ""
	}

	prefix := strings.TrimSpace(s.opts.IdentityPrefix)
	if strings.HasPrefix(content, prefix) {
		rest := content[len(prefix):]
		// "### Clientele" is not an identity header for "### Client ".
		if strings.HasSuffix(s.opts.IdentityPrefix, " ") && rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			return kindOther, ""
		}
		if name := strings.TrimSpace(rest); name != "" {
			return kindIdentity, name
		}
		return kindOther, ""
	}

	if isSection(content, "Peer") {
		return kindPeerSection, ""
	}
	if isSection(content, "Interface") {
		return kindOtherSection, ""
	}
	if stripped, ok := stripMarkerLenient(content); ok && isSection(stripped, "Peer") {
		return kindMarkedPeerSection, ""
	}
	return kindOther, ""
}

func isSection(content, name string) bool {
	return len(content) >= 2 && content[0] == '[' && content[len(content)-1] == ']' &&
		strings.EqualFold(strings.TrimSpace(content[1:len(content)-1]), name)
}

// bodyState derives the block state from its body lines.
func bodyState(body []string, marker string) State {
	marked, active := 0, 0
	for _, raw := range body {
		if strings.HasPrefix(raw, marker) {
			marked++
		} else {
			active++
		}
	}
	switch {
	case marked > 0 && active > 0:
		return StateMixed
	case marked > 0:
		return StateDisabled
	default:
		return StateEnabled
	}
}

// stripMarkerLenient removes any leading run of '#' characters and spaces.
// It is used only for reading values out of disabled lines; edits always use
// the exact marker.
func stripMarkerLenient(content string) (string, bool) {
	if !strings.HasPrefix(content, "#") {
		return content, false
	}
	return strings.TrimSpace(strings.TrimLeft(content, "#")), true
}

// keyValue parses a "key = value" assignment, active or marked.
func keyValue(raw, marker string) (key, value string, ok bool) {
	content := trimEOL(raw)
	if strings.HasPrefix(content, marker) {
		content = content[len(marker):]
	}
	content = strings.TrimSpace(content)
	content, _ = stripMarkerLenient(content)
	k, v, found := strings.Cut(content, "=")
	if !found {
		return "", "", false
	}
	k = strings.TrimSpace(k)
	if k == "" || strings.ContainsAny(k, " \t") {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}

// activeKeyValue parses a "key = value" assignment only if the line is live
// for the daemon (not commented out).
func activeKeyValue(raw string) (key, value string, ok bool) {
	content := strings.TrimSpace(trimEOL(raw))
	if strings.HasPrefix(content, "#") {
		return "", "", false
	}
	k, v, found := strings.Cut(content, "=")
	if !found {
		return "", "", false
	}
	k = strings.TrimSpace(k)
	if k == "" {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}

// parsePrefixes parses a comma-separated CIDR list, skipping malformed entries.
// Bare addresses are read as single-host prefixes.
func parsePrefixes(value string) []netip.Prefix {
	var out []netip.Prefix
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if p, err := netip.ParsePrefix(field); err == nil {
			out = append(out, p)
			continue
		}
		if a, err := netip.ParseAddr(field); err == nil {
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return out
}
