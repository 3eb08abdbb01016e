package wgconf

import (
	"net/netip"
	"testing"
)

const serverConf = `[Interface]
Address = 10.66.66.1/24,fd42:42:42::1/64
ListenPort = 51820
PrivateKey = c2VydmVyLXByaXZhdGUta2V5LXBsYWNlaG9sZGVyMDA=
PostUp = iptables -A FORWARD -i wg0 -j ACCEPT

### Client alice
[Peer]
PublicKey = YWxpY2UtcHVibGljLWtleS1wbGFjZWhvbGRlcjAwMDA=
PresharedKey = YWxpY2UtcHJlc2hhcmVkLWtleS1wbGFjZWhvbGRlcjA=
AllowedIPs = 10.66.66.2/32,fd42:42:42::2/128

### Client bob
[Peer]
PublicKey = Ym9iLXB1YmxpYy1rZXktcGxhY2Vob2xkZXIwMDAwMDA=
AllowedIPs = 10.66.66.3/32,fd42:42:42::3/128
`

const (
	aliceKey = "YWxpY2UtcHVibGljLWtleS1wbGFjZWhvbGRlcjAwMDA="
	bobKey   = "Ym9iLXB1YmxpYy1rZXktcGxhY2Vob2xkZXIwMDAwMDA="
)

var roundTripInputs = map[string]string{
	"empty":              "",
	"server":             serverConf,
	"no final newline":   "[Interface]\nAddress = 10.0.0.1/24",
	"crlf":               "[Interface]\r\nAddress = 10.0.0.1/24\r\n\r\n### Client a\r\n[Peer]\r\nPublicKey = k\r\n",
	"trailing spaces":    "### Client a   \n[Peer]  \nPublicKey = k \t\n\n\n",
	"only blank lines":   "\n\n\n",
	"garbage":            "\x00\xff not a config = = =\n[[[\n]]]",
	"lone carriage ret":  "a\rb\r\n",
	"unterminated block": "### Client a\n[Peer]\nPublicKey = k",
}

func TestParse_RoundTrip(t *testing.T) {
	for name, in := range roundTripInputs {
		t.Run(name, func(t *testing.T) {
			got := Parse(in).Serialize()
			if got != in {
				t.Errorf("Serialize(Parse(T)) = %q, want %q", got, in)
			}
		})
	}
}

func FuzzParseRoundTrip(f *testing.F) {
	for _, in := range roundTripInputs {
		f.Add(in)
	}
	f.Fuzz(func(t *testing.T, in string) {
		if got := Parse(in).Serialize(); got != in {
			t.Errorf("Serialize(Parse(T)) = %q, want %q", got, in)
		}
	})
}

func TestParse_FindsIdentityBlocks(t *testing.T) {
	d := Parse(serverConf)
	blocks := d.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("len(Blocks()) = %d, want 2", len(blocks))
	}

	alice := blocks[0]
	if alice.Identity.Name != "alice" || alice.Identity.PublicKey != aliceKey {
		t.Errorf("alice identity = %+v", alice.Identity)
	}
	if alice.Start != 6 || alice.BodyStart != 7 || alice.End != 11 {
		t.Errorf("alice range = [%d,%d,%d), want [6,7,11)", alice.Start, alice.BodyStart, alice.End)
	}
	if start, end := alice.Range(); start != alice.Start || end != alice.End {
		t.Errorf("alice Range() = [%d,%d), want [%d,%d)", start, end, alice.Start, alice.End)
	}
	if alice.State != StateEnabled {
		t.Errorf("alice state = %v, want enabled", alice.State)
	}
	if len(alice.AllowedIPs) != 2 || alice.AllowedIPs[0] != netip.MustParsePrefix("10.66.66.2/32") {
		t.Errorf("alice AllowedIPs = %v", alice.AllowedIPs)
	}

	bob := blocks[1]
	if bob.Identity.Name != "bob" || bob.Identity.PublicKey != bobKey {
		t.Errorf("bob identity = %+v", bob.Identity)
	}
	if bob.End != len(d.lines) {
		t.Errorf("bob End = %d, want %d (EOF)", bob.End, len(d.lines))
	}
}

func TestParse_BlockClosesAtNextHeaderWithoutBlankLine(t *testing.T) {
	d := Parse("### Client a\n[Peer]\nPublicKey = ka\n### Client b\n[Peer]\nPublicKey = kb\n")
	blocks := d.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("len(Blocks()) = %d, want 2", len(blocks))
	}
	if blocks[0].End != 3 || blocks[1].Start != 3 {
		t.Errorf("boundary = a.End %d, b.Start %d, want 3 and 3", blocks[0].End, blocks[1].Start)
	}
}

func TestParse_BarePeerSections(t *testing.T) {
	d := Parse("[Peer]\nPublicKey = k1\nAllowedIPs = 10.0.0.2/32\n[Peer]\nPublicKey = k2\n")
	blocks := d.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("len(Blocks()) = %d, want 2", len(blocks))
	}
	if blocks[0].Identity != (Identity{PublicKey: "k1"}) {
		t.Errorf("block 0 identity = %+v", blocks[0].Identity)
	}
	if blocks[0].Start != 0 || blocks[0].BodyStart != 1 || blocks[0].End != 3 {
		t.Errorf("block 0 range = [%d,%d,%d), want [0,1,3)", blocks[0].Start, blocks[0].BodyStart, blocks[0].End)
	}
	if blocks[1].Identity.PublicKey != "k2" {
		t.Errorf("block 1 key = %q, want k2", blocks[1].Identity.PublicKey)
	}
}

func TestParse_SecondPeerSectionAfterIdentityOpensNewBlock(t *testing.T) {
	d := Parse("### Client a\n[Peer]\nPublicKey = ka\n[Peer]\nPublicKey = kb\n")
	blocks := d.Blocks()
	if len(blocks) != 2 {
		t.Fatalf("len(Blocks()) = %d, want 2", len(blocks))
	}
	if blocks[0].Identity.Name != "a" || blocks[1].Identity.Name != "" {
		t.Errorf("names = %q, %q; want a and empty", blocks[0].Identity.Name, blocks[1].Identity.Name)
	}
}

func TestParse_InterfaceClosesBlock(t *testing.T) {
	d := Parse("### Client a\n[Peer]\nPublicKey = ka\n[Interface]\nAddress = 10.0.0.1/24\n")
	blocks := d.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("len(Blocks()) = %d, want 1", len(blocks))
	}
	if blocks[0].End != 3 {
		t.Errorf("End = %d, want 3", blocks[0].End)
	}
}

func TestParse_WhitespaceOnlyLineIsBlank(t *testing.T) {
	d := Parse("### Client a\n[Peer]\n \t \nPublicKey = ka\n")
	blocks := d.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("len(Blocks()) = %d, want 1", len(blocks))
	}
	if blocks[0].End != 2 {
		t.Errorf("End = %d, want 2", blocks[0].End)
	}
	if blocks[0].Identity.PublicKey != "" {
		t.Errorf("PublicKey = %q, want empty (key line is past the blank line)", blocks[0].Identity.PublicKey)
	}
}

func TestParse_NoBlocksInPartialOrForeignText(t *testing.T) {
	for _, in := range []string{
		"",
		"[Interface]\nAddress = 10.0.0.1/24\n",
		"# some comment\nrandom text\n",
		"### Client \n",
		"### Clientele foo\n",
		"# [Peer]\n# PublicKey = x\n",
	} {
		if n := len(Parse(in).Blocks()); n != 0 {
			t.Errorf("Parse(%q) found %d blocks, want 0", in, n)
		}
	}
}

func TestParse_DisabledBlockKeepsIdentity(t *testing.T) {
	d := Parse("### Client a\n# [Peer]\n# PublicKey = ka\n# AllowedIPs = 10.0.0.2/32\n")
	blocks := d.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("len(Blocks()) = %d, want 1", len(blocks))
	}
	b := blocks[0]
	if b.State != StateDisabled {
		t.Errorf("State = %v, want disabled", b.State)
	}
	if b.Identity != (Identity{Name: "a", PublicKey: "ka"}) {
		t.Errorf("Identity = %+v", b.Identity)
	}
	if len(b.AllowedIPs) != 1 {
		t.Errorf("AllowedIPs = %v, want one prefix", b.AllowedIPs)
	}
}

func TestParse_MixedState(t *testing.T) {
	d := Parse("### Client a\n[Peer]\n# PublicKey = ka\nAllowedIPs = 10.0.0.2/32\n")
	if got := d.Blocks()[0].State; got != StateMixed {
		t.Errorf("State = %v, want mixed", got)
	}
}

func TestParse_CustomOptions(t *testing.T) {
	d := ParseWithOptions("## peer: a\n[Peer]\n;; PublicKey = ka\n", Options{Marker: ";; ", IdentityPrefix: "## peer: "})
	blocks := d.Blocks()
	if len(blocks) != 1 {
		t.Fatalf("len(Blocks()) = %d, want 1", len(blocks))
	}
	if blocks[0].Identity != (Identity{Name: "a", PublicKey: "ka"}) {
		t.Errorf("Identity = %+v", blocks[0].Identity)
	}
	if blocks[0].State != StateMixed {
		t.Errorf("State = %v, want mixed", blocks[0].State)
	}
}

func TestOptions_Validate(t *testing.T) {
	cases := []struct {
		opts    Options
		wantErr bool
	}{
		{Options{Marker: "# ", IdentityPrefix: "### Client "}, false},
		{Options{Marker: " ", IdentityPrefix: "### Client "}, true},
		{Options{Marker: "#\n", IdentityPrefix: "### Client "}, true},
		{Options{Marker: "# ", IdentityPrefix: "  "}, true},
		{Options{Marker: "#", IdentityPrefix: "# "}, true},
	}
	for _, tc := range cases {
		err := tc.opts.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tc.opts, err, tc.wantErr)
		}
	}
}

func TestIdentity_String(t *testing.T) {
	if got := (Identity{Name: "a"}).String(); got != "a" {
		t.Errorf("String() = %q", got)
	}
	if got := (Identity{PublicKey: "k"}).String(); got != "k" {
		t.Errorf("String() = %q", got)
	}
	if got := (Identity{Name: "a", PublicKey: "k"}).String(); got != "a (k)" {
		t.Errorf("String() = %q", got)
	}
}
