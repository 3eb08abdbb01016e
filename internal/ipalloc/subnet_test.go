package ipalloc

import (
	"errors"
	"net/netip"
	"testing"
)

func TestParseSubnet_InterfaceForm(t *testing.T) {
	s, err := ParseSubnet("10.96.96.1/24")
	if err != nil {
		t.Fatalf("ParseSubnet() error = %v", err)
	}
	if s.Prefix != netip.MustParsePrefix("10.96.96.0/24") {
		t.Errorf("Prefix = %s, want 10.96.96.0/24", s.Prefix)
	}
	if s.Server != netip.MustParseAddr("10.96.96.1") {
		t.Errorf("Server = %s, want 10.96.96.1", s.Server)
	}
	if s.String() != "10.96.96.1/24" {
		t.Errorf("String() = %q, want %q", s.String(), "10.96.96.1/24")
	}
}

func TestParseSubnet_NetworkFormReservesFirstHost(t *testing.T) {
	s, err := ParseSubnet("10.0.0.0/24")
	if err != nil {
		t.Fatalf("ParseSubnet() error = %v", err)
	}
	if s.Server != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("Server = %s, want 10.0.0.1", s.Server)
	}
}

func TestParseSubnet_RejectsUnusablePrefixes(t *testing.T) {
	for _, cidr := range []string{"10.0.0.0/31", "10.0.0.1/32", "0.0.0.0/0", "fd00::/64", "nonsense", ""} {
		_, err := ParseSubnet(cidr)
		if !errors.Is(err, ErrInvalidSubnet) {
			t.Errorf("ParseSubnet(%q) error = %v, want ErrInvalidSubnet", cidr, err)
		}
	}
}

func TestParseSubnet_RejectsBroadcastAsServer(t *testing.T) {
	_, err := ParseSubnet("10.0.0.255/24")
	if !errors.Is(err, ErrInvalidSubnet) {
		t.Fatalf("ParseSubnet(broadcast) error = %v, want ErrInvalidSubnet", err)
	}
}

func TestSubnet_Usable(t *testing.T) {
	cases := map[string]int{
		"10.0.0.0/24": 254,
		"10.0.0.0/30": 2,
		"10.0.0.0/29": 6,
		"10.0.0.0/16": 65534,
	}
	for cidr, want := range cases {
		s, err := ParseSubnet(cidr)
		if err != nil {
			t.Fatalf("ParseSubnet(%q) error = %v", cidr, err)
		}
		if got := s.Usable(); got != want {
			t.Errorf("Usable(%s) = %d, want %d", cidr, got, want)
		}
	}
	if got := (Subnet{}).Usable(); got != 0 {
		t.Errorf("Usable(zero) = %d, want 0", got)
	}
}

func TestSubnet_Contains(t *testing.T) {
	s, err := ParseSubnet("10.0.0.0/24")
	if err != nil {
		t.Fatalf("ParseSubnet() error = %v", err)
	}
	cases := map[string]bool{
		"10.0.0.0":   false,
		"10.0.0.1":   true,
		"10.0.0.254": true,
		"10.0.0.255": false,
		"10.0.1.1":   false,
		"fd00::1":    false,
	}
	for a, want := range cases {
		if got := s.Contains(netip.MustParseAddr(a)); got != want {
			t.Errorf("Contains(%s) = %v, want %v", a, got, want)
		}
	}
}

func TestSubnet_WithIPv6Validation(t *testing.T) {
	s, err := ParseSubnet("10.0.0.1/24")
	if err != nil {
		t.Fatalf("ParseSubnet() error = %v", err)
	}

	if _, err := s.WithIPv6("10.1.0.0/16"); !errors.Is(err, ErrInvalidSubnet) {
		t.Errorf("WithIPv6(ipv4) error = %v, want ErrInvalidSubnet", err)
	}
	if _, err := s.WithIPv6("fd00::/127"); !errors.Is(err, ErrInvalidSubnet) {
		t.Errorf("WithIPv6(/127) error = %v, want ErrInvalidSubnet", err)
	}

	cleared, err := s.WithIPv6("")
	if err != nil {
		t.Fatalf("WithIPv6(\"\") error = %v", err)
	}
	if cleared.IPv6.IsValid() {
		t.Error("WithIPv6(\"\") left an IPv6 network set")
	}
}
