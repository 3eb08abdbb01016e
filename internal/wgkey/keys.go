// Package wgkey generates and decodes WireGuard key material.
package wgkey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the length of WireGuard keys in bytes.
const KeySize = 32

// Keypair holds a Curve25519 keypair for WireGuard.
type Keypair struct {
	PrivateKey []byte // 32 bytes, never logged
	PublicKey  []byte // 32 bytes
}

// GenerateKeypair generates a new Curve25519 keypair for a WireGuard peer.
func GenerateKeypair() (*Keypair, error) {
	privateKey := make([]byte, KeySize)
	if _, err := rand.Read(privateKey); err != nil {
		return nil, fmt.Errorf("wgkey: generate keypair: %w", err)
	}
	clamp(privateKey)

	publicKey, err := curve25519.X25519(privateKey, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("wgkey: derive public key: %w", err)
	}

	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  publicKey,
	}, nil
}

// clamp applies the Curve25519 private key clamping.
func clamp(k []byte) {
	k[0] &^= 0x07 // clear bits 0, 1, 2
	k[31] &^= 0x80 // clear bit 7
	k[31] |= 0x40  // set bit 6
}

// EncodePublicKey returns the standard base64 encoding of the public key.
func (k *Keypair) EncodePublicKey() string {
	return base64.StdEncoding.EncodeToString(k.PublicKey)
}

// EncodePrivateKey returns the standard base64 encoding of the private key.
func (k *Keypair) EncodePrivateKey() string {
	return base64.StdEncoding.EncodeToString(k.PrivateKey)
}

// GeneratePresharedKey returns a random base64-encoded 32-byte preshared key.
func GeneratePresharedKey() (string, error) {
	psk := make([]byte, KeySize)
	if _, err := rand.Read(psk); err != nil {
		return "", fmt.Errorf("wgkey: generate preshared key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(psk), nil
}

// Decode parses a base64 key and checks its length.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("wgkey: decode: %w", err)
	}
	if len(b) != KeySize {
		return nil, fmt.Errorf("wgkey: decode: key is %d bytes, want %d", len(b), KeySize)
	}
	return b, nil
}

// PublicFromPrivate derives the base64 public key for a base64 private key.
func PublicFromPrivate(private string) (string, error) {
	priv, err := Decode(private)
	if err != nil {
		return "", err
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("wgkey: derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}
