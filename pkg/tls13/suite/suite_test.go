package suite

import (
	"bytes"
	"testing"

	"github.com/yourusername/tls13/pkg/tls13/handshake"
)

func TestByIDKeyAndIVLengths(t *testing.T) {
	cases := []struct {
		id     handshake.CipherSuite
		keyLen int
		ivLen  int
	}{
		{handshake.TLS_AES_128_GCM_SHA256, 16, 12},
		{handshake.TLS_AES_256_GCM_SHA384, 32, 12},
		{handshake.TLS_CHACHA20_POLY1305_SHA256, 32, 12},
	}
	for _, c := range cases {
		s, err := ByID(c.id)
		if err != nil {
			t.Fatalf("ByID(%v): %v", c.id, err)
		}
		if s.KeyLen != c.keyLen || s.IVLen != c.ivLen {
			t.Fatalf("%v: KeyLen/IVLen = %d/%d, want %d/%d", c.id, s.KeyLen, s.IVLen, c.keyLen, c.ivLen)
		}
		aead, err := s.AEAD(make([]byte, c.keyLen))
		if err != nil {
			t.Fatalf("%v: AEAD: %v", c.id, err)
		}
		if aead.NonceSize() != c.ivLen {
			t.Fatalf("%v: NonceSize = %d, want %d", c.id, aead.NonceSize(), c.ivLen)
		}
	}
}

func TestByIDRejectsUnknownSuite(t *testing.T) {
	if _, err := ByID(0xFFFF); err == nil {
		t.Fatal("expected error for unknown cipher suite")
	}
}

func TestAEADRejectsWrongKeyLength(t *testing.T) {
	s, err := ByID(handshake.TLS_AES_128_GCM_SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AEAD(make([]byte, 8)); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestExpandLabelIsDeterministicAndLabelSensitive(t *testing.T) {
	s, err := ByID(handshake.TLS_AES_128_GCM_SHA256)
	if err != nil {
		t.Fatal(err)
	}
	secret := bytes.Repeat([]byte{0x01}, s.HashSize())

	a := s.ExpandLabel(secret, "key", nil, 16)
	b := s.ExpandLabel(secret, "key", nil, 16)
	if !bytes.Equal(a, b) {
		t.Fatal("ExpandLabel should be deterministic for identical inputs")
	}

	c := s.ExpandLabel(secret, "iv", nil, 16)
	if bytes.Equal(a, c) {
		t.Fatal("different labels must not produce identical output")
	}
}

func TestX25519KeyExchangeSharedSecretAgrees(t *testing.T) {
	client, err := GenerateKeyExchange(GroupX25519)
	if err != nil {
		t.Fatalf("client GenerateKeyExchange: %v", err)
	}
	server, err := GenerateKeyExchange(GroupX25519)
	if err != nil {
		t.Fatalf("server GenerateKeyExchange: %v", err)
	}

	clientSecret, err := client.SharedSecret(server.Public())
	if err != nil {
		t.Fatalf("client SharedSecret: %v", err)
	}
	serverSecret, err := server.SharedSecret(client.Public())
	if err != nil {
		t.Fatalf("server SharedSecret: %v", err)
	}
	if !bytes.Equal(clientSecret, serverSecret) {
		t.Fatal("ECDHE shared secrets do not agree")
	}
}

func TestP256KeyExchangeSharedSecretAgrees(t *testing.T) {
	client, err := GenerateKeyExchange(GroupSecp256r1)
	if err != nil {
		t.Fatalf("client GenerateKeyExchange: %v", err)
	}
	server, err := GenerateKeyExchange(GroupSecp256r1)
	if err != nil {
		t.Fatalf("server GenerateKeyExchange: %v", err)
	}

	clientSecret, err := client.SharedSecret(server.Public())
	if err != nil {
		t.Fatalf("client SharedSecret: %v", err)
	}
	serverSecret, err := server.SharedSecret(client.Public())
	if err != nil {
		t.Fatalf("server SharedSecret: %v", err)
	}
	if !bytes.Equal(clientSecret, serverSecret) {
		t.Fatal("ECDHE shared secrets do not agree")
	}
}

func TestGenerateKeyExchangeRejectsUnsupportedGroup(t *testing.T) {
	if _, err := GenerateKeyExchange(0x9999); err == nil {
		t.Fatal("expected error for unsupported group")
	}
}
