// Package suite provides the pluggable cryptographic primitives a
// cipher suite needs: AEAD, transcript hash, HKDF-Expand-Label, and key
// exchange. Everything above this package (keyschedule, record, conn)
// talks to these interfaces rather than to crypto/* directly, so a
// caller can swap in a hardware-backed or FIPS-validated provider
// without touching the handshake state machine.
package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/yourusername/tls13/pkg/tls13/handshake"
)

var (
	ErrUnsupportedSuite = errors.New("suite: unsupported cipher suite")
	ErrUnsupportedGroup = errors.New("suite: unsupported named group")
)

// Suite bundles every crypto primitive a cipher suite needs, keyed by
// the handshake.CipherSuite codepoint negotiated in ServerHello.
type Suite struct {
	ID     handshake.CipherSuite
	KeyLen int
	IVLen  int

	newHash func() hash.Hash
	newAEAD func(key []byte) (cipher.AEAD, error)
}

func (s *Suite) HashSize() int { return s.newHash().Size() }

// NewHash returns a fresh, unkeyed instance of the suite's transcript
// hash.
func (s *Suite) NewHash() hash.Hash { return s.newHash() }

// AEAD constructs an AEAD cipher instance bound to key, which must be
// exactly s.KeyLen bytes (spec.md §4.4 "record protection keys").
func (s *Suite) AEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != s.KeyLen {
		return nil, fmt.Errorf("suite: 0x%04x wants a %d-byte key, got %d", uint16(s.ID), s.KeyLen, len(key))
	}
	return s.newAEAD(key)
}

// ExpandLabel implements RFC 8446 §7.1's HKDF-Expand-Label construction
// over this suite's hash.
func (s *Suite) ExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	return hkdfExpandLabel(s.newHash, secret, label, context, length)
}

// Extract implements HKDF-Extract over this suite's hash.
func (s *Suite) Extract(salt, ikm []byte) []byte {
	return hkdf.Extract(s.newHash, ikm, salt)
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

var (
	aes128GCMSHA256       = &Suite{ID: handshake.TLS_AES_128_GCM_SHA256, KeyLen: 16, IVLen: 12, newHash: sha256.New, newAEAD: newAESGCM}
	aes256GCMSHA384       = &Suite{ID: handshake.TLS_AES_256_GCM_SHA384, KeyLen: 32, IVLen: 12, newHash: sha512.New384, newAEAD: newAESGCM}
	chacha20Poly1305SHA256 = &Suite{ID: handshake.TLS_CHACHA20_POLY1305_SHA256, KeyLen: 32, IVLen: 12, newHash: sha256.New, newAEAD: chacha20poly1305.New}
)

// ByID looks up the provider for a negotiated cipher suite codepoint.
func ByID(id handshake.CipherSuite) (*Suite, error) {
	switch id {
	case handshake.TLS_AES_128_GCM_SHA256:
		return aes128GCMSHA256, nil
	case handshake.TLS_AES_256_GCM_SHA384:
		return aes256GCMSHA384, nil
	case handshake.TLS_CHACHA20_POLY1305_SHA256:
		return chacha20Poly1305SHA256, nil
	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnsupportedSuite, uint16(id))
	}
}

// hkdfExpandLabel builds the HkdfLabel structure of RFC 8446 §7.1 —
//
//	uint16 length
//	opaque label<7..255> = "tls13 " + Label
//	opaque context<0..255> = Context
//
// and runs HKDF-Expand over it.
func hkdfExpandLabel(newHash func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label
	hkdfLabel := make([]byte, 2+1+len(fullLabel)+1+len(context))

	hkdfLabel[0] = byte(length >> 8)
	hkdfLabel[1] = byte(length)

	hkdfLabel[2] = byte(len(fullLabel))
	copy(hkdfLabel[3:], fullLabel)

	offset := 3 + len(fullLabel)
	hkdfLabel[offset] = byte(len(context))
	copy(hkdfLabel[offset+1:], context)

	out := make([]byte, length)
	r := hkdf.Expand(newHash, secret, hkdfLabel)
	if _, err := io.ReadFull(r, out); err != nil {
		// HKDF-Expand only fails when length exceeds 255*HashLen,
		// which callers in this package never request.
		panic(fmt.Sprintf("suite: hkdf expand: %v", err))
	}
	return out
}

// KeyExchange is one side of an (EC)DHE exchange for a single named
// group (spec.md §4.2 "key_share").
type KeyExchange interface {
	// Group is the NamedGroup codepoint this key exchange was
	// generated for.
	Group() uint16
	// Public returns this side's public key_exchange bytes.
	Public() []byte
	// SharedSecret computes the ECDHE shared secret with the peer's
	// public key_exchange bytes.
	SharedSecret(peerPublic []byte) ([]byte, error)
}

type x25519KeyExchange struct {
	private [32]byte
	public  [32]byte
}

func (x *x25519KeyExchange) Group() uint16 { return GroupX25519 }
func (x *x25519KeyExchange) Public() []byte { return x.public[:] }

func (x *x25519KeyExchange) SharedSecret(peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != 32 {
		return nil, fmt.Errorf("suite: x25519 peer public key must be 32 bytes, got %d", len(peerPublic))
	}
	shared, err := curve25519.X25519(x.private[:], peerPublic)
	if err != nil {
		return nil, fmt.Errorf("suite: x25519: %w", err)
	}
	return shared, nil
}

// GroupX25519 and GroupSecp256r1 mirror extension.GroupX25519/
// extension.GroupSecp256r1's codepoints as plain uint16 values, the
// type KeyExchange.Group and GenerateKeyExchange use.
const (
	GroupX25519    uint16 = 0x001D
	GroupSecp256r1 uint16 = 0x0017
)

// p256KeyExchange wraps crypto/ecdh's P-256 implementation, which
// performs the same constant-time scalar multiplication and low-order
// point rejection the curve25519 package does for X25519.
type p256KeyExchange struct {
	private *ecdh.PrivateKey
}

func (p *p256KeyExchange) Group() uint16  { return GroupSecp256r1 }
func (p *p256KeyExchange) Public() []byte { return p.private.PublicKey().Bytes() }

func (p *p256KeyExchange) SharedSecret(peerPublic []byte) ([]byte, error) {
	peer, err := ecdh.P256().NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("suite: secp256r1: invalid peer public key: %w", err)
	}
	shared, err := p.private.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("suite: secp256r1: %w", err)
	}
	return shared, nil
}

// GenerateKeyExchange produces an ephemeral key pair for the given
// named group.
func GenerateKeyExchange(group uint16) (KeyExchange, error) {
	switch group {
	case GroupX25519:
		var priv [32]byte
		if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
			return nil, fmt.Errorf("suite: generating x25519 private key: %w", err)
		}
		pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
		if err != nil {
			return nil, fmt.Errorf("suite: deriving x25519 public key: %w", err)
		}
		kx := &x25519KeyExchange{private: priv}
		copy(kx.public[:], pub)
		return kx, nil
	case GroupSecp256r1:
		priv, err := ecdh.P256().GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("suite: generating secp256r1 private key: %w", err)
		}
		return &p256KeyExchange{private: priv}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnsupportedGroup, group)
	}
}
