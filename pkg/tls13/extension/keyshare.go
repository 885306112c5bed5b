package extension

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// NamedGroup is the RFC 8446 §4.2.7 / RFC 7919 group codepoint space.
type NamedGroup uint16

const (
	GroupX25519   NamedGroup = 0x001D
	GroupSecp256r1 NamedGroup = 0x0017
	GroupSecp384r1 NamedGroup = 0x0018
	GroupSecp521r1 NamedGroup = 0x0019
	GroupX448      NamedGroup = 0x001E
	GroupFFDHE2048 NamedGroup = 0x0100
	GroupFFDHE3072 NamedGroup = 0x0101
	GroupFFDHE4096 NamedGroup = 0x0102
	GroupFFDHE6144 NamedGroup = 0x0103
	GroupFFDHE8192 NamedGroup = 0x0104
)

// Supported reports whether this implementation can perform a key
// exchange in group g. secp384r1/secp521r1/x448/ffdhe* are acknowledged
// (accepted in supported_groups, never selected) per spec.md §3.
func (g NamedGroup) Supported() bool {
	return g == GroupX25519 || g == GroupSecp256r1
}

// KeyShareEntry is one (group, key_exchange) pair.
type KeyShareEntry struct {
	Group      NamedGroup
	KeyExchange []byte
}

func (e KeyShareEntry) length() int {
	return 2 + 2 + len(e.KeyExchange)
}

func (e KeyShareEntry) appendTo(buf []byte) ([]byte, error) {
	buf = wire.PutUint16(buf, uint16(e.Group))
	return wire.PutVector16(buf, e.KeyExchange)
}

func decodeKeyShareEntry(r *wire.Reader) (KeyShareEntry, error) {
	group, err := r.Uint16()
	if err != nil {
		return KeyShareEntry{}, err
	}
	ke, err := r.Vector16()
	if err != nil {
		return KeyShareEntry{}, err
	}
	return KeyShareEntry{Group: NamedGroup(group), KeyExchange: ke}, nil
}

// KeyShare is polymorphic over handshake context per spec.md §4.2: a
// list in ClientHello, a single entry in ServerHello, and just a
// selected group in HelloRetryRequest.
type KeyShare struct {
	Ctx Context

	// ClientHello
	Entries []KeyShareEntry

	// ServerHello
	Selected KeyShareEntry

	// HelloRetryRequest
	SelectedGroup NamedGroup
}

func (k *KeyShare) Type() Type { return TypeKeyShare }

func (k *KeyShare) Length() int {
	switch k.Ctx {
	case ContextClientHello:
		n := 2
		for _, e := range k.Entries {
			n += e.length()
		}
		return n
	case ContextServerHello:
		return k.Selected.length()
	case ContextHelloRetryRequest:
		return 2
	default:
		return 0
	}
}

func (k *KeyShare) AppendTo(buf []byte) ([]byte, error) {
	switch k.Ctx {
	case ContextClientHello:
		var list []byte
		for _, e := range k.Entries {
			var err error
			list, err = e.appendTo(list)
			if err != nil {
				return nil, err
			}
		}
		return wire.PutVector16(buf, list)
	case ContextServerHello:
		return k.Selected.appendTo(buf)
	case ContextHelloRetryRequest:
		return wire.PutUint16(buf, uint16(k.SelectedGroup)), nil
	default:
		return nil, fmt.Errorf("extension: key_share: unknown context %d", k.Ctx)
	}
}

func decodeKeyShare(ctx Context, body []byte) (Body, error) {
	r := wire.NewReader(body)

	switch ctx {
	case ContextClientHello:
		list, err := r.Vector16()
		if err != nil {
			return nil, fmt.Errorf("key_share: %w", err)
		}
		lr := wire.NewReader(list)
		var entries []KeyShareEntry
		for lr.Len() > 0 {
			e, err := decodeKeyShareEntry(lr)
			if err != nil {
				return nil, fmt.Errorf("key_share: entry: %w", err)
			}
			entries = append(entries, e)
		}
		return &KeyShare{Ctx: ctx, Entries: entries}, nil

	case ContextServerHello:
		e, err := decodeKeyShareEntry(r)
		if err != nil {
			return nil, fmt.Errorf("key_share: %w", err)
		}
		return &KeyShare{Ctx: ctx, Selected: e}, nil

	case ContextHelloRetryRequest:
		group, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("key_share: %w", err)
		}
		return &KeyShare{Ctx: ctx, SelectedGroup: NamedGroup(group)}, nil

	default:
		return nil, fmt.Errorf("key_share: unexpected context %d", ctx)
	}
}
