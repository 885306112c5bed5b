// Package extension implements the RFC 8446 §4.2 extension codec: a
// closed tagged union over extension type, keyed by handshake context
// because several extensions (key_share, supported_versions,
// pre_shared_key) carry a different shape in ClientHello than in
// ServerHello/HelloRetryRequest. Unknown extension codes degrade to
// the Unknown variant, preserved on decode but never re-emitted.
package extension

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// Type is the 2-byte extension type codepoint (RFC 8446 §4.2 plus the
// RFC 9001 §8.2 QUIC addition).
type Type uint16

const (
	TypeServerName              Type = 0
	TypeSupportedGroups         Type = 10
	TypeSignatureAlgorithms     Type = 13
	TypeALPN                    Type = 16
	TypeRecordSizeLimit         Type = 28
	TypePreSharedKey            Type = 41
	TypeEarlyData               Type = 42
	TypeSupportedVersions       Type = 43
	TypeCookie                  Type = 44
	TypePSKKeyExchangeModes     Type = 45
	TypeKeyShare                Type = 51
	TypeQUICTransportParameters Type = 0x39
)

func (t Type) String() string {
	switch t {
	case TypeServerName:
		return "server_name"
	case TypeSupportedGroups:
		return "supported_groups"
	case TypeSignatureAlgorithms:
		return "signature_algorithms"
	case TypeALPN:
		return "application_layer_protocol_negotiation"
	case TypeRecordSizeLimit:
		return "record_size_limit"
	case TypePreSharedKey:
		return "pre_shared_key"
	case TypeEarlyData:
		return "early_data"
	case TypeSupportedVersions:
		return "supported_versions"
	case TypeCookie:
		return "cookie"
	case TypePSKKeyExchangeModes:
		return "psk_key_exchange_modes"
	case TypeKeyShare:
		return "key_share"
	case TypeQUICTransportParameters:
		return "quic_transport_parameters"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(t))
	}
}

// Context identifies which handshake message an extension list belongs
// to. key_share, supported_versions, and pre_shared_key all decode
// differently depending on it.
type Context uint8

const (
	ContextClientHello Context = iota
	ContextServerHello
	ContextHelloRetryRequest
	ContextEncryptedExtensions
	ContextCertificateRequest
	ContextCertificateEntry
	ContextNewSessionTicket
)

// Body is the common interface every extension variant implements.
// Type, Length, and AppendTo together satisfy the codec's global
// invariant: len(AppendTo(nil)) == Length().
type Body interface {
	Type() Type
	Length() int
	AppendTo(buf []byte) ([]byte, error)
}

// Unknown preserves an unrecognized or GREASE extension's raw body for
// inspection. It is never re-encoded: AppendTo always fails, and
// EncodeList silently omits Unknown entries from its output, matching
// spec.md §4.2 "Re-encoding an unknown extension is forbidden".
type Unknown struct {
	ExtType Type
	Raw     []byte
}

func (u *Unknown) Type() Type   { return u.ExtType }
func (u *Unknown) Length() int  { return len(u.Raw) }
func (u *Unknown) AppendTo(buf []byte) ([]byte, error) {
	return nil, fmt.Errorf("extension: refusing to re-encode unknown extension %s", u.ExtType)
}

// Decode dispatches on typ and parses body into a concrete Body. An
// extension type this package does not recognize for the given
// context becomes Unknown rather than failing decode, per RFC 8446
// §4.2: unknown extensions MUST be ignored unless the handshake type
// forbids them (callers enforce that forbiddance at the message layer,
// e.g. rejecting key_share in EncryptedExtensions).
func Decode(ctx Context, typ Type, body []byte) (Body, error) {
	switch typ {
	case TypeServerName:
		return decodeServerName(body)
	case TypeSupportedGroups:
		return decodeSupportedGroups(body)
	case TypeSignatureAlgorithms:
		return decodeSignatureAlgorithms(body)
	case TypeALPN:
		return decodeALPN(ctx, body)
	case TypeRecordSizeLimit:
		return decodeRecordSizeLimit(body)
	case TypePreSharedKey:
		return decodePreSharedKey(ctx, body)
	case TypeEarlyData:
		return decodeEarlyData(ctx, body)
	case TypeSupportedVersions:
		return decodeSupportedVersions(ctx, body)
	case TypeCookie:
		return decodeCookie(body)
	case TypePSKKeyExchangeModes:
		return decodePSKKeyExchangeModes(body)
	case TypeKeyShare:
		return decodeKeyShare(ctx, body)
	case TypeQUICTransportParameters:
		return decodeQUICTransportParametersRaw(body)
	default:
		raw := make([]byte, len(body))
		copy(raw, body)
		return &Unknown{ExtType: typ, Raw: raw}, nil
	}
}

// DecodeList decodes the 2-byte-length-prefixed extension list that
// terminates every handshake message body.
func DecodeList(ctx Context, r *wire.Reader) ([]Body, error) {
	listBody, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("extension: truncated extension list: %w", err)
	}

	lr := wire.NewReader(listBody)
	var out []Body
	for lr.Len() > 0 {
		rawType, err := lr.Uint16()
		if err != nil {
			return nil, fmt.Errorf("extension: truncated type: %w", err)
		}
		length, err := lr.Uint16()
		if err != nil {
			return nil, fmt.Errorf("extension: truncated length: %w", err)
		}
		body, err := lr.Bytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("extension: %s body overlong: %w", Type(rawType), err)
		}

		ext, err := Decode(ctx, Type(rawType), body)
		if err != nil {
			return nil, fmt.Errorf("extension: decoding %s: %w", Type(rawType), err)
		}
		out = append(out, ext)
	}

	return out, nil
}

// EncodeList appends a 2-byte-length-prefixed extension list. Unknown
// entries are silently omitted (see Unknown's doc comment).
func EncodeList(buf []byte, exts []Body) ([]byte, error) {
	var body []byte
	for _, ext := range exts {
		if _, ok := ext.(*Unknown); ok {
			continue
		}

		head := wire.PutUint16(nil, uint16(ext.Type()))
		head = wire.PutUint16(head, uint16(ext.Length()))
		body = append(body, head...)

		var err error
		body, err = ext.AppendTo(body)
		if err != nil {
			return nil, fmt.Errorf("extension: encoding %s: %w", ext.Type(), err)
		}
	}

	return wire.PutVector16(buf, body)
}
