package extension

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// SupportedGroups lists the client's offered (EC)DHE groups in
// preference order. Server support is limited to x25519/secp256r1
// (spec.md §3); the remaining codepoints are acknowledged on decode
// and never selected.
type SupportedGroups struct {
	Groups []NamedGroup
}

func (s *SupportedGroups) Type() Type  { return TypeSupportedGroups }
func (s *SupportedGroups) Length() int { return 2 + 2*len(s.Groups) }

func (s *SupportedGroups) AppendTo(buf []byte) ([]byte, error) {
	var list []byte
	for _, g := range s.Groups {
		list = wire.PutUint16(list, uint16(g))
	}
	return wire.PutVector16(buf, list)
}

func decodeSupportedGroups(body []byte) (Body, error) {
	r := wire.NewReader(body)
	list, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("supported_groups: %w", err)
	}
	lr := wire.NewReader(list)
	var groups []NamedGroup
	for lr.Len() > 0 {
		g, err := lr.Uint16()
		if err != nil {
			return nil, fmt.Errorf("supported_groups: entry: %w", err)
		}
		groups = append(groups, NamedGroup(g))
	}
	return &SupportedGroups{Groups: groups}, nil
}

// SignatureScheme is the RFC 8446 §4.2.3 signature algorithm codepoint.
type SignatureScheme uint16

const (
	SigRSAPSSRSAESHA256 SignatureScheme = 0x0804
	SigRSAPSSRSAESHA384 SignatureScheme = 0x0805
	SigRSAPSSRSAESHA512 SignatureScheme = 0x0806
	SigECDSASecp256r1SHA256 SignatureScheme = 0x0403
	SigECDSASecp384r1SHA384 SignatureScheme = 0x0503
	SigEd25519              SignatureScheme = 0x0807
)

// Supported reports whether this implementation can produce or verify
// signatures under scheme s (spec.md §3's supported signature set).
func (s SignatureScheme) Supported() bool {
	switch s {
	case SigRSAPSSRSAESHA256, SigRSAPSSRSAESHA384, SigRSAPSSRSAESHA512,
		SigECDSASecp256r1SHA256, SigECDSASecp384r1SHA384, SigEd25519:
		return true
	default:
		return false
	}
}

// SignatureAlgorithms lists the peer's acceptable SignatureScheme values.
type SignatureAlgorithms struct {
	Schemes []SignatureScheme
}

func (s *SignatureAlgorithms) Type() Type  { return TypeSignatureAlgorithms }
func (s *SignatureAlgorithms) Length() int { return 2 + 2*len(s.Schemes) }

func (s *SignatureAlgorithms) AppendTo(buf []byte) ([]byte, error) {
	var list []byte
	for _, sc := range s.Schemes {
		list = wire.PutUint16(list, uint16(sc))
	}
	return wire.PutVector16(buf, list)
}

func decodeSignatureAlgorithms(body []byte) (Body, error) {
	r := wire.NewReader(body)
	list, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("signature_algorithms: %w", err)
	}
	lr := wire.NewReader(list)
	var schemes []SignatureScheme
	for lr.Len() > 0 {
		v, err := lr.Uint16()
		if err != nil {
			return nil, fmt.Errorf("signature_algorithms: entry: %w", err)
		}
		schemes = append(schemes, SignatureScheme(v))
	}
	return &SignatureAlgorithms{Schemes: schemes}, nil
}
