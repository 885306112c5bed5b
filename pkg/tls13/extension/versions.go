package extension

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// VersionTLS13 is the wire value RFC 8446 assigns TLS 1.3 inside the
// supported_versions extension (the legacy_version fields on messages
// stay pinned to 0x0303 for middlebox compatibility).
const VersionTLS13 uint16 = 0x0304

// SupportedVersions is a list in ClientHello, a single fixed 0x0304 in
// ServerHello/HelloRetryRequest.
type SupportedVersions struct {
	Ctx      Context
	Versions []uint16 // ClientHello only
}

func (s *SupportedVersions) Type() Type { return TypeSupportedVersions }

func (s *SupportedVersions) Length() int {
	if s.Ctx == ContextClientHello {
		return 1 + 2*len(s.Versions)
	}
	return 2
}

func (s *SupportedVersions) AppendTo(buf []byte) ([]byte, error) {
	if s.Ctx == ContextClientHello {
		if len(s.Versions) > 127 {
			return nil, wire.ErrEncodeShort
		}
		buf = wire.PutUint8(buf, uint8(2*len(s.Versions)))
		for _, v := range s.Versions {
			buf = wire.PutUint16(buf, v)
		}
		return buf, nil
	}
	return wire.PutUint16(buf, VersionTLS13), nil
}

func decodeSupportedVersions(ctx Context, body []byte) (Body, error) {
	r := wire.NewReader(body)

	if ctx == ContextClientHello {
		list, err := r.Vector8()
		if err != nil {
			return nil, fmt.Errorf("supported_versions: %w", err)
		}
		lr := wire.NewReader(list)
		var versions []uint16
		for lr.Len() > 0 {
			v, err := lr.Uint16()
			if err != nil {
				return nil, fmt.Errorf("supported_versions: entry: %w", err)
			}
			versions = append(versions, v)
		}
		return &SupportedVersions{Ctx: ctx, Versions: versions}, nil
	}

	v, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("supported_versions: %w", err)
	}
	return &SupportedVersions{Ctx: ctx, Versions: []uint16{v}}, nil
}
