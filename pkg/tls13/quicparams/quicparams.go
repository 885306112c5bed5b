// Package quicparams implements RFC 9001 §8.2's
// quic_transport_parameters extension: a list of VLI-encoded
// (id, length, value) triples carried opaquely by
// extension.QUICTransportParametersRaw. The field set mirrors the
// teacher's TransportParameters struct (RFC 9000 §18.2 parameter
// space), re-expressed here as an actual wire encode/decode pair.
package quicparams

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// ID is an RFC 9000 §18.2 transport parameter identifier.
type ID uint64

const (
	IDMaxIdleTimeout                 ID = 0x01
	IDMaxUDPPayloadSize              ID = 0x03
	IDInitialMaxData                 ID = 0x04
	IDInitialMaxStreamDataBidiLocal  ID = 0x05
	IDInitialMaxStreamDataBidiRemote ID = 0x06
	IDInitialMaxStreamDataUni        ID = 0x07
	IDInitialMaxStreamsBidi          ID = 0x08
	IDInitialMaxStreamsUni           ID = 0x09
	IDAckDelayExponent               ID = 0x0a
	IDMaxAckDelay                    ID = 0x0b
	IDDisableActiveMigration         ID = 0x0c
	IDActiveConnectionIDLimit        ID = 0x0e
	IDInitialSourceConnectionID      ID = 0x0f
	IDMaxDatagramFrameSize           ID = 0x20
)

// IsGREASE reports whether id follows the RFC 9000 §18.1 "grease the
// transport parameter space" recipe (31*N + 27), which this
// implementation never generates but must tolerate on decode.
func IsGREASE(id ID) bool {
	return id >= 27 && (uint64(id)-27)%31 == 0
}

// Parameters is the parsed RFC 9001 §8.2 parameter set. Integer-valued
// and empty-valued (DisableActiveMigration) parameters this
// implementation does not recognize are preserved in Unrecognized
// rather than dropped, so a GREASE parameter or one from a future RFC
// revision survives an encode/decode round trip unchanged.
type Parameters struct {
	MaxIdleTimeout                 uint64
	MaxUDPPayloadSize              uint64
	InitialMaxData                 uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi          uint64
	InitialMaxStreamsUni           uint64
	AckDelayExponent               uint64
	MaxAckDelay                    uint64
	DisableActiveMigration         bool
	ActiveConnectionIDLimit        uint64
	InitialSourceConnectionID      []byte
	MaxDatagramFrameSize           uint64

	// Unrecognized preserves any (id, value) pair this struct has no
	// named field for, in first-seen order, so re-encoding a decoded
	// Parameters is lossless even for GREASE or forward-compatible ids.
	Unrecognized []RawParameter
}

// RawParameter is one opaque (id, value) pair for ids this package
// does not model as a typed field.
type RawParameter struct {
	ID    ID
	Value []byte
}

// Default returns the connection defaults the teacher's
// DefaultTransportParameters used, adapted to the named-field shape
// above.
func Default() *Parameters {
	return &Parameters{
		MaxIdleTimeout:                 30000,
		MaxUDPPayloadSize:              1200,
		InitialMaxData:                 10 * 1024 * 1024,
		InitialMaxStreamDataBidiLocal:  1 * 1024 * 1024,
		InitialMaxStreamDataBidiRemote: 1 * 1024 * 1024,
		InitialMaxStreamDataUni:        1 * 1024 * 1024,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           100,
		AckDelayExponent:               3,
		MaxAckDelay:                    25,
		ActiveConnectionIDLimit:        2,
	}
}

func appendVarintParam(buf []byte, id ID, value uint64) ([]byte, error) {
	buf, err := wire.AppendVarint(buf, uint64(id))
	if err != nil {
		return nil, err
	}
	var valBuf []byte
	valBuf, err = wire.AppendVarint(valBuf, value)
	if err != nil {
		return nil, err
	}
	buf, err = wire.AppendVarint(buf, uint64(len(valBuf)))
	if err != nil {
		return nil, err
	}
	return append(buf, valBuf...), nil
}

func appendBytesParam(buf []byte, id ID, value []byte) ([]byte, error) {
	buf, err := wire.AppendVarint(buf, uint64(id))
	if err != nil {
		return nil, err
	}
	buf, err = wire.AppendVarint(buf, uint64(len(value)))
	if err != nil {
		return nil, err
	}
	return append(buf, value...), nil
}

func appendEmptyParam(buf []byte, id ID) ([]byte, error) {
	buf, err := wire.AppendVarint(buf, uint64(id))
	if err != nil {
		return nil, err
	}
	return wire.AppendVarint(buf, 0)
}

// Encode produces the quic_transport_parameters extension body: a flat
// concatenation of (id, length, value) VLI triples. Every integer
// field is emitted, zero-valued ones included, in the field order
// above; disable_active_migration follows only when set,
// initial_source_connection_id only when non-nil, and then the
// Unrecognized entries in order.
func (p *Parameters) Encode() (*extension.QUICTransportParametersRaw, error) {
	var buf []byte
	var err error

	for _, f := range []struct {
		id  ID
		val uint64
	}{
		{IDMaxIdleTimeout, p.MaxIdleTimeout},
		{IDMaxUDPPayloadSize, p.MaxUDPPayloadSize},
		{IDInitialMaxData, p.InitialMaxData},
		{IDInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal},
		{IDInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote},
		{IDInitialMaxStreamDataUni, p.InitialMaxStreamDataUni},
		{IDInitialMaxStreamsBidi, p.InitialMaxStreamsBidi},
		{IDInitialMaxStreamsUni, p.InitialMaxStreamsUni},
		{IDAckDelayExponent, p.AckDelayExponent},
		{IDMaxAckDelay, p.MaxAckDelay},
		{IDActiveConnectionIDLimit, p.ActiveConnectionIDLimit},
		{IDMaxDatagramFrameSize, p.MaxDatagramFrameSize},
	} {
		buf, err = appendVarintParam(buf, f.id, f.val)
		if err != nil {
			return nil, fmt.Errorf("quicparams: encoding id 0x%x: %w", f.id, err)
		}
	}

	if p.DisableActiveMigration {
		buf, err = appendEmptyParam(buf, IDDisableActiveMigration)
		if err != nil {
			return nil, err
		}
	}

	if p.InitialSourceConnectionID != nil {
		buf, err = appendBytesParam(buf, IDInitialSourceConnectionID, p.InitialSourceConnectionID)
		if err != nil {
			return nil, err
		}
	}

	for _, raw := range p.Unrecognized {
		buf, err = appendBytesParam(buf, raw.ID, raw.Value)
		if err != nil {
			return nil, fmt.Errorf("quicparams: encoding unrecognized id 0x%x: %w", raw.ID, err)
		}
	}

	return &extension.QUICTransportParametersRaw{Body: buf}, nil
}

// Decode parses a quic_transport_parameters extension body into
// Parameters. Unknown, GREASE, or forward-compatible ids are preserved
// in Unrecognized rather than rejected, per RFC 9001 §8.2's
// forward-compatibility requirement.
func Decode(raw *extension.QUICTransportParametersRaw) (*Parameters, error) {
	p := &Parameters{}
	body := raw.Body

	for len(body) > 0 {
		id, n, err := wire.ParseVarint(body)
		if err != nil {
			return nil, fmt.Errorf("quicparams: id: %w", err)
		}
		body = body[n:]

		length, n, err := wire.ParseVarint(body)
		if err != nil {
			return nil, fmt.Errorf("quicparams: length: %w", err)
		}
		body = body[n:]

		if uint64(len(body)) < length {
			return nil, fmt.Errorf("quicparams: id 0x%x: %w", id, wire.ErrTruncated)
		}
		value := body[:length]
		body = body[length:]

		if err := p.setField(ID(id), value); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Parameters) setField(id ID, value []byte) error {
	switch id {
	case IDMaxIdleTimeout, IDMaxUDPPayloadSize, IDInitialMaxData,
		IDInitialMaxStreamDataBidiLocal, IDInitialMaxStreamDataBidiRemote,
		IDInitialMaxStreamDataUni, IDInitialMaxStreamsBidi, IDInitialMaxStreamsUni,
		IDAckDelayExponent, IDMaxAckDelay, IDActiveConnectionIDLimit, IDMaxDatagramFrameSize:
		v, _, err := wire.ParseVarint(value)
		if err != nil {
			return fmt.Errorf("quicparams: id 0x%x: %w", id, err)
		}
		switch id {
		case IDMaxIdleTimeout:
			p.MaxIdleTimeout = v
		case IDMaxUDPPayloadSize:
			p.MaxUDPPayloadSize = v
		case IDInitialMaxData:
			p.InitialMaxData = v
		case IDInitialMaxStreamDataBidiLocal:
			p.InitialMaxStreamDataBidiLocal = v
		case IDInitialMaxStreamDataBidiRemote:
			p.InitialMaxStreamDataBidiRemote = v
		case IDInitialMaxStreamDataUni:
			p.InitialMaxStreamDataUni = v
		case IDInitialMaxStreamsBidi:
			p.InitialMaxStreamsBidi = v
		case IDInitialMaxStreamsUni:
			p.InitialMaxStreamsUni = v
		case IDAckDelayExponent:
			p.AckDelayExponent = v
		case IDMaxAckDelay:
			p.MaxAckDelay = v
		case IDActiveConnectionIDLimit:
			p.ActiveConnectionIDLimit = v
		case IDMaxDatagramFrameSize:
			p.MaxDatagramFrameSize = v
		}
		return nil

	case IDDisableActiveMigration:
		if len(value) != 0 {
			return fmt.Errorf("quicparams: disable_active_migration must be empty-valued")
		}
		p.DisableActiveMigration = true
		return nil

	case IDInitialSourceConnectionID:
		p.InitialSourceConnectionID = append([]byte(nil), value...)
		return nil

	default:
		// Covers both genuine GREASE ids (RFC 9000 §18.1) and any
		// forward-compatible id this package doesn't model yet —
		// either way the round trip must preserve it unchanged.
		p.Unrecognized = append(p.Unrecognized, RawParameter{ID: id, Value: append([]byte(nil), value...)})
		return nil
	}
}
