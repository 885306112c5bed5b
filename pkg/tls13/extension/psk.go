package extension

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// PSKIdentity is one pre_shared_key ClientHello identity: an opaque
// ticket plus the client's notion of how long ago it was issued,
// obfuscated by ticket_age_add (spec.md §3 "Ticket").
type PSKIdentity struct {
	Identity            []byte
	ObfuscatedTicketAge uint32
}

func (id PSKIdentity) length() int {
	return 2 + len(id.Identity) + 4
}

func (id PSKIdentity) appendTo(buf []byte) ([]byte, error) {
	buf, err := wire.PutVector16(buf, id.Identity)
	if err != nil {
		return nil, err
	}
	return wire.PutUint32(buf, id.ObfuscatedTicketAge), nil
}

// PreSharedKey is polymorphic over context: in ClientHello it carries
// identities plus a separate binders list whose byte offset the state
// machine must know in order to patch binder values in after the
// transcript over the truncated message is computed (spec.md §4.2,
// §9 "Transcript hash around PSK binders"). In ServerHello it is a
// single selected-identity index.
type PreSharedKey struct {
	Ctx Context

	// ClientHello
	Identities []PSKIdentity
	Binders    [][]byte // each entry pre-sized to its final HMAC length

	// ServerHello
	SelectedIdentity uint16
}

func (p *PreSharedKey) Type() Type { return TypePreSharedKey }

func (p *PreSharedKey) Length() int {
	if p.Ctx != ContextClientHello {
		return 2
	}
	n := 2 // identities vector length prefix
	for _, id := range p.Identities {
		n += id.length()
	}
	n += 2 // binders vector length prefix
	for _, b := range p.Binders {
		n += 1 + len(b)
	}
	return n
}

// IdentitiesBytes returns the encoded identities<7..2^16-1> vector,
// including its own 2-byte length prefix.
func (p *PreSharedKey) IdentitiesBytes() ([]byte, error) {
	var body []byte
	for _, id := range p.Identities {
		var err error
		body, err = id.appendTo(body)
		if err != nil {
			return nil, err
		}
	}
	return wire.PutVector16(nil, body)
}

// BindersBytes returns the encoded binders<33..2^16-1> vector from
// p.Binders, including its own 2-byte length prefix. Callers compute
// the real HMAC values and set p.Binders before the final call; an
// earlier call with zero-filled placeholders of the same length is
// used to size the message before the transcript hash is available.
func (p *PreSharedKey) BindersBytes() ([]byte, error) {
	var body []byte
	for _, b := range p.Binders {
		var err error
		body, err = wire.PutVector8(body, b)
		if err != nil {
			return nil, err
		}
	}
	return wire.PutVector16(nil, body)
}

func (p *PreSharedKey) AppendTo(buf []byte) ([]byte, error) {
	if p.Ctx != ContextClientHello {
		return wire.PutUint16(buf, p.SelectedIdentity), nil
	}

	idBytes, err := p.IdentitiesBytes()
	if err != nil {
		return nil, err
	}
	binderBytes, err := p.BindersBytes()
	if err != nil {
		return nil, err
	}
	return append(append(buf, idBytes...), binderBytes...), nil
}

func decodePreSharedKey(ctx Context, body []byte) (Body, error) {
	r := wire.NewReader(body)

	if ctx != ContextClientHello {
		v, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("pre_shared_key: %w", err)
		}
		return &PreSharedKey{Ctx: ctx, SelectedIdentity: v}, nil
	}

	idList, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("pre_shared_key: identities: %w", err)
	}
	idr := wire.NewReader(idList)
	var identities []PSKIdentity
	for idr.Len() > 0 {
		ident, err := idr.Vector16()
		if err != nil {
			return nil, fmt.Errorf("pre_shared_key: identity: %w", err)
		}
		age, err := idr.Uint32()
		if err != nil {
			return nil, fmt.Errorf("pre_shared_key: ticket age: %w", err)
		}
		identities = append(identities, PSKIdentity{Identity: ident, ObfuscatedTicketAge: age})
	}

	binderList, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("pre_shared_key: binders: %w", err)
	}
	br := wire.NewReader(binderList)
	var binders [][]byte
	for br.Len() > 0 {
		b, err := br.Vector8()
		if err != nil {
			return nil, fmt.Errorf("pre_shared_key: binder: %w", err)
		}
		binders = append(binders, b)
	}

	if len(binders) != len(identities) {
		return nil, fmt.Errorf("pre_shared_key: %d identities but %d binders", len(identities), len(binders))
	}

	return &PreSharedKey{Ctx: ctx, Identities: identities, Binders: binders}, nil
}

// PSKKeyExchangeMode is the RFC 8446 §4.2.9 psk_key_exchange_modes value.
type PSKKeyExchangeMode uint8

const (
	PSKKE         PSKKeyExchangeMode = 0
	PSKDHEKE      PSKKeyExchangeMode = 1
)

// PSKKeyExchangeModes lists the client's supported PSK exchange modes.
// Only psk_dhe_ke is negotiated by this implementation (spec.md never
// offers a non-(EC)DHE PSK mode), but both values round-trip on decode.
type PSKKeyExchangeModes struct {
	Modes []PSKKeyExchangeMode
}

func (m *PSKKeyExchangeModes) Type() Type  { return TypePSKKeyExchangeModes }
func (m *PSKKeyExchangeModes) Length() int { return 1 + len(m.Modes) }

func (m *PSKKeyExchangeModes) AppendTo(buf []byte) ([]byte, error) {
	if len(m.Modes) > 0xFF {
		return nil, wire.ErrEncodeShort
	}
	buf = wire.PutUint8(buf, uint8(len(m.Modes)))
	for _, mode := range m.Modes {
		buf = wire.PutUint8(buf, uint8(mode))
	}
	return buf, nil
}

func decodePSKKeyExchangeModes(body []byte) (Body, error) {
	r := wire.NewReader(body)
	list, err := r.Vector8()
	if err != nil {
		return nil, fmt.Errorf("psk_key_exchange_modes: %w", err)
	}
	modes := make([]PSKKeyExchangeMode, len(list))
	for i, b := range list {
		modes[i] = PSKKeyExchangeMode(b)
	}
	return &PSKKeyExchangeModes{Modes: modes}, nil
}

// EarlyData signals 0-RTT support. It is empty-bodied in ClientHello
// and EncryptedExtensions (acceptance), and carries max_early_data_size
// in NewSessionTicket.
type EarlyData struct {
	Ctx                Context
	MaxEarlyDataSize   uint32 // NewSessionTicket only
}

func (e *EarlyData) Type() Type { return TypeEarlyData }

func (e *EarlyData) Length() int {
	if e.Ctx == ContextNewSessionTicket {
		return 4
	}
	return 0
}

func (e *EarlyData) AppendTo(buf []byte) ([]byte, error) {
	if e.Ctx == ContextNewSessionTicket {
		return wire.PutUint32(buf, e.MaxEarlyDataSize), nil
	}
	return buf, nil
}

func decodeEarlyData(ctx Context, body []byte) (Body, error) {
	if ctx != ContextNewSessionTicket {
		if len(body) != 0 {
			return nil, fmt.Errorf("early_data: unexpected %d-byte body", len(body))
		}
		return &EarlyData{Ctx: ctx}, nil
	}
	r := wire.NewReader(body)
	v, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("early_data: %w", err)
	}
	return &EarlyData{Ctx: ctx, MaxEarlyDataSize: v}, nil
}
