package handshake

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// NewSessionTicket is sent by the server at any point after CONNECTED
// to authorize a future PSK resumption (spec.md §4.3, §4.6). Only
// early_data is a valid extension here in TLS 1.3.
type NewSessionTicket struct {
	LifetimeSeconds uint32
	AgeAdd          uint32
	Nonce           []byte // 0-255 bytes
	Ticket          []byte // 1-65535 bytes
	Extensions      []extension.Body
}

func (n *NewSessionTicket) marshalBody() ([]byte, error) {
	buf := wire.PutUint32(nil, n.LifetimeSeconds)
	buf = wire.PutUint32(buf, n.AgeAdd)

	var err error
	buf, err = wire.PutVector8(buf, n.Nonce)
	if err != nil {
		return nil, err
	}
	buf, err = wire.PutVector16(buf, n.Ticket)
	if err != nil {
		return nil, err
	}
	return extension.EncodeList(buf, n.Extensions)
}

func (n *NewSessionTicket) Marshal() ([]byte, error) {
	body, err := n.marshalBody()
	if err != nil {
		return nil, err
	}
	header := append([]byte{byte(TypeNewSessionTicket)}, wire.PutUint24(nil, uint32(len(body)))...)
	return append(header, body...), nil
}

func UnmarshalNewSessionTicket(body []byte) (*NewSessionTicket, error) {
	r := wire.NewReader(body)

	lifetime, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("new_session_ticket: lifetime: %w", err)
	}
	ageAdd, err := r.Uint32()
	if err != nil {
		return nil, fmt.Errorf("new_session_ticket: age_add: %w", err)
	}
	nonce, err := r.Vector8()
	if err != nil {
		return nil, fmt.Errorf("new_session_ticket: nonce: %w", err)
	}
	ticket, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("new_session_ticket: ticket: %w", err)
	}
	if len(ticket) == 0 {
		return nil, fmt.Errorf("new_session_ticket: ticket must not be empty")
	}
	exts, err := extension.DecodeList(extension.ContextNewSessionTicket, r)
	if err != nil {
		return nil, fmt.Errorf("new_session_ticket: %w", err)
	}

	return &NewSessionTicket{
		LifetimeSeconds: lifetime,
		AgeAdd:          ageAdd,
		Nonce:           nonce,
		Ticket:          ticket,
		Extensions:      exts,
	}, nil
}
