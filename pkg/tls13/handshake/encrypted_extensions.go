package handshake

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// EncryptedExtensions carries every ServerHello extension that does
// not need to be visible before the handshake keys are derived.
type EncryptedExtensions struct {
	Extensions []extension.Body
}

func (e *EncryptedExtensions) marshalBody() ([]byte, error) {
	return extension.EncodeList(nil, e.Extensions)
}

func (e *EncryptedExtensions) Marshal() ([]byte, error) {
	body, err := e.marshalBody()
	if err != nil {
		return nil, err
	}
	header := append([]byte{byte(TypeEncryptedExtensions)}, wire.PutUint24(nil, uint32(len(body)))...)
	return append(header, body...), nil
}

func UnmarshalEncryptedExtensions(body []byte) (*EncryptedExtensions, error) {
	r := wire.NewReader(body)
	exts, err := extension.DecodeList(extension.ContextEncryptedExtensions, r)
	if err != nil {
		return nil, fmt.Errorf("encrypted_extensions: %w", err)
	}
	return &EncryptedExtensions{Extensions: exts}, nil
}

// EndOfEarlyData has an empty body; it marks the boundary between
// 0-RTT application data and the client's Handshake-protected flight.
type EndOfEarlyData struct{}

func (EndOfEarlyData) Marshal() ([]byte, error) {
	return []byte{byte(TypeEndOfEarlyData), 0, 0, 0}, nil
}

func UnmarshalEndOfEarlyData(body []byte) (*EndOfEarlyData, error) {
	if len(body) != 0 {
		return nil, fmt.Errorf("end_of_early_data: unexpected %d-byte body", len(body))
	}
	return &EndOfEarlyData{}, nil
}

// KeyUpdate signals a one-way traffic-secret ratchet (spec.md §4.5).
type KeyUpdate struct {
	RequestUpdate KeyUpdateRequest
}

func (k *KeyUpdate) Marshal() ([]byte, error) {
	return []byte{byte(TypeKeyUpdate), 0, 0, 1, byte(k.RequestUpdate)}, nil
}

func UnmarshalKeyUpdate(body []byte) (*KeyUpdate, error) {
	if len(body) != 1 {
		return nil, fmt.Errorf("key_update: unexpected %d-byte body", len(body))
	}
	req := KeyUpdateRequest(body[0])
	if req != KeyUpdateNotRequested && req != KeyUpdateRequested {
		return nil, fmt.Errorf("key_update: invalid request_update value %d", body[0])
	}
	return &KeyUpdate{RequestUpdate: req}, nil
}
