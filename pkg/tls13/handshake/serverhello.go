package handshake

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// ServerHello mirrors ClientHello's shape with a single chosen cipher
// suite. A HelloRetryRequest is wire-identical except for a fixed
// server_random (spec.md §4.3); IsHelloRetryRequest distinguishes them.
type ServerHello struct {
	Random          [32]byte
	LegacySessionID []byte // echoed verbatim from the ClientHello
	CipherSuite     CipherSuite
	Extensions      []extension.Body
}

// IsHelloRetryRequest reports whether Random is the fixed RFC 8446
// §4.1.3 HelloRetryRequest sentinel.
func (s *ServerHello) IsHelloRetryRequest() bool {
	return s.Random == helloRetryRequestRandom
}

// NewHelloRetryRequest builds a ServerHello carrying the fixed HRR
// random, for use when the server needs the client to resend its
// ClientHello with a different key_share (spec.md §4.6).
func NewHelloRetryRequest(sessionID []byte, suite CipherSuite, exts []extension.Body) *ServerHello {
	return &ServerHello{
		Random:          helloRetryRequestRandom,
		LegacySessionID: sessionID,
		CipherSuite:     suite,
		Extensions:      exts,
	}
}

func (s *ServerHello) marshalBody() ([]byte, error) {
	buf := wire.PutUint16(nil, LegacyVersion)
	buf = append(buf, s.Random[:]...)

	var err error
	buf, err = wire.PutVector8(buf, s.LegacySessionID)
	if err != nil {
		return nil, err
	}

	buf = wire.PutUint16(buf, uint16(s.CipherSuite))
	buf = wire.PutUint8(buf, 0x00) // legacy_compression_method = null

	return extension.EncodeList(buf, s.Extensions)
}

// Marshal encodes the full handshake message (4-byte header + body).
func (s *ServerHello) Marshal() ([]byte, error) {
	body, err := s.marshalBody()
	if err != nil {
		return nil, err
	}
	header := append([]byte{byte(TypeServerHello)}, wire.PutUint24(nil, uint32(len(body)))...)
	return append(header, body...), nil
}

// UnmarshalServerHello decodes a ServerHello/HelloRetryRequest body.
// ctx must be extension.ContextServerHello or
// extension.ContextHelloRetryRequest depending on whether the caller
// already recognizes the fixed HRR random (callers that haven't yet
// looked at Random should call PeekIsHelloRetryRequest first: a
// HelloRetryRequest's 2-byte key_share does not decode under
// ContextServerHello, since key_share's shape differs between the two,
// see extension.KeyShare).
func UnmarshalServerHello(body []byte, ctx extension.Context) (*ServerHello, error) {
	r := wire.NewReader(body)

	version, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("server_hello: %w", err)
	}
	_ = version

	randomBytes, err := r.Bytes(32)
	if err != nil {
		return nil, fmt.Errorf("server_hello: random: %w", err)
	}

	sessionID, err := r.Vector8()
	if err != nil {
		return nil, fmt.Errorf("server_hello: session_id: %w", err)
	}

	suite, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("server_hello: cipher_suite: %w", err)
	}

	compression, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("server_hello: compression_method: %w", err)
	}
	if compression != 0x00 {
		return nil, fmt.Errorf("server_hello: legacy_compression_method must be 0x00")
	}

	exts, err := extension.DecodeList(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("server_hello: %w", err)
	}

	sh := &ServerHello{
		LegacySessionID: sessionID,
		CipherSuite:     CipherSuite(suite),
		Extensions:      exts,
	}
	copy(sh.Random[:], randomBytes)
	return sh, nil
}

// PeekIsHelloRetryRequest inspects the fixed random position of a raw
// ServerHello body (2-byte legacy_version + 32-byte random) without
// fully decoding it, so the caller can pick the right extension.Context
// before running UnmarshalServerHello.
func PeekIsHelloRetryRequest(body []byte) bool {
	if len(body) < 34 {
		return false
	}
	var random [32]byte
	copy(random[:], body[2:34])
	return random == helloRetryRequestRandom
}
