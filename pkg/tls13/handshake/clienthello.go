package handshake

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// ClientHello is the first flight of a TLS 1.3 handshake (spec.md §4.3).
type ClientHello struct {
	Random            [32]byte
	LegacySessionID   []byte // 0-32 bytes, echoed verbatim by the server
	CipherSuites      []CipherSuite
	Extensions        []extension.Body
}

// marshalBodyWithoutPSK encodes the whole ClientHello body, including
// the trailing pre_shared_key extension (if any) with its binders. It
// returns the assembled bytes and, when a PSK extension is present,
// the byte offset within those bytes where the psk binders vector
// (its 2-byte length prefix) begins (spec.md §9 "Transcript hash
// around PSK binders").
//
// Callers without a PSK get back (fullBody, -1).
func (c *ClientHello) marshalBodyWithoutPSK() ([]byte, int, error) {
	if len(c.LegacySessionID) > 32 {
		return nil, -1, fmt.Errorf("client_hello: session id too long (%d)", len(c.LegacySessionID))
	}

	buf := wire.PutUint16(nil, LegacyVersion)
	buf = append(buf, c.Random[:]...)

	var err error
	buf, err = wire.PutVector8(buf, c.LegacySessionID)
	if err != nil {
		return nil, -1, err
	}

	var csBytes []byte
	for _, cs := range c.CipherSuites {
		csBytes = wire.PutUint16(csBytes, uint16(cs))
	}
	buf, err = wire.PutVector16(buf, csBytes)
	if err != nil {
		return nil, -1, err
	}

	buf, err = wire.PutVector8(buf, []byte{0x00}) // legacy_compression_methods = {null}
	if err != nil {
		return nil, -1, err
	}

	pskIdx := -1
	for i, ext := range c.Extensions {
		if _, ok := ext.(*extension.PreSharedKey); ok {
			pskIdx = i
			break
		}
	}

	nonPSK := c.Extensions
	if pskIdx >= 0 {
		nonPSK = c.Extensions[:pskIdx]
	}

	var extListBody []byte
	for _, ext := range nonPSK {
		extListBody, err = appendExtension(extListBody, ext)
		if err != nil {
			return nil, -1, err
		}
	}

	bindersOffsetInExtBody := -1
	if pskIdx >= 0 {
		psk := c.Extensions[pskIdx].(*extension.PreSharedKey)

		extListBody = wire.PutUint16(extListBody, uint16(extension.TypePreSharedKey))
		extListBody = wire.PutUint16(extListBody, uint16(psk.Length()))

		idBytes, err := psk.IdentitiesBytes()
		if err != nil {
			return nil, -1, err
		}
		extListBody = append(extListBody, idBytes...)

		bindersOffsetInExtBody = len(extListBody)

		binderBytes, err := psk.BindersBytes()
		if err != nil {
			return nil, -1, err
		}
		extListBody = append(extListBody, binderBytes...)

		if pskIdx != len(c.Extensions)-1 {
			return nil, -1, fmt.Errorf("client_hello: pre_shared_key must be the last extension")
		}
	}

	extBytes, err := wire.PutVector16(nil, extListBody)
	if err != nil {
		return nil, -1, err
	}

	bodyPrefixLen := len(buf)
	extListVectorPrefixLen := len(extBytes) - len(extListBody)

	buf = append(buf, extBytes...)

	if bindersOffsetInExtBody < 0 {
		return buf, -1, nil
	}

	absoluteBindersOffset := bodyPrefixLen + extListVectorPrefixLen + bindersOffsetInExtBody
	return buf, absoluteBindersOffset, nil
}

func appendExtension(buf []byte, ext extension.Body) ([]byte, error) {
	if _, ok := ext.(*extension.Unknown); ok {
		return buf, nil
	}
	buf = wire.PutUint16(buf, uint16(ext.Type()))
	buf = wire.PutUint16(buf, uint16(ext.Length()))
	return ext.AppendTo(buf)
}

// MarshalForBinding encodes the full handshake message (4-byte header
// + body) and, if a pre_shared_key extension is present, the absolute
// offset within the returned bytes where its binders vector starts.
// Callers must have already set PreSharedKey.Binders to zero-filled
// placeholders of the final HMAC length before calling this, then
// compute the transcript hash over buf[:bindersOffset], derive the
// real binder values, and overwrite buf[bindersOffset:] in place —
// the placeholder and real binders always occupy the same number of
// bytes, so the rest of the message (including its length prefix)
// stays correct.
func (c *ClientHello) MarshalForBinding() (buf []byte, bindersOffset int, err error) {
	body, bindersOffsetInBody, err := c.marshalBodyWithoutPSK()
	if err != nil {
		return nil, -1, err
	}

	header := append([]byte{byte(TypeClientHello)}, wire.PutUint24(nil, uint32(len(body)))...)
	full := append(header, body...)

	if bindersOffsetInBody < 0 {
		return full, -1, nil
	}
	return full, len(header) + bindersOffsetInBody, nil
}

// Marshal encodes a ClientHello with no pre_shared_key extension, or
// one whose binders are already final (e.g. re-encoding a decoded
// message for inspection).
func (c *ClientHello) Marshal() ([]byte, error) {
	buf, _, err := c.MarshalForBinding()
	return buf, err
}

// UnmarshalClientHello decodes a ClientHello body (the bytes after the
// 4-byte handshake header).
func UnmarshalClientHello(body []byte) (*ClientHello, error) {
	r := wire.NewReader(body)

	version, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("client_hello: %w", err)
	}
	_ = version // legacy_version is not validated; TLS 1.3 is signaled via the extension

	randomBytes, err := r.Bytes(32)
	if err != nil {
		return nil, fmt.Errorf("client_hello: random: %w", err)
	}

	sessionID, err := r.Vector8()
	if err != nil {
		return nil, fmt.Errorf("client_hello: session_id: %w", err)
	}
	if len(sessionID) > 32 {
		return nil, fmt.Errorf("client_hello: session_id too long (%d)", len(sessionID))
	}

	csVec, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("client_hello: cipher_suites: %w", err)
	}
	csr := wire.NewReader(csVec)
	var suites []CipherSuite
	for csr.Len() > 0 {
		v, err := csr.Uint16()
		if err != nil {
			return nil, fmt.Errorf("client_hello: cipher_suites entry: %w", err)
		}
		suites = append(suites, CipherSuite(v))
	}

	compression, err := r.Vector8()
	if err != nil {
		return nil, fmt.Errorf("client_hello: compression_methods: %w", err)
	}
	if len(compression) != 1 || compression[0] != 0x00 {
		return nil, fmt.Errorf("client_hello: legacy_compression_methods must be {0x00}")
	}

	exts, err := extension.DecodeList(extension.ContextClientHello, r)
	if err != nil {
		return nil, fmt.Errorf("client_hello: %w", err)
	}

	ch := &ClientHello{
		LegacySessionID: sessionID,
		CipherSuites:    suites,
		Extensions:      exts,
	}
	copy(ch.Random[:], randomBytes)
	return ch, nil
}
