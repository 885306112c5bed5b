package handshake

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// Message is anything that serializes to a handshake record's body:
// type(1) + length(3) + body. Conn implementations marshal concrete
// types directly (ClientHello.Marshal, Finished.Marshal, ...) and hand
// the resulting bytes to the record layer; Message names the Marshal
// method they all share.
type Message interface {
	Marshal() ([]byte, error)
}

// SplitOne reads one handshake message's header off the front of buf,
// returning its type, its body, and the number of bytes consumed. It
// does not interpret the body — this lets the record layer reassemble
// a complete message across multiple records before handing it here.
func SplitOne(buf []byte) (Type, []byte, int, error) {
	r := wire.NewReader(buf)

	typ, err := r.Uint8()
	if err != nil {
		return 0, nil, 0, wire.ErrTruncated
	}
	length, err := r.Uint24()
	if err != nil {
		return 0, nil, 0, wire.ErrTruncated
	}
	body, err := r.Bytes(int(length))
	if err != nil {
		return 0, nil, 0, wire.ErrTruncated
	}

	return Type(typ), body, 4 + int(length), nil
}

// UnmarshalAny decodes body according to typ. ServerHello and other
// types whose decoding depends on context are not handled and return
// an error; decode those with their type-specific Unmarshal* function
// (for a ServerHello, after PeekIsHelloRetryRequest).
func UnmarshalAny(typ Type, body []byte) (interface{}, error) {
	switch typ {
	case TypeEncryptedExtensions:
		return UnmarshalEncryptedExtensions(body)
	case TypeCertificate:
		return UnmarshalCertificate(body)
	case TypeCertificateVerify:
		return UnmarshalCertificateVerify(body)
	case TypeFinished:
		return UnmarshalFinished(body)
	case TypeNewSessionTicket:
		return UnmarshalNewSessionTicket(body)
	case TypeEndOfEarlyData:
		return UnmarshalEndOfEarlyData(body)
	case TypeKeyUpdate:
		return UnmarshalKeyUpdate(body)
	case TypeClientHello:
		return UnmarshalClientHello(body)
	default:
		return nil, fmt.Errorf("handshake: %s decoding not context-free; use the type-specific Unmarshal* function", typ)
	}
}
