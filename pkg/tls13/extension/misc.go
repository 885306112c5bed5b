package extension

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// RecordSizeLimit caps the plaintext fragment size the peer MAY send,
// per spec.md §4.2: a 2-byte limit in [64, 2^14+1] for TLS 1.3.
type RecordSizeLimit struct {
	Limit uint16
}

const (
	RecordSizeLimitMin = 64
	RecordSizeLimitMax = 1<<14 + 1
)

func (r *RecordSizeLimit) Type() Type  { return TypeRecordSizeLimit }
func (r *RecordSizeLimit) Length() int { return 2 }

func (r *RecordSizeLimit) AppendTo(buf []byte) ([]byte, error) {
	return wire.PutUint16(buf, r.Limit), nil
}

func decodeRecordSizeLimit(body []byte) (Body, error) {
	r := wire.NewReader(body)
	limit, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("record_size_limit: %w", err)
	}
	if limit < RecordSizeLimitMin || limit > RecordSizeLimitMax {
		return nil, fmt.Errorf("record_size_limit: %d out of [%d, %d]", limit, RecordSizeLimitMin, RecordSizeLimitMax)
	}
	return &RecordSizeLimit{Limit: limit}, nil
}

// Cookie carries the opaque HelloRetryRequest cookie echoed by the
// client on its second ClientHello.
type Cookie struct {
	Data []byte
}

func (c *Cookie) Type() Type  { return TypeCookie }
func (c *Cookie) Length() int { return 2 + len(c.Data) }

func (c *Cookie) AppendTo(buf []byte) ([]byte, error) {
	return wire.PutVector16(buf, c.Data)
}

func decodeCookie(body []byte) (Body, error) {
	r := wire.NewReader(body)
	data, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("cookie: %w", err)
	}
	return &Cookie{Data: data}, nil
}

// QUICTransportParametersRaw holds the still-opaque body of a
// quic_transport_parameters extension (RFC 9001 §8.2). The typed
// (id, length, value) triples are decoded by pkg/tls13/quicparams,
// which depends on this package rather than the other way around;
// keeping the parse here would force every non-QUIC caller of
// pkg/tls13/extension to carry quicparams's VLI-triple decode logic.
type QUICTransportParametersRaw struct {
	Body []byte
}

func (q *QUICTransportParametersRaw) Type() Type  { return TypeQUICTransportParameters }
func (q *QUICTransportParametersRaw) Length() int { return len(q.Body) }

func (q *QUICTransportParametersRaw) AppendTo(buf []byte) ([]byte, error) {
	return append(buf, q.Body...), nil
}

func decodeQUICTransportParametersRaw(body []byte) (Body, error) {
	raw := make([]byte, len(body))
	copy(raw, body)
	return &QUICTransportParametersRaw{Body: raw}, nil
}
