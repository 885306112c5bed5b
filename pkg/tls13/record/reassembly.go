package record

import (
	"github.com/yourusername/tls13/pkg/tls13/handshake"
)

// Reassembler accumulates handshake-content-type record fragments and
// yields complete handshake messages as soon as enough bytes have
// arrived, since RFC 8446 §5.1 allows a single handshake message to
// span several records and a single record to carry several messages.
type Reassembler struct {
	buf []byte
}

// Feed appends one record's worth of handshake-content bytes.
func (r *Reassembler) Feed(fragment []byte) {
	r.buf = append(r.buf, fragment...)
}

// Next extracts one complete handshake message (type, body) from the
// buffered bytes, if enough have arrived; ok is false when more input
// is needed rather than when an error occurred.
func (r *Reassembler) Next() (typ handshake.Type, body []byte, ok bool, err error) {
	if len(r.buf) < 4 {
		return 0, nil, false, nil
	}
	t, b, n, splitErr := handshake.SplitOne(r.buf)
	if splitErr != nil {
		// Truncated: wait for more bytes rather than failing. The
		// claimed message length is not capped, so err is always nil.
		return 0, nil, false, nil
	}
	r.buf = r.buf[n:]
	return t, b, true, nil
}

// Pending reports how many bytes are buffered waiting for the rest of
// a message to arrive.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// FragmentForRecords splits an encoded handshake message into one or
// more fragments, each no larger than maxFragment, for the caller to
// wrap into separate TLSPlaintext/TLSInnerPlaintext records (RFC 8446
// §5.1 permits, but does not require, splitting a single handshake
// message across records — callers do this to respect a negotiated
// record_size_limit).
func FragmentForRecords(message []byte, maxFragment int) [][]byte {
	if maxFragment <= 0 {
		return [][]byte{message}
	}
	var frags [][]byte
	for len(message) > 0 {
		n := maxFragment
		if n > len(message) {
			n = len(message)
		}
		frags = append(frags, message[:n])
		message = message[n:]
	}
	if len(frags) == 0 {
		frags = [][]byte{{}}
	}
	return frags
}
