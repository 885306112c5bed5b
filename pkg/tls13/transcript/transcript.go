// Package transcript implements the running handshake transcript hash
// (RFC 8446 §4.4.1), including the message_hash(CH1) substitution a
// HelloRetryRequest triggers.
package transcript

import (
	"hash"

	"github.com/yourusername/tls13/pkg/tls13/handshake"
)

// Hash accumulates every handshake message exchanged so far, in wire
// order. Sum() returns Transcript-Hash(M1..Mn), the value consumed by
// the key schedule and by Finished/CertificateVerify.
//
// Messages are kept verbatim (rather than folded into a running
// hash.Hash as they arrive) specifically so ReplaceFirstClientHello
// can retroactively substitute the first ClientHello's bytes for its
// message_hash once a HelloRetryRequest makes that necessary — TLS
// 1.3's one case where an earlier transcript entry must change after
// the fact.
type Hash struct {
	newHash  func() hash.Hash
	messages [][]byte
}

// New starts a fresh transcript for the given suite hash constructor.
func New(newHash func() hash.Hash) *Hash {
	return &Hash{newHash: newHash}
}

// Clone returns an independent copy of the transcript's current state,
// so a caller can fork off a side computation (e.g. the
// CertificateVerify content covers the transcript up to but not
// including CertificateVerify itself) without disturbing the original.
func (t *Hash) Clone() *Hash {
	clone := &Hash{newHash: t.newHash, messages: make([][]byte, len(t.messages))}
	copy(clone.messages, t.messages)
	return clone
}

// AddMessage feeds one full handshake message (4-byte header + body)
// into the transcript, in wire order.
func (t *Hash) AddMessage(raw []byte) {
	t.messages = append(t.messages, append([]byte(nil), raw...))
}

// ReplaceFirstClientHello substitutes the first message added (assumed
// to be the initial ClientHello) with its RFC 8446 §4.4.1 message_hash
// entry:
//
//	Hash(message_hash ||        /* Handshake type */
//	     00 00 Hash.length  ||  /* Handshake message length (bytes) */
//	     Hash(ClientHello1) )
//
// Call this once per HelloRetryRequest, before the second ClientHello
// is added. Only the first entry is replaced, so the HelloRetryRequest
// itself may already have been added.
func (t *Hash) ReplaceFirstClientHello() {
	if len(t.messages) == 0 {
		return
	}
	h := t.newHash()
	h.Write(t.messages[0])
	sum := h.Sum(nil)

	synthetic := make([]byte, 0, 4+len(sum))
	synthetic = append(synthetic, byte(handshake.TypeMessageHash), 0, 0, byte(len(sum)))
	synthetic = append(synthetic, sum...)

	t.messages[0] = synthetic
}

// Sum returns Transcript-Hash(M1..Mn) over every message added so far.
// The accumulator is unaffected; callers may keep adding messages and
// call Sum again later.
func (t *Hash) Sum() []byte {
	h := t.newHash()
	for _, m := range t.messages {
		h.Write(m)
	}
	return h.Sum(nil)
}
