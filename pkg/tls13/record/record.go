// Package record implements the RFC 8446 §5 record layer:
// TLSPlaintext/TLSCiphertext framing, handshake-message reassembly
// across record boundaries, AEAD sealing/opening with the
// sequence-number nonce construction, and record_size_limit
// enforcement.
package record

import (
	"crypto/cipher"
	"errors"
	"fmt"
)

// ContentType is the 1-byte TLSPlaintext.type field.
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeChangeCipherSpec:
		return "change_cipher_spec"
	case ContentTypeAlert:
		return "alert"
	case ContentTypeHandshake:
		return "handshake"
	case ContentTypeApplicationData:
		return "application_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// legacyRecordVersion is the fixed on-the-wire TLSPlaintext.legacy_record_version,
// frozen at {3, 3} for middlebox compatibility (RFC 8446 §5.1).
var legacyRecordVersion = [2]byte{0x03, 0x03}

const (
	// MaxPlaintextLen is RFC 8446 §5.1's 2^14 cap on
	// TLSPlaintext.fragment length.
	MaxPlaintextLen = 1 << 14
	// MaxCiphertextLen is RFC 8446 §5.2's cap on TLSCiphertext.length:
	// plaintext limit plus 1 content-type byte plus the AEAD's overhead.
	MaxCiphertextLen = MaxPlaintextLen + 256

	// DefaultRecordSizeLimit is used absent a negotiated
	// record_size_limit extension (spec.md §4.2).
	DefaultRecordSizeLimit = MaxPlaintextLen
)

var (
	ErrRecordOverflow      = errors.New("record: fragment exceeds negotiated size limit")
	ErrUnexpectedContent   = errors.New("record: unexpected content type for current epoch")
	ErrBadRecordMAC        = errors.New("record: AEAD authentication failed")
	ErrZeroLengthRecord    = errors.New("record: zero-length record body")
	ErrInvalidCCS          = errors.New("record: malformed change_cipher_spec")
)

// AppendPlaintextHeader appends a 5-byte TLSPlaintext header (type,
// legacy_record_version, length). It frames every record sent before a
// write key is installed (ClientHello, ServerHello, HelloRetryRequest,
// the compatibility change_cipher_spec) and is also the outer header,
// with type application_data, of every encrypted record (RFC 8446
// §5.1, §5.2, Appendix D.4).
func AppendPlaintextHeader(buf []byte, typ ContentType, fragmentLen int) []byte {
	buf = append(buf, byte(typ), legacyRecordVersion[0], legacyRecordVersion[1])
	return append(buf, byte(fragmentLen>>8), byte(fragmentLen))
}

// Direction distinguishes which traffic secret/key a Protector
// instance was derived for, so nonce construction never crosses wires
// between read and write.
type Direction uint8

const (
	DirectionWrite Direction = iota
	DirectionRead
)

// Protector seals/opens TLSInnerPlaintext records under one epoch's
// traffic keys (RFC 8446 §5.2-5.3). A new Protector is constructed for
// every key-schedule epoch transition (handshake keys, application
// keys, a KeyUpdate ratchet).
type Protector struct {
	aead cipher.AEAD
	iv   []byte
	seq  uint64
}

// NewProtector binds an AEAD instance and its static IV to a fresh
// per-epoch sequence number starting at zero (RFC 8446 §5.3: "each
// sequence number is set to zero at the beginning of a connection and
// whenever the key is changed").
func NewProtector(aead cipher.AEAD, iv []byte) *Protector {
	ivCopy := make([]byte, len(iv))
	copy(ivCopy, iv)
	return &Protector{aead: aead, iv: ivCopy}
}

// nonce constructs the per-record nonce per RFC 8446 §5.3: the 64-bit
// sequence number is padded on the left with zeros to IV length, then
// XORed into the static IV.
func (p *Protector) nonce() []byte {
	n := make([]byte, len(p.iv))
	copy(n, p.iv)
	for i := 0; i < 8; i++ {
		n[len(n)-1-i] ^= byte(p.seq >> (8 * i))
	}
	return n
}

// Seal encrypts one TLSInnerPlaintext (fragment || content_type ||
// zero-padding) into a TLSCiphertext.encrypted_record, authenticating
// additionalData (the 5-byte opaque record header, which is ignored by
// content but fixed in length per RFC 8446 §5.2). The sequence number
// advances on every call, matching QUIC's per-packet-number nonce
// scheme this package's nonce construction is adapted from.
func (p *Protector) Seal(innerPlaintext, additionalData []byte) []byte {
	out := p.aead.Seal(nil, p.nonce(), innerPlaintext, additionalData)
	p.seq++
	return out
}

// Open decrypts and authenticates one TLSCiphertext.encrypted_record.
func (p *Protector) Open(ciphertext, additionalData []byte) ([]byte, error) {
	plain, err := p.aead.Open(nil, p.nonce(), ciphertext, additionalData)
	if err != nil {
		return nil, ErrBadRecordMAC
	}
	p.seq++
	return plain, nil
}

// Overhead returns the AEAD's authentication tag size, needed to size
// a TLSCiphertext.length field before Seal has produced its output.
func (p *Protector) Overhead() int {
	return p.aead.Overhead()
}

// SequenceNumber returns the next sequence number Seal/Open will use —
// exposed so conn can detect the 2^64-1 exhaustion point that RFC 8446
// §5.3 requires triggering a KeyUpdate or connection close before.
func (p *Protector) SequenceNumber() uint64 {
	return p.seq
}

// StripInnerPlaintext removes the RFC 8446 §5.4 zero padding from a
// decrypted TLSInnerPlaintext and returns (content, ContentType). The
// real content type is the last non-zero byte; an all-zero plaintext
// (no real content type present) is a decode error.
func StripInnerPlaintext(plaintext []byte) ([]byte, ContentType, error) {
	i := len(plaintext) - 1
	for i >= 0 && plaintext[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, 0, ErrZeroLengthRecord
	}
	return plaintext[:i], ContentType(plaintext[i]), nil
}

// AppendInnerPlaintext builds fragment || content_type || zero_padding
// ready for Seal.
func AppendInnerPlaintext(fragment []byte, typ ContentType, zeroPadLen int) []byte {
	out := make([]byte, 0, len(fragment)+1+zeroPadLen)
	out = append(out, fragment...)
	out = append(out, byte(typ))
	out = append(out, make([]byte, zeroPadLen)...)
	return out
}

// IsCompatibilityCCS reports whether body is the single fixed byte
// {0x01} RFC 8446 Appendix D.4 permits a middlebox-compatibility
// change_cipher_spec record to carry. Any other change_cipher_spec
// payload is a protocol violation, not silently ignorable.
func IsCompatibilityCCS(body []byte) bool {
	return len(body) == 1 && body[0] == 0x01
}
