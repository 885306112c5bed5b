// Package handshake implements the RFC 8446 §4 handshake message
// codec: ClientHello, ServerHello/HelloRetryRequest,
// EncryptedExtensions, Certificate, CertificateVerify, Finished,
// NewSessionTicket, EndOfEarlyData, and KeyUpdate.
package handshake

import "fmt"

// Type is the 1-byte HandshakeType.
type Type uint8

const (
	TypeClientHello        Type = 1
	TypeServerHello         Type = 2
	TypeNewSessionTicket    Type = 4
	TypeEndOfEarlyData      Type = 5
	TypeEncryptedExtensions Type = 8
	TypeCertificate         Type = 11
	TypeCertificateRequest  Type = 13
	TypeCertificateVerify   Type = 15
	TypeFinished            Type = 20
	TypeKeyUpdate           Type = 24

	// TypeMessageHash is never transmitted; it is the synthetic
	// transcript entry substituted for ClientHello1 after a
	// HelloRetryRequest (spec.md §3 "TranscriptHash").
	TypeMessageHash Type = 254
)

func (t Type) String() string {
	switch t {
	case TypeClientHello:
		return "client_hello"
	case TypeServerHello:
		return "server_hello"
	case TypeNewSessionTicket:
		return "new_session_ticket"
	case TypeEndOfEarlyData:
		return "end_of_early_data"
	case TypeEncryptedExtensions:
		return "encrypted_extensions"
	case TypeCertificate:
		return "certificate"
	case TypeCertificateRequest:
		return "certificate_request"
	case TypeCertificateVerify:
		return "certificate_verify"
	case TypeFinished:
		return "finished"
	case TypeKeyUpdate:
		return "key_update"
	case TypeMessageHash:
		return "message_hash"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// CipherSuite is the 2-byte TLS 1.3 cipher suite codepoint.
type CipherSuite uint16

const (
	TLS_AES_128_GCM_SHA256       CipherSuite = 0x1301
	TLS_AES_256_GCM_SHA384       CipherSuite = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 CipherSuite = 0x1303
)

func (c CipherSuite) Supported() bool {
	switch c {
	case TLS_AES_128_GCM_SHA256, TLS_AES_256_GCM_SHA384, TLS_CHACHA20_POLY1305_SHA256:
		return true
	default:
		return false
	}
}

// HashLen returns the transcript/HKDF hash output size for the suite.
func (c CipherSuite) HashLen() int {
	if c == TLS_AES_256_GCM_SHA384 {
		return 48
	}
	return 32
}

// KeyUpdateRequest is the 1-byte KeyUpdate.request_update value.
type KeyUpdateRequest uint8

const (
	KeyUpdateNotRequested KeyUpdateRequest = 0
	KeyUpdateRequested     KeyUpdateRequest = 1
)

// LegacyVersion is the fixed wire value every ClientHello/ServerHello
// carries in its legacy_version field for middlebox compatibility; the
// real negotiated version travels in the supported_versions extension.
const LegacyVersion uint16 = 0x0303

// helloRetryRequestRandom is the fixed SHA-256 of "HelloRetryRequest"
// (RFC 8446 §4.1.3) that distinguishes an HRR from an ordinary
// ServerHello sharing the same wire shape.
var helloRetryRequestRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// downgradeSentinelTLS12 is the server_random suffix RFC 8446 §4.1.3
// requires a TLS-1.3-capable server to avoid and a client to detect
// (spec.md §4.7 "Downgrade detection").
var downgradeSentinelTLS12 = [8]byte{0x44, 0x4F, 0x57, 0x4E, 0x47, 0x52, 0x44, 0x01}

// IsDowngradeSentinel reports whether the last 8 bytes of a 32-byte
// server_random match the TLS 1.2 downgrade sentinel.
func IsDowngradeSentinel(serverRandom [32]byte) bool {
	return [8]byte(serverRandom[24:32]) == downgradeSentinelTLS12
}
