package handshake

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/yourusername/tls13/pkg/tls13/extension"
)

func TestClientHelloRoundTrip(t *testing.T) {
	ch := &ClientHello{
		LegacySessionID: []byte{1, 2, 3, 4},
		CipherSuites:    []CipherSuite{TLS_AES_128_GCM_SHA256, TLS_AES_256_GCM_SHA384},
		Extensions: []extension.Body{
			&extension.SupportedVersions{Ctx: extension.ContextClientHello, Versions: []uint16{extension.VersionTLS13}},
			&extension.KeyShare{
				Ctx: extension.ContextClientHello,
				Entries: []extension.KeyShareEntry{
					{Group: extension.GroupX25519, KeyExchange: bytes.Repeat([]byte{0x42}, 32)},
				},
			},
		},
	}
	for i := range ch.Random {
		ch.Random[i] = byte(i)
	}

	buf, err := ch.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	typ, body, n, err := SplitOne(buf)
	if err != nil {
		t.Fatalf("SplitOne: %v", err)
	}
	if typ != TypeClientHello || n != len(buf) {
		t.Fatalf("SplitOne = (%v, %d), want (client_hello, %d)", typ, n, len(buf))
	}

	decoded, err := UnmarshalClientHello(body)
	if err != nil {
		t.Fatalf("UnmarshalClientHello: %v", err)
	}
	if decoded.Random != ch.Random {
		t.Fatalf("random mismatch")
	}
	if !bytes.Equal(decoded.LegacySessionID, ch.LegacySessionID) {
		t.Fatalf("session id mismatch")
	}
	if len(decoded.CipherSuites) != 2 || decoded.CipherSuites[0] != TLS_AES_128_GCM_SHA256 {
		t.Fatalf("cipher suites mismatch: %+v", decoded.CipherSuites)
	}
	if len(decoded.Extensions) != 2 {
		t.Fatalf("expected 2 extensions, got %d", len(decoded.Extensions))
	}
}

func TestClientHelloPSKBinderOffsetLocatesRealBinderBytes(t *testing.T) {
	placeholder := make([]byte, sha256.Size)
	ch := &ClientHello{
		CipherSuites: []CipherSuite{TLS_AES_128_GCM_SHA256},
		Extensions: []extension.Body{
			&extension.SupportedVersions{Ctx: extension.ContextClientHello, Versions: []uint16{extension.VersionTLS13}},
			&extension.PreSharedKey{
				Ctx:        extension.ContextClientHello,
				Identities: []extension.PSKIdentity{{Identity: []byte("ticket"), ObfuscatedTicketAge: 7}},
				Binders:    [][]byte{placeholder},
			},
		},
	}

	buf, bindersOffset, err := ch.MarshalForBinding()
	if err != nil {
		t.Fatalf("MarshalForBinding: %v", err)
	}
	if bindersOffset < 0 {
		t.Fatal("expected a binders offset when a pre_shared_key extension is present")
	}

	// Binders vector is: 2-byte list length + (1-byte entry length + 32-byte HMAC).
	if got := buf[bindersOffset : bindersOffset+2]; !bytes.Equal(got, []byte{0x00, 0x21}) {
		t.Fatalf("binders list length prefix = %x, want 0021", got)
	}
	entryLen := buf[bindersOffset+2]
	if entryLen != sha256.Size {
		t.Fatalf("binder entry length = %d, want %d", entryLen, sha256.Size)
	}

	// Patch in a "real" binder and confirm decode sees it, without
	// touching anything else in the message.
	real := bytes.Repeat([]byte{0xAB}, sha256.Size)
	copy(buf[bindersOffset+3:], real)

	_, body, _, err := SplitOne(buf)
	if err != nil {
		t.Fatalf("SplitOne: %v", err)
	}
	decoded, err := UnmarshalClientHello(body)
	if err != nil {
		t.Fatalf("UnmarshalClientHello: %v", err)
	}
	psk := decoded.Extensions[len(decoded.Extensions)-1].(*extension.PreSharedKey)
	if !bytes.Equal(psk.Binders[0], real) {
		t.Fatalf("decoded binder = %x, want %x", psk.Binders[0], real)
	}
}

func TestServerHelloVsHelloRetryRequest(t *testing.T) {
	hrr := NewHelloRetryRequest(nil, TLS_AES_128_GCM_SHA256, []extension.Body{
		&extension.KeyShare{Ctx: extension.ContextHelloRetryRequest, SelectedGroup: extension.GroupX25519},
		&extension.SupportedVersions{Ctx: extension.ContextHelloRetryRequest},
	})
	if !hrr.IsHelloRetryRequest() {
		t.Fatal("expected HelloRetryRequest sentinel")
	}

	buf, err := hrr.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, body, _, err := SplitOne(buf)
	if err != nil {
		t.Fatalf("SplitOne: %v", err)
	}
	if !PeekIsHelloRetryRequest(body) {
		t.Fatal("PeekIsHelloRetryRequest should detect the sentinel from raw bytes")
	}

	decoded, err := UnmarshalServerHello(body, extension.ContextHelloRetryRequest)
	if err != nil {
		t.Fatalf("UnmarshalServerHello: %v", err)
	}
	if !decoded.IsHelloRetryRequest() {
		t.Fatal("decoded ServerHello should report IsHelloRetryRequest")
	}
}

func TestFinishedRoundTrip(t *testing.T) {
	f := &Finished{VerifyData: bytes.Repeat([]byte{0x7A}, 32)}
	buf, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	typ, body, _, err := SplitOne(buf)
	if err != nil {
		t.Fatalf("SplitOne: %v", err)
	}
	if typ != TypeFinished {
		t.Fatalf("type = %v", typ)
	}
	decoded, err := UnmarshalFinished(body)
	if err != nil {
		t.Fatalf("UnmarshalFinished: %v", err)
	}
	if !bytes.Equal(decoded.VerifyData, f.VerifyData) {
		t.Fatal("verify_data mismatch")
	}
}

func TestKeyUpdateRejectsInvalidValue(t *testing.T) {
	if _, err := UnmarshalKeyUpdate([]byte{2}); err == nil {
		t.Fatal("expected error for invalid request_update value")
	}
}

func TestNewSessionTicketRoundTrip(t *testing.T) {
	nst := &NewSessionTicket{
		LifetimeSeconds: 7200,
		AgeAdd:          0x12345678,
		Nonce:           []byte{0x01},
		Ticket:          bytes.Repeat([]byte{0x09}, 16),
		Extensions: []extension.Body{
			&extension.EarlyData{Ctx: extension.ContextNewSessionTicket, MaxEarlyDataSize: 16384},
		},
	}
	buf, err := nst.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	_, body, _, err := SplitOne(buf)
	if err != nil {
		t.Fatalf("SplitOne: %v", err)
	}
	decoded, err := UnmarshalNewSessionTicket(body)
	if err != nil {
		t.Fatalf("UnmarshalNewSessionTicket: %v", err)
	}
	if decoded.LifetimeSeconds != nst.LifetimeSeconds || decoded.AgeAdd != nst.AgeAdd {
		t.Fatalf("metadata mismatch: %+v", decoded)
	}
	if !bytes.Equal(decoded.Ticket, nst.Ticket) {
		t.Fatal("ticket mismatch")
	}
}

func TestDowngradeSentinelDetection(t *testing.T) {
	var random [32]byte
	copy(random[24:], []byte{0x44, 0x4F, 0x57, 0x4E, 0x47, 0x52, 0x44, 0x01})
	if !IsDowngradeSentinel(random) {
		t.Fatal("expected downgrade sentinel to be detected")
	}

	random[31] = 0x00
	if IsDowngradeSentinel(random) {
		t.Fatal("did not expect downgrade sentinel")
	}
}
