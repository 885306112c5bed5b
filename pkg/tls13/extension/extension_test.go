package extension

import (
	"bytes"
	"testing"

	"github.com/yourusername/tls13/pkg/tls13/wire"
)

func roundTrip(t *testing.T, ctx Context, body Body) Body {
	t.Helper()

	buf, err := body.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	if len(buf) != body.Length() {
		t.Fatalf("Length() = %d, AppendTo wrote %d bytes", body.Length(), len(buf))
	}

	decoded, err := Decode(ctx, body.Type(), buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return decoded
}

func TestKeyShareClientHelloRoundTrip(t *testing.T) {
	ks := &KeyShare{
		Ctx: ContextClientHello,
		Entries: []KeyShareEntry{
			{Group: GroupX25519, KeyExchange: bytes.Repeat([]byte{0x11}, 32)},
		},
	}
	decoded := roundTrip(t, ContextClientHello, ks).(*KeyShare)
	if len(decoded.Entries) != 1 || decoded.Entries[0].Group != GroupX25519 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestKeyShareHRRIsJustGroup(t *testing.T) {
	ks := &KeyShare{Ctx: ContextHelloRetryRequest, SelectedGroup: GroupX25519}
	if ks.Length() != 2 {
		t.Fatalf("HRR key_share length = %d, want 2", ks.Length())
	}
	decoded := roundTrip(t, ContextHelloRetryRequest, ks).(*KeyShare)
	if decoded.SelectedGroup != GroupX25519 {
		t.Fatalf("decoded group = %v", decoded.SelectedGroup)
	}
}

func TestSupportedVersionsServerIsFixed(t *testing.T) {
	sv := &SupportedVersions{Ctx: ContextServerHello}
	buf, err := sv.AppendTo(nil)
	if err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	if !bytes.Equal(buf, []byte{0x03, 0x04}) {
		t.Fatalf("ServerHello supported_versions = %x, want 0304", buf)
	}
}

func TestPreSharedKeyClientHelloBinderOffset(t *testing.T) {
	psk := &PreSharedKey{
		Ctx: ContextClientHello,
		Identities: []PSKIdentity{
			{Identity: []byte("ticket-one"), ObfuscatedTicketAge: 0x12345678},
		},
		Binders: [][]byte{bytes.Repeat([]byte{0xAA}, 32)},
	}

	idBytes, err := psk.IdentitiesBytes()
	if err != nil {
		t.Fatalf("IdentitiesBytes: %v", err)
	}
	binderBytes, err := psk.BindersBytes()
	if err != nil {
		t.Fatalf("BindersBytes: %v", err)
	}

	full := append(append([]byte{}, idBytes...), binderBytes...)
	if full2, err := psk.AppendTo(nil); err != nil || !bytes.Equal(full, full2) {
		t.Fatalf("AppendTo disagrees with IdentitiesBytes+BindersBytes: %v", err)
	}

	decoded, err := Decode(ContextClientHello, TypePreSharedKey, full)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := decoded.(*PreSharedKey)
	if len(got.Identities) != 1 || !bytes.Equal(got.Identities[0].Identity, []byte("ticket-one")) {
		t.Fatalf("decoded identities = %+v", got.Identities)
	}
	if !bytes.Equal(got.Binders[0], psk.Binders[0]) {
		t.Fatalf("decoded binder mismatch")
	}
}

func TestUnknownExtensionPreservedNotReemitted(t *testing.T) {
	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	decoded, err := Decode(ContextClientHello, Type(0x0A0A), raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	u, ok := decoded.(*Unknown)
	if !ok {
		t.Fatalf("expected *Unknown, got %T", decoded)
	}
	if !bytes.Equal(u.Raw, raw) {
		t.Fatalf("Unknown.Raw = %x, want %x", u.Raw, raw)
	}
	if _, err := u.AppendTo(nil); err == nil {
		t.Fatal("AppendTo on Unknown must fail")
	}
}

func TestEncodeListOmitsUnknown(t *testing.T) {
	exts := []Body{
		&RecordSizeLimit{Limit: 16385},
		&Unknown{ExtType: Type(0x0A0A), Raw: []byte{1, 2, 3}},
	}
	buf, err := EncodeList(nil, exts)
	if err != nil {
		t.Fatalf("EncodeList: %v", err)
	}

	r := wire.NewReader(buf)
	decodedList, err := DecodeList(ContextEncryptedExtensions, r)
	if err != nil {
		t.Fatalf("DecodeList: %v", err)
	}
	if len(decodedList) != 1 {
		t.Fatalf("decoded %d extensions, want 1 (unknown must be omitted)", len(decodedList))
	}
	if decodedList[0].Type() != TypeRecordSizeLimit {
		t.Fatalf("decoded type = %v", decodedList[0].Type())
	}
}

func TestRecordSizeLimitBounds(t *testing.T) {
	_, err := decodeRecordSizeLimit(wire.PutUint16(nil, 10))
	if err == nil {
		t.Fatal("expected error for below-minimum record_size_limit")
	}
}
