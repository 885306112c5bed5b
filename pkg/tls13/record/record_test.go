package record

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/yourusername/tls13/pkg/tls13/handshake"
)

func newTestAEAD(t *testing.T) cipher.AEAD {
	t.Helper()
	block, err := aes.NewCipher(bytes.Repeat([]byte{0x11}, 16))
	if err != nil {
		t.Fatal(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatal(err)
	}
	return aead
}

func TestProtectorSealOpenRoundTrip(t *testing.T) {
	aead := newTestAEAD(t)
	iv := bytes.Repeat([]byte{0x22}, 12)

	writer := NewProtector(aead, iv)
	reader := NewProtector(aead, iv)

	inner := AppendInnerPlaintext([]byte("hello record layer"), ContentTypeApplicationData, 0)
	ciphertext := writer.Seal(inner, []byte{0x17, 0x03, 0x03, 0x00, 0x20})

	plain, err := reader.Open(ciphertext, []byte{0x17, 0x03, 0x03, 0x00, 0x20})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	content, typ, err := StripInnerPlaintext(plain)
	if err != nil {
		t.Fatalf("StripInnerPlaintext: %v", err)
	}
	if typ != ContentTypeApplicationData || !bytes.Equal(content, []byte("hello record layer")) {
		t.Fatalf("got (%v, %q)", typ, content)
	}
}

func TestProtectorSequenceNumberAdvancesNonceEachRecord(t *testing.T) {
	aead := newTestAEAD(t)
	iv := bytes.Repeat([]byte{0x33}, 12)
	writer := NewProtector(aead, iv)

	inner := AppendInnerPlaintext([]byte("x"), ContentTypeApplicationData, 0)
	first := writer.Seal(inner, nil)
	second := writer.Seal(inner, nil)
	if bytes.Equal(first, second) {
		t.Fatal("identical plaintexts at different sequence numbers must produce different ciphertexts")
	}
	if writer.SequenceNumber() != 2 {
		t.Fatalf("SequenceNumber = %d, want 2", writer.SequenceNumber())
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	aead := newTestAEAD(t)
	iv := bytes.Repeat([]byte{0x44}, 12)
	writer := NewProtector(aead, iv)
	reader := NewProtector(aead, iv)

	inner := AppendInnerPlaintext([]byte("data"), ContentTypeApplicationData, 0)
	ciphertext := writer.Seal(inner, []byte{0x01})
	ciphertext[0] ^= 0xFF

	if _, err := reader.Open(ciphertext, []byte{0x01}); err == nil {
		t.Fatal("expected authentication failure for tampered ciphertext")
	}
}

func TestProtectorOverheadMatchesAEADTagSize(t *testing.T) {
	aead := newTestAEAD(t)
	p := NewProtector(aead, bytes.Repeat([]byte{0x55}, 12))
	if p.Overhead() != aead.Overhead() {
		t.Fatalf("Overhead = %d, want %d", p.Overhead(), aead.Overhead())
	}
}

func TestStripInnerPlaintextRejectsAllZero(t *testing.T) {
	if _, _, err := StripInnerPlaintext(make([]byte, 8)); err == nil {
		t.Fatal("expected error for all-zero plaintext")
	}
}

func TestIsCompatibilityCCS(t *testing.T) {
	if !IsCompatibilityCCS([]byte{0x01}) {
		t.Fatal("expected {0x01} to be a valid compatibility CCS")
	}
	if IsCompatibilityCCS([]byte{0x02}) {
		t.Fatal("did not expect {0x02} to be a valid compatibility CCS")
	}
	if IsCompatibilityCCS([]byte{0x01, 0x01}) {
		t.Fatal("did not expect a 2-byte body to be a valid compatibility CCS")
	}
}

func TestReassemblerSplitsMessageAcrossFeeds(t *testing.T) {
	finished := &handshake.Finished{VerifyData: bytes.Repeat([]byte{0x55}, 32)}
	buf, err := finished.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	var r Reassembler
	r.Feed(buf[:2])
	if _, _, ok, err := r.Next(); ok || err != nil {
		t.Fatalf("expected no message yet, got ok=%v err=%v", ok, err)
	}

	r.Feed(buf[2:])
	typ, body, ok, err := r.Next()
	if err != nil || !ok {
		t.Fatalf("expected a complete message, got ok=%v err=%v", ok, err)
	}
	if typ != handshake.TypeFinished {
		t.Fatalf("type = %v", typ)
	}
	decoded, err := handshake.UnmarshalFinished(body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded.VerifyData, finished.VerifyData) {
		t.Fatal("verify_data mismatch after reassembly")
	}
	if r.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", r.Pending())
	}
}

func TestReassemblerHandlesTwoMessagesInOneFeed(t *testing.T) {
	a, _ := (&handshake.EndOfEarlyData{}).Marshal()
	b, _ := (&handshake.Finished{VerifyData: bytes.Repeat([]byte{0x01}, 32)}).Marshal()

	var r Reassembler
	r.Feed(append(append([]byte{}, a...), b...))

	typ1, _, ok, err := r.Next()
	if err != nil || !ok || typ1 != handshake.TypeEndOfEarlyData {
		t.Fatalf("first message: typ=%v ok=%v err=%v", typ1, ok, err)
	}
	typ2, _, ok, err := r.Next()
	if err != nil || !ok || typ2 != handshake.TypeFinished {
		t.Fatalf("second message: typ=%v ok=%v err=%v", typ2, ok, err)
	}
}

func TestFragmentForRecordsRespectsLimit(t *testing.T) {
	msg := bytes.Repeat([]byte{0x01}, 100)
	frags := FragmentForRecords(msg, 30)
	if len(frags) != 4 {
		t.Fatalf("got %d fragments, want 4", len(frags))
	}
	var rebuilt []byte
	for _, f := range frags {
		if len(f) > 30 {
			t.Fatalf("fragment exceeds max size: %d", len(f))
		}
		rebuilt = append(rebuilt, f...)
	}
	if !bytes.Equal(rebuilt, msg) {
		t.Fatal("fragments do not reassemble to the original message")
	}
}
