package keyschedule

import (
	"bytes"
	"testing"

	"github.com/yourusername/tls13/pkg/tls13/handshake"
	"github.com/yourusername/tls13/pkg/tls13/suite"
)

func TestFullLadderWithoutPSKProducesDistinctSecrets(t *testing.T) {
	s, err := suite.ByID(handshake.TLS_AES_128_GCM_SHA256)
	if err != nil {
		t.Fatal(err)
	}

	sch := New(s)
	sch.DeriveHandshakeSecret(bytes.Repeat([]byte{0x42}, 32))
	sch.DeriveHandshakeTrafficSecrets(bytes.Repeat([]byte{0x01}, s.HashSize()))
	sch.DeriveMasterSecret()
	sch.DeriveApplicationTrafficSecrets(bytes.Repeat([]byte{0x02}, s.HashSize()))
	sch.DeriveResumptionMasterSecret(bytes.Repeat([]byte{0x03}, s.HashSize()))

	secrets := [][]byte{
		sch.ClientHandshakeTrafficSecret,
		sch.ServerHandshakeTrafficSecret,
		sch.ClientApplicationTrafficSecret,
		sch.ServerApplicationTrafficSecret,
		sch.ExporterMasterSecret,
		sch.ResumptionMasterSecret,
	}
	for i, a := range secrets {
		if len(a) != s.HashSize() {
			t.Fatalf("secret %d has length %d, want %d", i, len(a), s.HashSize())
		}
		for j, b := range secrets {
			if i != j && bytes.Equal(a, b) {
				t.Fatalf("secrets %d and %d are unexpectedly identical", i, j)
			}
		}
	}
}

func TestDeriveTrafficKeysLengthsMatchSuite(t *testing.T) {
	s, err := suite.ByID(handshake.TLS_CHACHA20_POLY1305_SHA256)
	if err != nil {
		t.Fatal(err)
	}
	sch := New(s)
	secret := bytes.Repeat([]byte{0xAA}, s.HashSize())
	keys := sch.DeriveTrafficKeys(secret)
	if len(keys.Key) != s.KeyLen {
		t.Fatalf("key length = %d, want %d", len(keys.Key), s.KeyLen)
	}
	if len(keys.IV) != s.IVLen {
		t.Fatalf("iv length = %d, want %d", len(keys.IV), s.IVLen)
	}
}

func TestUpdateTrafficSecretChangesValue(t *testing.T) {
	s, err := suite.ByID(handshake.TLS_AES_128_GCM_SHA256)
	if err != nil {
		t.Fatal(err)
	}
	sch := New(s)
	secret := bytes.Repeat([]byte{0x10}, s.HashSize())
	updated := sch.UpdateTrafficSecret(secret)
	if bytes.Equal(secret, updated) {
		t.Fatal("KeyUpdate ratchet must change the traffic secret")
	}
	updatedAgain := sch.UpdateTrafficSecret(updated)
	if bytes.Equal(updated, updatedAgain) {
		t.Fatal("a second ratchet must change the secret again")
	}
}

func TestVerifyDataRoundTripAndTamperDetection(t *testing.T) {
	s, err := suite.ByID(handshake.TLS_AES_128_GCM_SHA256)
	if err != nil {
		t.Fatal(err)
	}
	sch := New(s)
	handshakeSecret := bytes.Repeat([]byte{0x20}, s.HashSize())
	finishedKey := sch.FinishedKey(handshakeSecret)
	transcript := []byte("client_hello..encrypted_extensions")

	verifyData := sch.ComputeVerifyData(finishedKey, transcript)
	if !sch.VerifyData(finishedKey, transcript, verifyData) {
		t.Fatal("VerifyData should accept its own ComputeVerifyData output")
	}
	if sch.VerifyData(finishedKey, []byte("different transcript"), verifyData) {
		t.Fatal("VerifyData should reject a mismatched transcript")
	}
}

func TestBinderRoundTrip(t *testing.T) {
	s, err := suite.ByID(handshake.TLS_AES_128_GCM_SHA256)
	if err != nil {
		t.Fatal(err)
	}
	sch := New(s)
	sch.DeriveEarlySecret(bytes.Repeat([]byte{0x30}, s.HashSize()))
	sch.DeriveBinderKey(true)

	truncated := []byte("client_hello up to but excluding binders")
	binder := sch.ComputeBinder(truncated)
	if !sch.VerifyBinder(truncated, binder) {
		t.Fatal("VerifyBinder should accept its own ComputeBinder output")
	}
	if sch.VerifyBinder([]byte("tampered prefix"), binder) {
		t.Fatal("VerifyBinder should reject a mismatched prefix")
	}
}

func TestBinderKeyDependsOnPSK(t *testing.T) {
	s, err := suite.ByID(handshake.TLS_AES_128_GCM_SHA256)
	if err != nil {
		t.Fatal(err)
	}
	withPSK := New(s)
	withPSK.DeriveEarlySecret(bytes.Repeat([]byte{0x01}, s.HashSize()))
	withPSK.DeriveBinderKey(false)

	withOtherPSK := New(s)
	withOtherPSK.DeriveEarlySecret(bytes.Repeat([]byte{0x02}, s.HashSize()))
	withOtherPSK.DeriveBinderKey(false)

	if bytes.Equal(withPSK.BinderKey, withOtherPSK.BinderKey) {
		t.Fatal("different PSKs must yield different binder keys")
	}
}
