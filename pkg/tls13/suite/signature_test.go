package suite

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/yourusername/tls13/pkg/tls13/extension"
)

func TestPrivateKeySignerECDSARoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer := PrivateKeySigner{Key: priv}
	message := []byte("certificate verify content")

	sig, err := signer.Sign(extension.SigECDSASecp256r1SHA256, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := VerifyWithPublicKey(&priv.PublicKey, extension.SigECDSASecp256r1SHA256, message, sig); err != nil {
		t.Fatalf("VerifyWithPublicKey: %v", err)
	}

	if err := VerifyWithPublicKey(&priv.PublicKey, extension.SigECDSASecp256r1SHA256, []byte("tampered"), sig); err == nil {
		t.Fatal("expected verification failure for tampered message")
	}
}

func TestPrivateKeySignerEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer := PrivateKeySigner{Key: priv}
	message := []byte("certificate verify content")

	sig, err := signer.Sign(extension.SigEd25519, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := VerifyWithPublicKey(pub, extension.SigEd25519, message, sig); err != nil {
		t.Fatalf("VerifyWithPublicKey: %v", err)
	}
}

func TestPrivateKeySignerRejectsMismatchedKeyType(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer := PrivateKeySigner{Key: priv}
	if _, err := signer.Sign(extension.SigEd25519, []byte("x")); err == nil {
		t.Fatal("expected error signing ed25519 scheme with an ECDSA key")
	}
}
