package certprovider

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/yourusername/tls13/pkg/tls13/extension"
)

func generateTestCertificate(t *testing.T, domain string, key crypto.Signer) []byte {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: domain},
		DNSNames:     []string{domain},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	return der
}

func TestNewRejectsEmptyChain(t *testing.T) {
	key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if _, err := New(nil, key); err != ErrNoCertificate {
		t.Fatalf("err = %v, want ErrNoCertificate", err)
	}
}

func TestECDSAProviderSignsAndVerifies(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	der := generateTestCertificate(t, "example.com", key)

	p, err := New([][]byte{der}, key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !p.SupportsScheme(extension.SigECDSASecp256r1SHA256) {
		t.Fatal("expected P-256 key to support ecdsa_secp256r1_sha256")
	}
	if p.SupportsScheme(extension.SigEd25519) {
		t.Fatal("ECDSA key must not claim ed25519 support")
	}

	message := []byte("certificate verify content")
	sig, err := p.Sign(extension.SigECDSASecp256r1SHA256, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	leaf, err := p.Leaf()
	if err != nil {
		t.Fatalf("Leaf: %v", err)
	}
	pub := leaf.PublicKey.(*ecdsa.PublicKey)
	sum := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(pub, sum[:], sig) {
		t.Fatal("signature does not verify against the leaf's public key")
	}
}

func TestEd25519ProviderSupportsOnlyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "ed.example.com"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	p, err := New([][]byte{der}, priv)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.SupportsScheme(extension.SigEd25519) {
		t.Fatal("expected ed25519 key to support SigEd25519")
	}
	if p.SupportsScheme(extension.SigRSAPSSRSAESHA256) {
		t.Fatal("ed25519 key must not claim RSA-PSS support")
	}

	if _, err := p.Sign(extension.SigRSAPSSRSAESHA256, []byte("x")); err == nil {
		t.Fatal("expected Sign to reject an unsupported scheme")
	}
}

func TestChainBytesReturnsLeafFirst(t *testing.T) {
	key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	leaf := generateTestCertificate(t, "leaf.example.com", key)
	p, err := New([][]byte{leaf, []byte("fake-intermediate")}, key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chain := p.ChainBytes()
	if len(chain) != 2 || string(chain[0]) != string(leaf) {
		t.Fatal("ChainBytes must preserve leaf-first ordering")
	}
}
