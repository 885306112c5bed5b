// Package certprovider is the certificate-chain and private-key
// collaborator spec.md §6 asks the core to call out to:
// sign(scheme, data) and chain_bytes(). Validating a peer's chain
// against a trust store is explicitly the caller's responsibility
// (spec.md §1 Non-goals) — this package only ever signs with, or
// reports, its own chain.
package certprovider

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/suite"
)

var (
	ErrNoCertificate  = errors.New("certprovider: no certificate configured")
	ErrUnsupportedKey = errors.New("certprovider: unsupported private key type")
)

// Provider binds a DER-encoded X.509 chain to the private key for its
// leaf certificate, and signs CertificateVerify content on request.
type Provider struct {
	chainDER [][]byte
	signer   suite.PrivateKeySigner
	schemes  []extension.SignatureScheme
}

// New builds a Provider directly from an already-parsed chain (leaf
// first) and a crypto.Signer for the leaf's private key.
func New(chainDER [][]byte, key crypto.Signer) (*Provider, error) {
	if len(chainDER) == 0 {
		return nil, ErrNoCertificate
	}
	schemes, err := schemesFor(key.Public())
	if err != nil {
		return nil, err
	}
	return &Provider{
		chainDER: chainDER,
		signer:   suite.PrivateKeySigner{Key: key},
		schemes:  schemes,
	}, nil
}

// LoadX509KeyPair loads a PEM-encoded certificate chain and matching
// private key the way crypto/tls.LoadX509KeyPair does, and adapts the
// result into a Provider. Unlike the teacher's CertificateManager this
// does no ACME issuance or disk-based renewal bookkeeping (spec.md §1
// places key loading out of scope) — it is the synchronous
// load-then-sign half of that collaborator, nothing more.
func LoadX509KeyPair(certPEM, keyPEM []byte) (*Provider, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("certprovider: loading key pair: %w", err)
	}
	signer, ok := cert.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, ErrUnsupportedKey
	}
	return New(cert.Certificate, signer)
}

// ChainBytes returns the DER-encoded certificate chain, leaf first, as
// spec.md §6's chain_bytes() external interface.
func (p *Provider) ChainBytes() [][]byte {
	return p.chainDER
}

// SupportsScheme reports whether this Provider's key type can produce
// a CertificateVerify signature under scheme — callers use this to
// pick from the peer's signature_algorithms list (spec.md §4.6
// "Parameter selection").
func (p *Provider) SupportsScheme(scheme extension.SignatureScheme) bool {
	for _, s := range p.schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// Sign produces a CertificateVerify signature over message, which the
// caller has already framed with RFC 8446 §4.4.3's context string and
// double hash.
func (p *Provider) Sign(scheme extension.SignatureScheme, message []byte) ([]byte, error) {
	if !p.SupportsScheme(scheme) {
		return nil, fmt.Errorf("%w: 0x%04x", suite.ErrUnsupportedSignatureScheme, uint16(scheme))
	}
	return p.signer.Sign(scheme, message)
}

// Leaf parses and returns the leaf (first) certificate in the chain,
// for the caller-side validate(chain, server_name) step spec.md §6
// names as the core's one call-out into PKI-aware code.
func (p *Provider) Leaf() (*x509.Certificate, error) {
	return x509.ParseCertificate(p.chainDER[0])
}

// schemesFor reports which SignatureScheme values a public key of this
// type can be used with, mirroring RFC 8446 §4.2.3's key-type-to-scheme
// binding (the same dispatch suite.PrivateKeySigner.Sign enforces).
func schemesFor(pub crypto.PublicKey) ([]extension.SignatureScheme, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return []extension.SignatureScheme{
			extension.SigRSAPSSRSAESHA256,
			extension.SigRSAPSSRSAESHA384,
			extension.SigRSAPSSRSAESHA512,
		}, nil
	case *ecdsa.PublicKey:
		switch k.Curve.Params().BitSize {
		case 256:
			return []extension.SignatureScheme{extension.SigECDSASecp256r1SHA256}, nil
		case 384:
			return []extension.SignatureScheme{extension.SigECDSASecp384r1SHA384}, nil
		default:
			return nil, fmt.Errorf("%w: ecdsa curve with %d-bit field", ErrUnsupportedKey, k.Curve.Params().BitSize)
		}
	case ed25519.PublicKey:
		return []extension.SignatureScheme{extension.SigEd25519}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
}
