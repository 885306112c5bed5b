package suite

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/extension"
)

var ErrUnsupportedSignatureScheme = errors.New("suite: unsupported signature scheme")

// Signer produces a CertificateVerify signature over a message that has
// already been framed with the RFC 8446 §4.4.3 context string and
// double hash (the caller, not Signer, builds that content — Signer
// only wraps the private key operation).
type Signer interface {
	Sign(scheme extension.SignatureScheme, message []byte) ([]byte, error)
}

// Verifier checks a CertificateVerify signature against a public key.
type Verifier interface {
	Verify(scheme extension.SignatureScheme, message, signature []byte) error
}

// PrivateKeySigner adapts a crypto.Signer (as produced by
// crypto/tls.X509KeyPair or an ecdsa/ed25519/rsa private key) into
// Signer, dispatching on SignatureScheme the way RFC 8446 §4.2.3
// requires: RSA-PSS for rsa_pss_* schemes, raw Ed25519 for ed25519, and
// ASN.1 ECDSA for the ecdsa_* schemes.
type PrivateKeySigner struct {
	Key crypto.Signer
}

func (s PrivateKeySigner) Sign(scheme extension.SignatureScheme, message []byte) ([]byte, error) {
	switch scheme {
	case extension.SigRSAPSSRSAESHA256, extension.SigRSAPSSRSAESHA384, extension.SigRSAPSSRSAESHA512:
		h, opts := pssOptsFor(scheme)
		digest := h.New()
		digest.Write(message)
		return s.Key.Sign(rand.Reader, digest.Sum(nil), opts)

	case extension.SigECDSASecp256r1SHA256, extension.SigECDSASecp384r1SHA384:
		h := hashFor(scheme)
		digest := h.New()
		digest.Write(message)
		if _, ok := s.Key.Public().(*ecdsa.PublicKey); !ok {
			return nil, fmt.Errorf("suite: signature scheme 0x%04x requires an ECDSA key", uint16(scheme))
		}
		return s.Key.Sign(rand.Reader, digest.Sum(nil), h)

	case extension.SigEd25519:
		if _, ok := s.Key.Public().(ed25519.PublicKey); !ok {
			return nil, fmt.Errorf("suite: ed25519 scheme requires an Ed25519 key")
		}
		// Ed25519 signs the message directly; crypto.Hash(0) signals
		// "no prehash" to the standard library's ed25519.PrivateKey.
		return s.Key.Sign(rand.Reader, message, crypto.Hash(0))

	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnsupportedSignatureScheme, uint16(scheme))
	}
}

// VerifyWithPublicKey checks a CertificateVerify signature against a
// certificate's parsed public key.
func VerifyWithPublicKey(pub crypto.PublicKey, scheme extension.SignatureScheme, message, signature []byte) error {
	switch scheme {
	case extension.SigRSAPSSRSAESHA256, extension.SigRSAPSSRSAESHA384, extension.SigRSAPSSRSAESHA512:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("suite: signature scheme 0x%04x requires an RSA public key", uint16(scheme))
		}
		h, opts := pssOptsFor(scheme)
		digest := h.New()
		digest.Write(message)
		return rsa.VerifyPSS(rsaPub, h, digest.Sum(nil), signature, opts)

	case extension.SigECDSASecp256r1SHA256, extension.SigECDSASecp384r1SHA384:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("suite: signature scheme 0x%04x requires an ECDSA public key", uint16(scheme))
		}
		h := hashFor(scheme)
		digest := h.New()
		digest.Write(message)
		if !ecdsa.VerifyASN1(ecPub, digest.Sum(nil), signature) {
			return fmt.Errorf("suite: ecdsa signature verification failed")
		}
		return nil

	case extension.SigEd25519:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("suite: ed25519 scheme requires an Ed25519 public key")
		}
		if !ed25519.Verify(edPub, message, signature) {
			return fmt.Errorf("suite: ed25519 signature verification failed")
		}
		return nil

	default:
		return fmt.Errorf("%w: 0x%04x", ErrUnsupportedSignatureScheme, uint16(scheme))
	}
}

func hashFor(scheme extension.SignatureScheme) crypto.Hash {
	switch scheme {
	case extension.SigRSAPSSRSAESHA256, extension.SigECDSASecp256r1SHA256:
		return crypto.SHA256
	case extension.SigRSAPSSRSAESHA384, extension.SigECDSASecp384r1SHA384:
		return crypto.SHA384
	case extension.SigRSAPSSRSAESHA512:
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

func pssOptsFor(scheme extension.SignatureScheme) (crypto.Hash, *rsa.PSSOptions) {
	h := hashFor(scheme)
	return h, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: h}
}
