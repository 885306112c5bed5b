package conn

import (
	"github.com/yourusername/tls13/pkg/tls13/certprovider"
	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/handshake"
	"github.com/yourusername/tls13/pkg/tls13/keyschedule"
	"github.com/yourusername/tls13/pkg/tls13/record"
	"github.com/yourusername/tls13/pkg/tls13/suite"
)

const (
	certVerifyContextServer = "TLS 1.3, server CertificateVerify"
	certVerifyContextClient = "TLS 1.3, client CertificateVerify"
)

// certificateVerifyContent builds the RFC 8446 §4.4.3 content a
// CertificateVerify signature covers: 64 spaces, the context string, a
// single zero byte, then the transcript hash up to (but not including)
// CertificateVerify itself.
func certificateVerifyContent(context string, transcriptHash []byte) []byte {
	buf := make([]byte, 64, 64+len(context)+1+len(transcriptHash))
	for i := range buf {
		buf[i] = 0x20
	}
	buf = append(buf, context...)
	buf = append(buf, 0x00)
	buf = append(buf, transcriptHash...)
	return buf
}

// newEphemeralKeyShare generates a fresh (EC)DHE key pair for group and
// the wire-ready KeyShareEntry advertising its public half.
func newEphemeralKeyShare(group extension.NamedGroup) (suite.KeyExchange, extension.KeyShareEntry, error) {
	kx, err := suite.GenerateKeyExchange(suiteToNativeGroup(group))
	if err != nil {
		return nil, extension.KeyShareEntry{}, err
	}
	return kx, extension.KeyShareEntry{Group: group, KeyExchange: kx.Public()}, nil
}

func findExtension[T extension.Body](exts []extension.Body) (result T, ok bool) {
	for _, e := range exts {
		if v, match := e.(T); match {
			return v, true
		}
	}
	return result, false
}

// buildClientHelloExtensions assembles the standard extension set a
// ClientHello carries absent any PSK (callers append pre_shared_key
// last, separately, once its binder placeholders are sized).
func buildClientHelloExtensions(c *ClientConfig, keyShares []extension.KeyShareEntry) []extension.Body {
	exts := []extension.Body{
		&extension.SupportedVersions{Ctx: extension.ContextClientHello, Versions: []uint16{extension.VersionTLS13}},
		&extension.SupportedGroups{Groups: c.Groups},
		&extension.SignatureAlgorithms{Schemes: c.SignatureSchemes},
		&extension.KeyShare{Ctx: extension.ContextClientHello, Entries: keyShares},
	}
	if c.ServerName != "" {
		exts = append(exts, &extension.ServerName{HostName: c.ServerName})
	}
	if len(c.ALPNProtocols) > 0 {
		exts = append(exts, &extension.ALPN{Protocols: c.ALPNProtocols})
	}
	if c.RecordSizeLimit > 0 {
		exts = append(exts, &extension.RecordSizeLimit{Limit: c.RecordSizeLimit})
	}
	if c.QUICTransportParams != nil {
		if raw, err := c.QUICTransportParams.Encode(); err == nil {
			exts = append(exts, raw)
		}
	}
	return exts
}

// rawHandshakeMessage reconstructs the 4-byte handshake header a
// Reassembler strips off, so the transcript hash sees exactly the
// bytes that crossed the wire.
func rawHandshakeMessage(typ handshake.Type, body []byte) []byte {
	out := make([]byte, 0, 4+len(body))
	out = append(out, byte(typ), byte(len(body)>>16), byte(len(body)>>8), byte(len(body)))
	return append(out, body...)
}

// protectorFromSecret derives [sender]_write_key/iv from trafficSecret
// and wraps a fresh record.Protector around the resulting AEAD.
func protectorFromSecret(s *suite.Suite, sch *keyschedule.Schedule, trafficSecret []byte) (*record.Protector, error) {
	keys := sch.DeriveTrafficKeys(trafficSecret)
	aead, err := s.AEAD(keys.Key)
	if err != nil {
		return nil, err
	}
	return record.NewProtector(aead, keys.IV), nil
}

// pickSignatureScheme returns the first of peerSchemes provider can
// produce a signature under (spec.md §4.6 "Parameter selection",
// applied to client-certificate auth).
func pickSignatureScheme(provider *certprovider.Provider, peerSchemes []extension.SignatureScheme) (extension.SignatureScheme, bool) {
	for _, scheme := range peerSchemes {
		if provider.SupportsScheme(scheme) {
			return scheme, true
		}
	}
	return 0, false
}
