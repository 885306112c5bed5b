package conn

import (
	"io"

	"github.com/yourusername/tls13/pkg/tls13/certprovider"
	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/handshake"
	"github.com/yourusername/tls13/pkg/tls13/quicparams"
	"github.com/yourusername/tls13/pkg/tls13/session"
	"github.com/yourusername/tls13/pkg/tls13/suite"
)

// defaultCipherSuites mirrors the teacher's defaultCipherSuites table
// shape (an ordered preference list a Config seeds by default, and a
// caller may override via With*).
var defaultCipherSuites = []handshake.CipherSuite{
	handshake.TLS_AES_128_GCM_SHA256,
	handshake.TLS_AES_256_GCM_SHA384,
	handshake.TLS_CHACHA20_POLY1305_SHA256,
}

var defaultGroups = []extension.NamedGroup{
	extension.GroupX25519,
	extension.GroupSecp256r1,
}

var defaultSignatureSchemes = []extension.SignatureScheme{
	extension.SigEd25519,
	extension.SigECDSASecp256r1SHA256,
	extension.SigECDSASecp384r1SHA384,
	extension.SigRSAPSSRSAESHA256,
	extension.SigRSAPSSRSAESHA384,
	extension.SigRSAPSSRSAESHA512,
}

// ClientConfig configures a ClientHandshake. New fields are seeded with
// sensible defaults by NewClientConfig; With* methods chain the way
// pkg/shockwave/tls.Config's builder does.
type ClientConfig struct {
	ServerName          string
	CipherSuites        []handshake.CipherSuite
	Groups              []extension.NamedGroup
	SignatureSchemes    []extension.SignatureScheme
	ALPNProtocols       []string
	RecordSizeLimit     uint16
	QUICTransportParams *quicparams.Parameters

	SessionCache *session.Cache
	KeyLog       *session.KeyLogWriter

	// EnableEarlyData offers 0-RTT data whenever SessionCache holds a
	// ticket that supports it (spec.md §4.6).
	EnableEarlyData bool

	// ClientCertProvider, if set, answers a server's CertificateRequest
	// with a client certificate (spec.md §4.3 mutual auth).
	ClientCertProvider *certprovider.Provider
}

// NewClientConfig seeds a ClientConfig the way the teacher's
// tls.NewConfig seeds defaults (cipher suites, ALPN list) before any
// With* call customizes it.
func NewClientConfig(serverName string) *ClientConfig {
	return &ClientConfig{
		ServerName:       serverName,
		CipherSuites:     append([]handshake.CipherSuite(nil), defaultCipherSuites...),
		Groups:           append([]extension.NamedGroup(nil), defaultGroups...),
		SignatureSchemes: append([]extension.SignatureScheme(nil), defaultSignatureSchemes...),
		RecordSizeLimit:  0,
	}
}

func (c *ClientConfig) WithCipherSuites(suites ...handshake.CipherSuite) *ClientConfig {
	c.CipherSuites = suites
	return c
}

func (c *ClientConfig) WithALPN(protos ...string) *ClientConfig {
	c.ALPNProtocols = protos
	return c
}

func (c *ClientConfig) WithRecordSizeLimit(limit uint16) *ClientConfig {
	c.RecordSizeLimit = limit
	return c
}

func (c *ClientConfig) WithQUICTransportParameters(p *quicparams.Parameters) *ClientConfig {
	c.QUICTransportParams = p
	return c
}

func (c *ClientConfig) WithSessionCache(cache *session.Cache) *ClientConfig {
	c.SessionCache = cache
	return c
}

func (c *ClientConfig) WithKeyLogWriter(w io.Writer) *ClientConfig {
	c.KeyLog = session.NewKeyLogWriter(w)
	return c
}

func (c *ClientConfig) WithEarlyData() *ClientConfig {
	c.EnableEarlyData = true
	return c
}

func (c *ClientConfig) WithClientCertificate(p *certprovider.Provider) *ClientConfig {
	c.ClientCertProvider = p
	return c
}

// ServerConfig configures a ServerHandshake.
type ServerConfig struct {
	CipherSuites        []handshake.CipherSuite
	Groups              []extension.NamedGroup
	SignatureSchemes    []extension.SignatureScheme
	ALPNProtocols       []string
	RecordSizeLimit     uint16
	QUICTransportParams *quicparams.Parameters

	CertProvider *certprovider.Provider

	SessionCache    *session.Cache
	StrikeRegister  *session.StrikeRegister
	KeyLog          *session.KeyLogWriter
	MaxEarlyDataSize uint32 // 0 disables issuing tickets with early_data
	TicketLifetime   uint32 // seconds; defaults to 7200 (spec.md §8 S3)

	requireClientAuth bool
}

// NewServerConfig seeds a ServerConfig bound to cert, the way
// tls.NewConfig seeds its manual-certificate fields.
func NewServerConfig(cert *certprovider.Provider) *ServerConfig {
	return &ServerConfig{
		CipherSuites:     append([]handshake.CipherSuite(nil), defaultCipherSuites...),
		Groups:           append([]extension.NamedGroup(nil), defaultGroups...),
		SignatureSchemes: append([]extension.SignatureScheme(nil), defaultSignatureSchemes...),
		CertProvider:     cert,
		StrikeRegister:   session.NewStrikeRegister(0),
		TicketLifetime:   7200,
		MaxEarlyDataSize: 0,
	}
}

func (c *ServerConfig) WithALPN(protos ...string) *ServerConfig {
	c.ALPNProtocols = protos
	return c
}

func (c *ServerConfig) WithRecordSizeLimit(limit uint16) *ServerConfig {
	c.RecordSizeLimit = limit
	return c
}

func (c *ServerConfig) WithQUICTransportParameters(p *quicparams.Parameters) *ServerConfig {
	c.QUICTransportParams = p
	return c
}

func (c *ServerConfig) WithSessionCache(cache *session.Cache) *ServerConfig {
	c.SessionCache = cache
	return c
}

func (c *ServerConfig) WithKeyLogWriter(w io.Writer) *ServerConfig {
	c.KeyLog = session.NewKeyLogWriter(w)
	return c
}

func (c *ServerConfig) WithClientAuth() *ServerConfig {
	c.requireClientAuth = true
	return c
}

// WithEarlyData enables NewSessionTicket issuance that advertises
// max_early_data_size, so future resumptions offered against this
// config's tickets may carry 0-RTT data.
func (c *ServerConfig) WithEarlyData(maxSize uint32) *ServerConfig {
	c.MaxEarlyDataSize = maxSize
	return c
}

// pickCipherSuite returns the first suite in preference order common
// to both sides (spec.md §4.6 "Parameter selection").
func pickCipherSuite(preference []handshake.CipherSuite, offered []handshake.CipherSuite) (handshake.CipherSuite, bool) {
	offeredSet := make(map[handshake.CipherSuite]bool, len(offered))
	for _, o := range offered {
		offeredSet[o] = true
	}
	for _, cs := range preference {
		if offeredSet[cs] {
			return cs, true
		}
	}
	return 0, false
}

func pickGroup(preference []extension.NamedGroup, offered []extension.NamedGroup) (extension.NamedGroup, bool) {
	offeredSet := make(map[extension.NamedGroup]bool, len(offered))
	for _, o := range offered {
		offeredSet[o] = true
	}
	for _, g := range preference {
		if offeredSet[g] && g.Supported() {
			return g, true
		}
	}
	return 0, false
}

func suiteToNativeGroup(g extension.NamedGroup) uint16 {
	switch g {
	case extension.GroupX25519:
		return suite.GroupX25519
	case extension.GroupSecp256r1:
		return suite.GroupSecp256r1
	default:
		return 0
	}
}
