package conn

import (
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/yourusername/tls13/pkg/tls13/alert"
	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/handshake"
	"github.com/yourusername/tls13/pkg/tls13/keyschedule"
	"github.com/yourusername/tls13/pkg/tls13/record"
	"github.com/yourusername/tls13/pkg/tls13/session"
	"github.com/yourusername/tls13/pkg/tls13/suite"
)

// ConnectionState summarizes a completed handshake for the caller
// (spec.md §6 "External interfaces"): everything about a connection
// that matters once CONNECTED, with no reference back to the state
// machine that produced it.
type ConnectionState struct {
	CipherSuite            handshake.CipherSuite
	NegotiatedGroup        uint16
	ALPNProtocol           string
	ServerName             string
	PeerCertificates       []*x509.Certificate
	ResumptionMasterSecret []byte
	ExporterMasterSecret   []byte
	EarlyDataAccepted      bool
	HandshakeResumed       bool
}

// Conn is a TLS 1.3 connection past the handshake: application data
// Read/Write, on-demand KeyUpdate, and client-side NewSessionTicket
// absorption, all driven through the same recordIO the handshake used.
type Conn struct {
	rio   *recordIO
	suite *suite.Suite
	sch   *keyschedule.Schedule

	isClient bool
	state    ConnectionState

	clientRandom [32]byte

	mu      sync.Mutex
	readBuf []byte
	closed  bool

	// currentReadSecret/currentWriteSecret track the traffic secret
	// behind rio's active Protectors, so a KeyUpdate can ratchet them
	// per RFC 8446 §7.2 without the caller threading secrets around.
	currentReadSecret  []byte
	currentWriteSecret []byte

	keyLog       *session.KeyLogWriter
	sessionCache *session.Cache
}

// ConnectionState returns the negotiated parameters of this connection.
func (c *Conn) ConnectionState() ConnectionState {
	return c.state
}

// Read returns decrypted application_data, transparently absorbing any
// interleaved post-handshake handshake-content-type messages (ticket
// issuance, KeyUpdate) via onPostHandshakeMessage.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, fmt.Errorf("conn: use of closed connection")
	}

	for len(c.readBuf) == 0 {
		payload, err := c.rio.readApplicationRecord(c.onPostHandshakeMessage)
		if err != nil {
			return 0, err
		}
		c.readBuf = payload
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write seals p as one or more application_data records, splitting it
// so that no record's plaintext exceeds the current record size limit.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, fmt.Errorf("conn: use of closed connection")
	}
	for _, frag := range record.FragmentForRecords(p, c.rio.recordSizeLimit) {
		if err := c.rio.writeFragment(record.ContentTypeApplicationData, frag); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close sends a close_notify alert and marks the connection unusable
// (RFC 8446 §6.1).
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rio.writeAlert(alert.Warning(alert.CloseNotify))
}

// ExportKeyingMaterial implements RFC 8446 §7.5: a caller-keyed
// derivation off exporter_master_secret, independent of the traffic
// secrets so it survives a KeyUpdate.
func (c *Conn) ExportKeyingMaterial(label string, context []byte, length int) []byte {
	derived := c.suite.ExpandLabel(c.state.ExporterMasterSecret, label, emptyHash(c.suite), c.suite.HashSize())
	h := c.suite.NewHash()
	h.Write(context)
	return c.suite.ExpandLabel(derived, "exporter", h.Sum(nil), length)
}

func emptyHash(s *suite.Suite) []byte {
	return s.NewHash().Sum(nil)
}

// onPostHandshakeMessage handles a handshake-content-type message that
// arrives interleaved with application data after CONNECTED: KeyUpdate
// (ratcheted immediately) and, client-side, NewSessionTicket (stored in
// the configured session cache).
func (c *Conn) onPostHandshakeMessage(raw []byte) error {
	if len(raw) < 1 {
		return alert.Fatal(alert.DecodeError)
	}
	typ := handshake.Type(raw[0])
	body := raw[1:]

	switch typ {
	case handshake.TypeKeyUpdate:
		ku, err := handshake.UnmarshalKeyUpdate(body)
		if err != nil {
			return alert.Fatal(alert.DecodeError)
		}
		return c.handleKeyUpdate(ku)

	case handshake.TypeNewSessionTicket:
		if !c.isClient {
			return alert.Fatal(alert.UnexpectedMessage)
		}
		nst, err := handshake.UnmarshalNewSessionTicket(body)
		if err != nil {
			return alert.Fatal(alert.DecodeError)
		}
		return c.handleNewSessionTicket(nst)

	default:
		return alert.Fatal(alert.UnexpectedMessage)
	}
}

// handleKeyUpdate ratchets the read traffic secret and, if the peer
// requested it, replies with our own KeyUpdate and ratchets the write
// secret too (RFC 8446 §7.2).
func (c *Conn) handleKeyUpdate(ku *handshake.KeyUpdate) error {
	next := c.sch.UpdateTrafficSecret(c.currentReadSecret)
	p, err := protectorFromSecret(c.suite, c.sch, next)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	c.currentReadSecret = next
	if err := c.rio.setReadProtector(p); err != nil {
		return err
	}

	if ku.RequestUpdate == handshake.KeyUpdateRequested {
		return c.updateWriteKeys()
	}
	return nil
}

// UpdateKeys proactively ratchets our write traffic secret and
// announces it to the peer with a KeyUpdate. Callers reach for this
// once SequenceNumber approaches exhaustion or on their own schedule;
// it is never triggered automatically.
func (c *Conn) UpdateKeys() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateWriteKeys()
}

func (c *Conn) updateWriteKeys() error {
	next := c.sch.UpdateTrafficSecret(c.currentWriteSecret)
	p, err := protectorFromSecret(c.suite, c.sch, next)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}

	msg := &handshake.KeyUpdate{RequestUpdate: handshake.KeyUpdateNotRequested}
	raw, err := msg.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := c.rio.writeMessage(raw); err != nil {
		return err
	}

	c.currentWriteSecret = next
	c.rio.setWriteProtector(p)
	return nil
}

// handleNewSessionTicket stores an incoming resumption ticket, deriving
// its PSK per RFC 8446 §4.6.1 from resumption_master_secret and the
// ticket's nonce.
func (c *Conn) handleNewSessionTicket(nst *handshake.NewSessionTicket) error {
	if c.sessionCache == nil || c.sch.ResumptionMasterSecret == nil {
		return nil
	}
	// lifetime=0 means the server is telling us not to cache this
	// ticket at all; a lifetime beyond our cap is clamped rather than
	// trusted outright (spec.md §3).
	if nst.LifetimeSeconds == 0 {
		return nil
	}
	lifetime := nst.LifetimeSeconds
	if lifetime > session.MaxTicketLifetimeSeconds {
		lifetime = session.MaxTicketLifetimeSeconds
	}

	psk := c.suite.ExpandLabel(c.sch.ResumptionMasterSecret, "resumption", nst.Nonce, c.suite.HashSize())

	var maxEarly uint32
	for _, ext := range nst.Extensions {
		if ed, ok := ext.(*extension.EarlyData); ok {
			maxEarly = ed.MaxEarlyDataSize
		}
	}

	t := &session.Ticket{
		Identity:         nst.Ticket,
		CipherSuite:      uint16(c.state.CipherSuite),
		ResumptionSecret: psk,
		MaxEarlyDataSize: maxEarly,
		ServerName:       c.state.ServerName,
		ReceivedAt:       time.Now(),
		LifetimeSeconds:  lifetime,
		AgeAdd:           nst.AgeAdd,
	}
	c.sessionCache.Put(c.state.ServerName, t)
	return nil
}
