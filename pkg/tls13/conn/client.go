package conn

import (
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/yourusername/tls13/pkg/tls13/alert"
	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/handshake"
	"github.com/yourusername/tls13/pkg/tls13/keyschedule"
	"github.com/yourusername/tls13/pkg/tls13/record"
	"github.com/yourusername/tls13/pkg/tls13/session"
	"github.com/yourusername/tls13/pkg/tls13/suite"
	"github.com/yourusername/tls13/pkg/tls13/transcript"
)

// ClientHandshake drives the client side of the clientState machine
// described in spec.md §4.6, from the first ClientHello through
// CONNECTED.
type ClientHandshake struct {
	cfg *ClientConfig
	rio *recordIO

	state clientState

	clientRandom [32]byte

	// tr is nil until the negotiated cipher suite (and so its hash
	// function) is known; pendingMessages holds the raw wire bytes of
	// every message exchanged before that point, replayed into tr the
	// moment it is created.
	tr              *transcript.Hash
	pendingMessages [][]byte

	suite *suite.Suite
	sch   *keyschedule.Schedule

	kx           suite.KeyExchange
	offeredGroup extension.NamedGroup
	retried      bool

	ticket  *session.Ticket
	usesPSK bool

	earlyData     []byte
	sentEarlyData bool
	earlyAccepted bool

	pendingHandshakeWriteProtector *record.Protector

	selectedALPN string
}

// NewClientHandshake prepares a handshake over nc using cfg. Call
// Handshake to run it to completion.
func NewClientHandshake(nc Transport, cfg *ClientConfig) *ClientHandshake {
	return &ClientHandshake{
		cfg:   cfg,
		rio:   newRecordIO(nc),
		state: clientStart,
	}
}

// OfferEarlyData marks data to be sent as 0-RTT application data,
// immediately after the ClientHello, if cfg.EnableEarlyData and a
// cached ticket supporting early_data is available. The server may
// still reject it (spec.md §4.6); callers must not assume delivery
// until ConnectionState().EarlyDataAccepted is true.
func (h *ClientHandshake) OfferEarlyData(data []byte) {
	h.earlyData = data
}

// Handshake runs the full client handshake and returns a ready-to-use
// Conn, or the fatal alert.Error that aborted the connection.
func (h *ClientHandshake) Handshake() (*Conn, error) {
	if h.cfg.SessionCache != nil {
		if t, err := h.cfg.SessionCache.Get(h.cfg.ServerName); err == nil {
			h.ticket = t
		}
	}

	if err := h.sendClientHello(false, nil, nil); err != nil {
		return nil, err
	}
	h.state = clientWaitSH

	sh, err := h.readServerHello()
	if err != nil {
		return nil, err
	}

	if sh.IsHelloRetryRequest() {
		if h.retried {
			return nil, ErrSecondHelloRetry
		}
		h.retried = true
		// A HelloRetryRequest invalidates any 0-RTT attempt outright
		// (RFC 8446 §4.1.4): the early keys derived against the first
		// ClientHello can never be used now.
		h.sentEarlyData = false
		if err := h.processHelloRetryRequest(sh); err != nil {
			return nil, err
		}
		sh, err = h.readServerHello()
		if err != nil {
			return nil, err
		}
		if sh.IsHelloRetryRequest() {
			return nil, alert.Fatal(alert.UnexpectedMessage)
		}
	}

	if err := h.processServerHello(sh); err != nil {
		return nil, err
	}
	h.state = clientWaitEE

	return h.finishHandshake()
}

// recordMessage feeds raw into the transcript if it exists yet, or
// queues it for replay once the suite (and so the transcript's hash
// function) becomes known.
func (h *ClientHandshake) recordMessage(raw []byte) {
	if h.tr != nil {
		h.tr.AddMessage(raw)
		return
	}
	h.pendingMessages = append(h.pendingMessages, raw)
}

// adoptSuite installs s as the negotiated suite, building the
// transcript (and replaying anything recorded before negotiation) the
// first time it is called.
func (h *ClientHandshake) adoptSuite(s *suite.Suite) {
	h.suite = s
	if h.tr != nil {
		return
	}
	h.tr = transcript.New(s.NewHash)
	for _, m := range h.pendingMessages {
		h.tr.AddMessage(m)
	}
	h.pendingMessages = nil
}

// sendClientHello builds and sends a ClientHello. retry is true for the
// second ClientHello after a HelloRetryRequest. cookie carries a
// HelloRetryRequest's echoed cookie (nil on the first attempt); onlyGroup
// pins the single key_share group to offer after a retry (nil offers
// the first configured group, mirroring the teacher's eager
// single-share-per-attempt ClientHello).
func (h *ClientHandshake) sendClientHello(retry bool, cookie []byte, onlyGroup *extension.NamedGroup) error {
	if !retry {
		if _, err := io.ReadFull(rand.Reader, h.clientRandom[:]); err != nil {
			return fmt.Errorf("conn: generating client random: %w", err)
		}
	}

	group := h.cfg.Groups[0]
	if onlyGroup != nil {
		group = *onlyGroup
	}
	kx, entry, err := newEphemeralKeyShare(group)
	if err != nil {
		return fmt.Errorf("conn: %w", err)
	}
	h.kx = kx
	h.offeredGroup = group

	cipherSuites := h.cfg.CipherSuites

	exts := buildClientHelloExtensions(h.cfg, []extension.KeyShareEntry{entry})
	if cookie != nil {
		exts = append(exts, &extension.Cookie{Data: cookie})
	}

	var psk *extension.PreSharedKey
	offerEarly := false
	if h.ticket != nil && !retry && !h.ticket.Expired(time.Now()) {
		// RFC 8446 §4.2.11 expects a resumption offer's cipher suites
		// to share the PSK's hash algorithm, so the transcript hash
		// adopted below is the one the binder (and, if offered, the
		// early traffic secret) is actually computed under.
		cipherSuites = filterByHashLen(h.cfg.CipherSuites, handshake.CipherSuite(h.ticket.CipherSuite).HashLen())

		s, serr := suite.ByID(handshake.CipherSuite(h.ticket.CipherSuite))
		if serr != nil {
			return fmt.Errorf("conn: %w", serr)
		}
		h.adoptSuite(s)
		h.sch = keyschedule.New(s)
		h.sch.DeriveEarlySecret(h.ticket.ResumptionSecret)
		h.sch.DeriveBinderKey(true)

		if h.cfg.EnableEarlyData && h.ticket.SupportsEarlyData() && len(h.earlyData) > 0 {
			exts = append(exts, &extension.EarlyData{})
			offerEarly = true
		}

		psk = &extension.PreSharedKey{
			Ctx: extension.ContextClientHello,
			Identities: []extension.PSKIdentity{{
				Identity:            h.ticket.Identity,
				ObfuscatedTicketAge: h.ticket.ObfuscatedAge(time.Now()),
			}},
			Binders: [][]byte{make([]byte, s.HashSize())},
		}
		exts = append(exts, &extension.PSKKeyExchangeModes{Modes: []extension.PSKKeyExchangeMode{extension.PSKDHEKE}}, psk)
	}

	ch := &handshake.ClientHello{
		Random:       h.clientRandom,
		CipherSuites: cipherSuites,
		Extensions:   exts,
	}

	raw, bindersOffset, err := ch.MarshalForBinding()
	if err != nil {
		return fmt.Errorf("conn: %w", err)
	}

	if psk != nil {
		truncated := raw[:bindersOffset]
		th := h.suite.NewHash()
		th.Write(truncated)
		binder := h.sch.ComputeBinder(th.Sum(nil))
		copy(raw[bindersOffset+3:], binder) // +3 skips the binders-list vector16 prefix and one entry's vector8 prefix
		h.usesPSK = true
	}

	if err := h.rio.writeMessage(raw); err != nil {
		return err
	}
	h.recordMessage(raw)

	if offerEarly {
		h.sch.DeriveEarlyTrafficSecrets(h.tr.Sum())
		earlyProt, perr := protectorFromSecret(h.suite, h.sch, h.sch.ClientEarlyTrafficSecret)
		if perr != nil {
			return alert.Fatal(alert.InternalError)
		}
		h.rio.setWriteProtector(earlyProt)
		if err := h.rio.writeFragment(record.ContentTypeApplicationData, h.earlyData); err != nil {
			return err
		}
		h.sentEarlyData = true
	}

	return nil
}

func filterByHashLen(suites []handshake.CipherSuite, hashLen int) []handshake.CipherSuite {
	var out []handshake.CipherSuite
	for _, cs := range suites {
		if cs.HashLen() == hashLen {
			out = append(out, cs)
		}
	}
	if len(out) == 0 {
		return suites
	}
	return out
}

func (h *ClientHandshake) readServerHello() (*handshake.ServerHello, error) {
	typ, body, err := h.rio.readHandshakeMessage()
	if err != nil {
		return nil, err
	}
	if typ != handshake.TypeServerHello {
		return nil, alert.Fatal(alert.UnexpectedMessage)
	}

	ctx := extension.ContextServerHello
	if handshake.PeekIsHelloRetryRequest(body) {
		ctx = extension.ContextHelloRetryRequest
	}
	sh, err := handshake.UnmarshalServerHello(body, ctx)
	if err != nil {
		return nil, alert.Fatal(alert.DecodeError)
	}

	if !sh.CipherSuite.Supported() {
		return nil, ErrNoCommonCipherSuite
	}
	if h.suite == nil {
		s, serr := suite.ByID(sh.CipherSuite)
		if serr != nil {
			return nil, alert.Fatal(alert.HandshakeFailure)
		}
		h.adoptSuite(s)
	}

	h.recordMessage(rawHandshakeMessage(typ, body))
	return sh, nil
}

func (h *ClientHandshake) processHelloRetryRequest(sh *handshake.ServerHello) error {
	var cookie []byte
	var group *extension.NamedGroup
	for _, ext := range sh.Extensions {
		if c, ok := ext.(*extension.Cookie); ok {
			cookie = c.Data
		}
		if ks, ok := ext.(*extension.KeyShare); ok && ks.Ctx == extension.ContextHelloRetryRequest {
			g := ks.SelectedGroup
			group = &g
		}
	}
	if group == nil {
		return alert.Fatal(alert.IllegalParameter)
	}

	h.tr.ReplaceFirstClientHello()
	return h.sendClientHello(true, cookie, group)
}

func (h *ClientHandshake) processServerHello(sh *handshake.ServerHello) error {
	if handshake.IsDowngradeSentinel(sh.Random) {
		return alert.Fatal(alert.IllegalParameter)
	}

	ks, ok := findExtension[*extension.KeyShare](sh.Extensions)
	if !ok || ks.Ctx != extension.ContextServerHello {
		return alert.Fatal(alert.MissingExtension)
	}
	if ks.Selected.Group != h.offeredGroup {
		return ErrNoCommonGroup
	}

	shared, err := h.kx.SharedSecret(ks.Selected.KeyExchange)
	if err != nil {
		return alert.Fatal(alert.IllegalParameter)
	}

	if psk, ok := findExtension[*extension.PreSharedKey](sh.Extensions); ok {
		if !h.usesPSK || psk.SelectedIdentity != 0 {
			return ErrUnknownPSKIdentity
		}
	} else {
		// Server didn't pick our PSK: fall back to a full handshake.
		// Any 0-RTT data already in flight is simply discarded per RFC
		// 8446 §4.2.10 — the server never had the keys to decrypt it.
		h.usesPSK = false
		h.sentEarlyData = false
		h.sch = keyschedule.New(h.suite)
		h.sch.DeriveEarlySecret(nil)
	}

	h.sch.DeriveHandshakeSecret(shared)
	h.sch.DeriveHandshakeTrafficSecrets(h.tr.Sum())

	writeProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ClientHandshakeTrafficSecret)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	readProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ServerHandshakeTrafficSecret)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.setReadProtector(readProt); err != nil {
		return err
	}
	if h.sentEarlyData {
		// Defer the write-key switch until after EndOfEarlyData, which
		// must still go out under the 0-RTT keys.
		h.pendingHandshakeWriteProtector = writeProt
	} else {
		h.rio.setWriteProtector(writeProt)
	}

	if h.cfg.KeyLog != nil {
		h.cfg.KeyLog.WriteSecret(session.LabelClientHandshakeTrafficSecret, h.clientRandom[:], h.sch.ClientHandshakeTrafficSecret)
		h.cfg.KeyLog.WriteSecret(session.LabelServerHandshakeTrafficSecret, h.clientRandom[:], h.sch.ServerHandshakeTrafficSecret)
	}
	return nil
}

// finishHandshake reads EncryptedExtensions through the server's
// Finished, authenticates the server, sends our own Finished (and
// client certificate flight if requested), and derives application
// traffic secrets.
func (h *ClientHandshake) finishHandshake() (*Conn, error) {
	if err := h.readEncryptedExtensions(); err != nil {
		return nil, err
	}

	if h.sentEarlyData {
		eoed := &handshake.EndOfEarlyData{}
		raw, err := eoed.Marshal()
		if err != nil {
			return nil, alert.Fatal(alert.InternalError)
		}
		if err := h.rio.writeMessage(raw); err != nil {
			return nil, err
		}
		h.tr.AddMessage(raw)
		h.rio.setWriteProtector(h.pendingHandshakeWriteProtector)
	}

	var certRequested bool
	var peerSchemes []extension.SignatureScheme
	var peerCertChain [][]byte

	if !h.usesPSK {
		typ, body, err := h.rio.readHandshakeMessage()
		if err != nil {
			return nil, err
		}
		if typ == handshake.TypeCertificateRequest {
			certRequested = true
			cr, cerr := handshake.UnmarshalCertificateRequest(body)
			if cerr != nil {
				return nil, alert.Fatal(alert.DecodeError)
			}
			if sa, ok := findExtension[*extension.SignatureAlgorithms](cr.Extensions); ok {
				peerSchemes = sa.Schemes
			}
			h.tr.AddMessage(rawHandshakeMessage(typ, body))
			typ, body, err = h.rio.readHandshakeMessage()
			if err != nil {
				return nil, err
			}
		}
		if typ != handshake.TypeCertificate {
			return nil, alert.Fatal(alert.UnexpectedMessage)
		}
		cert, cerr := handshake.UnmarshalCertificate(body)
		if cerr != nil {
			return nil, alert.Fatal(alert.DecodeError)
		}
		h.tr.AddMessage(rawHandshakeMessage(typ, body))
		for _, e := range cert.Entries {
			peerCertChain = append(peerCertChain, e.CertData)
		}
		if len(peerCertChain) == 0 {
			return nil, ErrNoServerCertificate
		}

		if err := h.verifyCertificateVerify(peerCertChain[0]); err != nil {
			return nil, err
		}
	}

	if err := h.verifyServerFinished(); err != nil {
		return nil, err
	}

	h.sch.DeriveMasterSecret()
	h.sch.DeriveApplicationTrafficSecrets(h.tr.Sum())

	if certRequested {
		if err := h.sendClientCertificateFlight(peerSchemes); err != nil {
			return nil, err
		}
	}

	if err := h.sendClientFinished(); err != nil {
		return nil, err
	}

	h.sch.DeriveResumptionMasterSecret(h.tr.Sum())

	writeProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ClientApplicationTrafficSecret)
	if err != nil {
		return nil, alert.Fatal(alert.InternalError)
	}
	readProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ServerApplicationTrafficSecret)
	if err != nil {
		return nil, alert.Fatal(alert.InternalError)
	}
	h.rio.setWriteProtector(writeProt)
	if err := h.rio.setReadProtector(readProt); err != nil {
		return nil, err
	}

	if h.cfg.KeyLog != nil {
		h.cfg.KeyLog.WriteSecret(session.LabelClientTrafficSecret0, h.clientRandom[:], h.sch.ClientApplicationTrafficSecret)
		h.cfg.KeyLog.WriteSecret(session.LabelServerTrafficSecret0, h.clientRandom[:], h.sch.ServerApplicationTrafficSecret)
		h.cfg.KeyLog.WriteSecret(session.LabelExporterSecret, h.clientRandom[:], h.sch.ExporterMasterSecret)
	}

	h.state = clientConnected

	var peerCerts []*x509.Certificate
	for _, der := range peerCertChain {
		if c, perr := x509.ParseCertificate(der); perr == nil {
			peerCerts = append(peerCerts, c)
		}
	}

	return &Conn{
		rio:                h.rio,
		suite:              h.suite,
		sch:                h.sch,
		isClient:           true,
		clientRandom:       h.clientRandom,
		currentReadSecret:  h.sch.ServerApplicationTrafficSecret,
		currentWriteSecret: h.sch.ClientApplicationTrafficSecret,
		keyLog:             h.cfg.KeyLog,
		sessionCache:       h.cfg.SessionCache,
		state: ConnectionState{
			CipherSuite:            handshake.CipherSuite(h.suite.ID),
			NegotiatedGroup:        uint16(h.offeredGroup),
			ALPNProtocol:           h.selectedALPN,
			ServerName:             h.cfg.ServerName,
			PeerCertificates:       peerCerts,
			ResumptionMasterSecret: h.sch.ResumptionMasterSecret,
			ExporterMasterSecret:   h.sch.ExporterMasterSecret,
			EarlyDataAccepted:      h.earlyAccepted,
			HandshakeResumed:       h.usesPSK,
		},
	}, nil
}

func (h *ClientHandshake) readEncryptedExtensions() error {
	typ, body, err := h.rio.readHandshakeMessage()
	if err != nil {
		return err
	}
	if typ != handshake.TypeEncryptedExtensions {
		return alert.Fatal(alert.UnexpectedMessage)
	}
	ee, err := handshake.UnmarshalEncryptedExtensions(body)
	if err != nil {
		return alert.Fatal(alert.DecodeError)
	}
	h.tr.AddMessage(rawHandshakeMessage(typ, body))

	if alpn, ok := findExtension[*extension.ALPN](ee.Extensions); ok && len(alpn.Protocols) > 0 {
		h.selectedALPN = alpn.Protocols[0]
	}
	if rsl, ok := findExtension[*extension.RecordSizeLimit](ee.Extensions); ok {
		// The server's advertised record_size_limit bounds what we may
		// send it (spec.md §4.4); our own outgoing cap follows its
		// value, not the limit we asked it to honor for us.
		h.rio.recordSizeLimit = int(rsl.Limit)
	}
	if _, ok := findExtension[*extension.EarlyData](ee.Extensions); ok && h.sentEarlyData {
		h.earlyAccepted = true
	}
	return nil
}

func (h *ClientHandshake) verifyCertificateVerify(leafDER []byte) error {
	typ, body, err := h.rio.readHandshakeMessage()
	if err != nil {
		return err
	}
	if typ != handshake.TypeCertificateVerify {
		return alert.Fatal(alert.UnexpectedMessage)
	}
	cv, err := handshake.UnmarshalCertificateVerify(body)
	if err != nil {
		return alert.Fatal(alert.DecodeError)
	}

	content := certificateVerifyContent(certVerifyContextServer, h.tr.Sum())
	h.tr.AddMessage(rawHandshakeMessage(typ, body))

	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		return alert.Fatal(alert.BadCertificate)
	}
	if err := suite.VerifyWithPublicKey(leaf.PublicKey, cv.Algorithm, content, cv.Signature); err != nil {
		return alert.Fatal(alert.DecryptError)
	}
	return nil
}

func (h *ClientHandshake) verifyServerFinished() error {
	typ, body, err := h.rio.readHandshakeMessage()
	if err != nil {
		return err
	}
	if typ != handshake.TypeFinished {
		return alert.Fatal(alert.UnexpectedMessage)
	}
	fin, err := handshake.UnmarshalFinished(body)
	if err != nil {
		return alert.Fatal(alert.DecodeError)
	}

	finishedKey := h.sch.FinishedKey(h.sch.ServerHandshakeTrafficSecret)
	if !h.sch.VerifyData(finishedKey, h.tr.Sum(), fin.VerifyData) {
		return alert.Fatal(alert.DecryptError)
	}
	h.tr.AddMessage(rawHandshakeMessage(typ, body))
	return nil
}

func (h *ClientHandshake) sendClientCertificateFlight(peerSchemes []extension.SignatureScheme) error {
	var chain [][]byte
	if h.cfg.ClientCertProvider != nil {
		chain = h.cfg.ClientCertProvider.ChainBytes()
	}

	cert := &handshake.Certificate{}
	for _, der := range chain {
		cert.Entries = append(cert.Entries, handshake.CertificateEntry{CertData: der})
	}
	raw, err := cert.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(raw); err != nil {
		return err
	}
	h.tr.AddMessage(raw)

	if len(chain) == 0 {
		return nil
	}

	scheme, ok := pickSignatureScheme(h.cfg.ClientCertProvider, peerSchemes)
	if !ok {
		return ErrNoCommonScheme
	}
	content := certificateVerifyContent(certVerifyContextClient, h.tr.Sum())
	sig, err := h.cfg.ClientCertProvider.Sign(scheme, content)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	cv := &handshake.CertificateVerify{Algorithm: scheme, Signature: sig}
	raw, err = cv.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(raw); err != nil {
		return err
	}
	h.tr.AddMessage(raw)
	return nil
}

func (h *ClientHandshake) sendClientFinished() error {
	finishedKey := h.sch.FinishedKey(h.sch.ClientHandshakeTrafficSecret)
	verifyData := h.sch.ComputeVerifyData(finishedKey, h.tr.Sum())
	fin := &handshake.Finished{VerifyData: verifyData}
	raw, err := fin.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(raw); err != nil {
		return err
	}
	h.tr.AddMessage(raw)
	return nil
}
