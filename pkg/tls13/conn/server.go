package conn

import (
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
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

// ServerHandshake drives the server side of the serverState machine
// described in spec.md §4.6, from the first ClientHello through
// CONNECTED.
type ServerHandshake struct {
	cfg *ServerConfig
	rio *recordIO

	state serverState

	clientRandom [32]byte

	tr *transcript.Hash

	suite *suite.Suite
	sch   *keyschedule.Schedule

	kx          suite.KeyExchange
	group       extension.NamedGroup
	peerShare   extension.KeyShareEntry
	cipherSuite handshake.CipherSuite

	// chRaw is the raw wire bytes of whichever ClientHello is currently
	// under negotiation, kept around for the PSK binder truncation in
	// processPSK — re-marshaling a decoded ClientHello is not safe here
	// since appendExtension silently drops unrecognized extensions.
	chRaw []byte

	usesPSK       bool
	ticket        *session.Ticket
	expectEOED    bool
	earlyAccepted bool

	pendingHandshakeReadProtector *record.Protector

	selectedALPN    string
	clientCertChain [][]byte
}

// NewServerHandshake prepares a handshake over nc using cfg. Call
// Handshake to run it to completion.
func NewServerHandshake(nc Transport, cfg *ServerConfig) *ServerHandshake {
	return &ServerHandshake{
		cfg:   cfg,
		rio:   newRecordIO(nc),
		state: serverStart,
	}
}

// ticketCacheKey indexes a server's *session.Cache by the opaque
// ticket identity the client presents, since (unlike a client's own
// cache, keyed by server name) a server has no natural name of its
// own to key by.
func ticketCacheKey(identity []byte) string {
	return hex.EncodeToString(identity)
}

// Handshake runs the full server handshake and returns a ready-to-use
// Conn, or the fatal alert.Error that aborted the connection.
func (h *ServerHandshake) Handshake() (*Conn, error) {
	ch, err := h.readClientHello()
	if err != nil {
		return nil, err
	}
	h.state = serverRecvdCH
	h.clientRandom = ch.Random

	group, peerShare, needRetry, err := h.negotiate(ch)
	if err != nil {
		return nil, err
	}

	if needRetry {
		if err := h.sendHelloRetryRequest(ch, group); err != nil {
			return nil, err
		}
		ch, err = h.readClientHello()
		if err != nil {
			return nil, err
		}
		peerShare, err = h.retryKeyShare(ch, group)
		if err != nil {
			return nil, err
		}
	}
	h.group = group

	kx, err := suite.GenerateKeyExchange(suiteToNativeGroup(group))
	if err != nil {
		return nil, alert.Fatal(alert.InternalError)
	}
	h.kx = kx

	if err := h.processPSK(ch); err != nil {
		return nil, err
	}
	if err := h.maybeHandleEarlyData(ch); err != nil {
		return nil, err
	}

	if err := h.sendServerHello(ch, peerShare); err != nil {
		return nil, err
	}
	h.state = serverNegotiated

	if err := h.deriveHandshakeSecrets(); err != nil {
		return nil, err
	}

	if err := h.sendServerFlight(ch); err != nil {
		return nil, err
	}

	h.sch.DeriveMasterSecret()
	h.sch.DeriveApplicationTrafficSecrets(h.tr.Sum())

	if h.expectEOED {
		h.state = serverWaitEOED
		if err := h.readEndOfEarlyData(); err != nil {
			return nil, err
		}
	}

	h.state = serverWaitFlight2
	if err := h.readClientFlight(); err != nil {
		return nil, err
	}

	h.sch.DeriveResumptionMasterSecret(h.tr.Sum())

	writeProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ServerApplicationTrafficSecret)
	if err != nil {
		return nil, alert.Fatal(alert.InternalError)
	}
	readProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ClientApplicationTrafficSecret)
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

	h.state = serverConnected

	if err := h.issueSessionTicket(); err != nil {
		return nil, err
	}

	var peerCerts []*x509.Certificate
	for _, der := range h.clientCertChain {
		if c, perr := x509.ParseCertificate(der); perr == nil {
			peerCerts = append(peerCerts, c)
		}
	}

	var serverName string
	if sn, ok := findExtension[*extension.ServerName](ch.Extensions); ok {
		serverName = sn.HostName
	}

	return &Conn{
		rio:                h.rio,
		suite:              h.suite,
		sch:                h.sch,
		isClient:           false,
		clientRandom:       h.clientRandom,
		currentReadSecret:  h.sch.ClientApplicationTrafficSecret,
		currentWriteSecret: h.sch.ServerApplicationTrafficSecret,
		keyLog:             h.cfg.KeyLog,
		sessionCache:       h.cfg.SessionCache,
		state: ConnectionState{
			CipherSuite:            h.cipherSuite,
			NegotiatedGroup:        uint16(h.group),
			ALPNProtocol:           h.selectedALPN,
			ServerName:             serverName,
			PeerCertificates:       peerCerts,
			ResumptionMasterSecret: h.sch.ResumptionMasterSecret,
			ExporterMasterSecret:   h.sch.ExporterMasterSecret,
			EarlyDataAccepted:      h.earlyAccepted,
			HandshakeResumed:       h.usesPSK,
		},
	}, nil
}

// readClientHello reads one ClientHello, adds it to the transcript
// (the suite, and so the transcript's hash function, is already known
// by the time a second ClientHello following a HelloRetryRequest is
// read), and remembers its raw wire bytes for processPSK.
func (h *ServerHandshake) readClientHello() (*handshake.ClientHello, error) {
	typ, body, err := h.rio.readHandshakeMessage()
	if err != nil {
		return nil, err
	}
	if typ != handshake.TypeClientHello {
		return nil, alert.Fatal(alert.UnexpectedMessage)
	}
	ch, err := handshake.UnmarshalClientHello(body)
	if err != nil {
		return nil, alert.Fatal(alert.DecodeError)
	}

	h.chRaw = rawHandshakeMessage(typ, body)
	if h.tr != nil {
		h.tr.AddMessage(h.chRaw)
	}
	return ch, nil
}

// negotiate picks the cipher suite (adopting its hash as the
// transcript's, and building the transcript) and, if possible, a
// group the client already sent a key_share for. needRetry is true
// when a mutually supported group exists but the client's key_share
// list didn't include it, meaning a HelloRetryRequest is required.
func (h *ServerHandshake) negotiate(ch *handshake.ClientHello) (extension.NamedGroup, extension.KeyShareEntry, bool, error) {
	sv, ok := findExtension[*extension.SupportedVersions](ch.Extensions)
	if !ok {
		return 0, extension.KeyShareEntry{}, false, alert.Fatal(alert.MissingExtension)
	}
	var supports13 bool
	for _, v := range sv.Versions {
		if v == extension.VersionTLS13 {
			supports13 = true
			break
		}
	}
	if !supports13 {
		return 0, extension.KeyShareEntry{}, false, alert.Fatal(alert.ProtocolVersion)
	}

	cs, ok := pickCipherSuite(h.cfg.CipherSuites, ch.CipherSuites)
	if !ok {
		return 0, extension.KeyShareEntry{}, false, ErrNoCommonCipherSuite
	}
	h.cipherSuite = cs
	s, err := suite.ByID(cs)
	if err != nil {
		return 0, extension.KeyShareEntry{}, false, alert.Fatal(alert.InternalError)
	}
	h.suite = s
	h.tr = transcript.New(s.NewHash)
	h.tr.AddMessage(h.chRaw)

	offeredShares := make(map[extension.NamedGroup][]byte)
	if ks, ok := findExtension[*extension.KeyShare](ch.Extensions); ok {
		for _, e := range ks.Entries {
			offeredShares[e.Group] = e.KeyExchange
		}
	}
	for _, g := range h.cfg.Groups {
		if pub, ok := offeredShares[g]; ok {
			return g, extension.KeyShareEntry{Group: g, KeyExchange: pub}, false, nil
		}
	}

	var offeredGroups []extension.NamedGroup
	if sg, ok := findExtension[*extension.SupportedGroups](ch.Extensions); ok {
		offeredGroups = sg.Groups
	}
	if g, ok := pickGroup(h.cfg.Groups, offeredGroups); ok {
		return g, extension.KeyShareEntry{}, true, nil
	}
	return 0, extension.KeyShareEntry{}, false, ErrNoCommonGroup
}

// sendHelloRetryRequest announces group as the one (and only) group
// the client should retry its key_share for (RFC 8446 §4.1.4).
func (h *ServerHandshake) sendHelloRetryRequest(ch *handshake.ClientHello, group extension.NamedGroup) error {
	exts := []extension.Body{
		&extension.SupportedVersions{Ctx: extension.ContextHelloRetryRequest},
		&extension.KeyShare{Ctx: extension.ContextHelloRetryRequest, SelectedGroup: group},
	}
	hrr := handshake.NewHelloRetryRequest(ch.LegacySessionID, h.cipherSuite, exts)
	raw, err := hrr.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(raw); err != nil {
		return err
	}
	h.tr.AddMessage(raw)
	h.tr.ReplaceFirstClientHello()
	return nil
}

// retryKeyShare validates the second ClientHello still offers the
// negotiated cipher suite and now carries a key_share for group,
// returning it.
func (h *ServerHandshake) retryKeyShare(ch *handshake.ClientHello, group extension.NamedGroup) (extension.KeyShareEntry, error) {
	var stillOffered bool
	for _, cs := range ch.CipherSuites {
		if cs == h.cipherSuite {
			stillOffered = true
			break
		}
	}
	if !stillOffered {
		return extension.KeyShareEntry{}, ErrNoCommonCipherSuite
	}
	ks, ok := findExtension[*extension.KeyShare](ch.Extensions)
	if !ok {
		return extension.KeyShareEntry{}, alert.Fatal(alert.MissingExtension)
	}
	for _, e := range ks.Entries {
		if e.Group == group {
			return e, nil
		}
	}
	return extension.KeyShareEntry{}, alert.Fatal(alert.IllegalParameter)
}

// processPSK looks for a trailing pre_shared_key extension, resolves
// it against cfg.SessionCache, and verifies its binder. A missing
// psk_dhe_ke mode, an unknown or expired identity, or a cipher suite
// mismatch falls back to a full (non-PSK) handshake, matching a
// compliant server's "unrecognized identity" tolerance (RFC 8446
// §4.2.11). It aborts with illegal_parameter when pre_shared_key is not
// the last extension, with decode_error when the binders do not fit in
// the ClientHello, and with ErrPSKBinderMismatch on a bad binder.
func (h *ServerHandshake) processPSK(ch *handshake.ClientHello) error {
	psk, ok := findExtension[*extension.PreSharedKey](ch.Extensions)
	if !ok || h.cfg.SessionCache == nil {
		h.sch = keyschedule.New(h.suite)
		h.sch.DeriveEarlySecret(nil)
		return nil
	}

	pskIdx := -1
	for i, ext := range ch.Extensions {
		if _, ok := ext.(*extension.PreSharedKey); ok {
			pskIdx = i
		}
	}
	if pskIdx != len(ch.Extensions)-1 {
		return alert.Fatal(alert.IllegalParameter)
	}

	var offersDHEKE bool
	if modes, ok := findExtension[*extension.PSKKeyExchangeModes](ch.Extensions); ok {
		for _, m := range modes.Modes {
			if m == extension.PSKDHEKE {
				offersDHEKE = true
			}
		}
	}
	if !offersDHEKE || len(psk.Identities) == 0 || len(psk.Binders) == 0 {
		h.sch = keyschedule.New(h.suite)
		h.sch.DeriveEarlySecret(nil)
		return nil
	}

	identity := psk.Identities[0].Identity
	ticket, err := h.cfg.SessionCache.Get(ticketCacheKey(identity))
	if err != nil || handshake.CipherSuite(ticket.CipherSuite) != h.cipherSuite || ticket.Expired(time.Now()) {
		h.sch = keyschedule.New(h.suite)
		h.sch.DeriveEarlySecret(nil)
		return nil
	}

	h.sch = keyschedule.New(h.suite)
	h.sch.DeriveEarlySecret(ticket.ResumptionSecret)
	h.sch.DeriveBinderKey(true)

	bindersVecLen := 2
	for _, b := range psk.Binders {
		bindersVecLen += 1 + len(b)
	}
	bindersOffset := len(h.chRaw) - bindersVecLen
	if bindersOffset < 0 {
		return alert.Fatal(alert.DecodeError)
	}
	th := h.suite.NewHash()
	th.Write(h.chRaw[:bindersOffset])
	if !h.sch.VerifyBinder(th.Sum(nil), psk.Binders[0]) {
		return ErrPSKBinderMismatch
	}

	h.usesPSK = true
	h.ticket = ticket
	return nil
}

// maybeHandleEarlyData derives the 0-RTT traffic secret and drains the
// single early application_data record the client writes immediately
// after ClientHello whenever it offers early_data alongside an
// accepted PSK, independent of whether this server ultimately elects
// to advertise early_data acceptance in EncryptedExtensions. Those
// bytes are already in the pipe by the time a single-goroutine,
// blocking Transport gets here; leaving them unread would deadlock any
// transport without independent internal buffering.
func (h *ServerHandshake) maybeHandleEarlyData(ch *handshake.ClientHello) error {
	if !h.usesPSK {
		return nil
	}
	if _, ok := findExtension[*extension.EarlyData](ch.Extensions); !ok {
		return nil
	}
	h.expectEOED = true

	h.sch.DeriveEarlyTrafficSecrets(h.tr.Sum())
	earlyProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ClientEarlyTrafficSecret)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.setReadProtector(earlyProt); err != nil {
		return err
	}

	var age uint32
	if psk, ok := findExtension[*extension.PreSharedKey](ch.Extensions); ok && len(psk.Identities) > 0 {
		age = psk.Identities[0].ObfuscatedTicketAge
	}
	var replay bool
	if h.cfg.StrikeRegister != nil {
		replay = h.cfg.StrikeRegister.CheckAndRemember(h.ticket.Identity, age)
	}
	h.earlyAccepted = h.cfg.MaxEarlyDataSize > 0 && !replay

	ct, _, err := h.rio.readRecordPlaintext()
	if err != nil {
		return err
	}
	if ct != record.ContentTypeApplicationData {
		return alert.Fatal(alert.UnexpectedMessage)
	}
	return nil
}

// sendServerHello builds and sends ServerHello, echoing the client's
// legacy_session_id and recording peerShare for the key-exchange step.
func (h *ServerHandshake) sendServerHello(ch *handshake.ClientHello, peerShare extension.KeyShareEntry) error {
	h.peerShare = peerShare

	exts := []extension.Body{
		&extension.SupportedVersions{Ctx: extension.ContextServerHello},
		&extension.KeyShare{Ctx: extension.ContextServerHello, Selected: extension.KeyShareEntry{Group: h.group, KeyExchange: h.kx.Public()}},
	}
	if h.usesPSK {
		exts = append(exts, &extension.PreSharedKey{Ctx: extension.ContextServerHello, SelectedIdentity: 0})
	}

	var random [32]byte
	if _, err := io.ReadFull(rand.Reader, random[:]); err != nil {
		return fmt.Errorf("conn: generating server random: %w", err)
	}

	sh := &handshake.ServerHello{
		Random:          random,
		LegacySessionID: ch.LegacySessionID,
		CipherSuite:     h.cipherSuite,
		Extensions:      exts,
	}
	raw, err := sh.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(raw); err != nil {
		return err
	}
	h.tr.AddMessage(raw)
	return nil
}

// deriveHandshakeSecrets runs the (EC)DHE extract and installs the
// handshake write protector immediately. The handshake read protector
// is deferred (pendingHandshakeReadProtector) whenever an
// EndOfEarlyData is still expected, since that message arrives under
// the early traffic key, not the handshake one.
func (h *ServerHandshake) deriveHandshakeSecrets() error {
	shared, err := h.kx.SharedSecret(h.peerShare.KeyExchange)
	if err != nil {
		return alert.Fatal(alert.IllegalParameter)
	}
	h.sch.DeriveHandshakeSecret(shared)
	h.sch.DeriveHandshakeTrafficSecrets(h.tr.Sum())

	writeProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ServerHandshakeTrafficSecret)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	h.rio.setWriteProtector(writeProt)

	readProt, err := protectorFromSecret(h.suite, h.sch, h.sch.ClientHandshakeTrafficSecret)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if h.expectEOED {
		h.pendingHandshakeReadProtector = readProt
	} else if err := h.rio.setReadProtector(readProt); err != nil {
		return err
	}

	if h.cfg.KeyLog != nil {
		h.cfg.KeyLog.WriteSecret(session.LabelClientHandshakeTrafficSecret, h.clientRandom[:], h.sch.ClientHandshakeTrafficSecret)
		h.cfg.KeyLog.WriteSecret(session.LabelServerHandshakeTrafficSecret, h.clientRandom[:], h.sch.ServerHandshakeTrafficSecret)
	}
	return nil
}

// sendServerFlight sends EncryptedExtensions, an optional
// CertificateRequest, the server's Certificate/CertificateVerify
// (skipped entirely for a PSK handshake, RFC 8446 §4.2.11), and
// Finished, all under the handshake write protector set up by
// deriveHandshakeSecrets.
func (h *ServerHandshake) sendServerFlight(ch *handshake.ClientHello) error {
	ee := &handshake.EncryptedExtensions{Extensions: h.buildEncryptedExtensions(ch)}
	raw, err := ee.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(raw); err != nil {
		return err
	}
	h.tr.AddMessage(raw)

	if h.cfg.requireClientAuth {
		cr := &handshake.CertificateRequest{
			Extensions: []extension.Body{&extension.SignatureAlgorithms{Schemes: h.cfg.SignatureSchemes}},
		}
		crRaw, err := cr.Marshal()
		if err != nil {
			return alert.Fatal(alert.InternalError)
		}
		if err := h.rio.writeMessage(crRaw); err != nil {
			return err
		}
		h.tr.AddMessage(crRaw)
	}

	if !h.usesPSK {
		if err := h.sendServerCertificateFlight(ch); err != nil {
			return err
		}
	}

	finishedKey := h.sch.FinishedKey(h.sch.ServerHandshakeTrafficSecret)
	verifyData := h.sch.ComputeVerifyData(finishedKey, h.tr.Sum())
	fin := &handshake.Finished{VerifyData: verifyData}
	finRaw, err := fin.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(finRaw); err != nil {
		return err
	}
	h.tr.AddMessage(finRaw)
	return nil
}

// buildEncryptedExtensions assembles EncryptedExtensions' body: ALPN
// selection, an echoed record_size_limit, QUIC transport parameters,
// and an early_data acceptance marker, each only when both sides
// offered the matching feature.
func (h *ServerHandshake) buildEncryptedExtensions(ch *handshake.ClientHello) []extension.Body {
	var exts []extension.Body

	if alpn, ok := findExtension[*extension.ALPN](ch.Extensions); ok {
	outer:
		for _, pref := range h.cfg.ALPNProtocols {
			for _, offered := range alpn.Protocols {
				if pref == offered {
					h.selectedALPN = pref
					break outer
				}
			}
		}
		if h.selectedALPN != "" {
			exts = append(exts, &extension.ALPN{Protocols: []string{h.selectedALPN}})
		}
	}

	if clientRSL, ok := findExtension[*extension.RecordSizeLimit](ch.Extensions); ok {
		// The peer's advertised record_size_limit bounds what we may
		// send it, independent of whatever limit we echo back for it
		// to honor on its own writes (spec.md §4.4).
		h.rio.recordSizeLimit = int(clientRSL.Limit)
		if h.cfg.RecordSizeLimit > 0 {
			exts = append(exts, &extension.RecordSizeLimit{Limit: h.cfg.RecordSizeLimit})
		}
	}

	if h.cfg.QUICTransportParams != nil {
		if _, ok := findExtension[*extension.QUICTransportParametersRaw](ch.Extensions); ok {
			if raw, err := h.cfg.QUICTransportParams.Encode(); err == nil {
				exts = append(exts, raw)
			}
		}
	}

	if h.earlyAccepted {
		exts = append(exts, &extension.EarlyData{})
	}

	return exts
}

// sendServerCertificateFlight sends the server's Certificate and
// CertificateVerify.
func (h *ServerHandshake) sendServerCertificateFlight(ch *handshake.ClientHello) error {
	chain := h.cfg.CertProvider.ChainBytes()
	if len(chain) == 0 {
		return ErrNoServerCertificate
	}
	cert := &handshake.Certificate{}
	for _, der := range chain {
		cert.Entries = append(cert.Entries, handshake.CertificateEntry{CertData: der})
	}
	certRaw, err := cert.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(certRaw); err != nil {
		return err
	}
	h.tr.AddMessage(certRaw)

	var peerSchemes []extension.SignatureScheme
	if sa, ok := findExtension[*extension.SignatureAlgorithms](ch.Extensions); ok {
		peerSchemes = sa.Schemes
	}
	scheme, ok := pickSignatureScheme(h.cfg.CertProvider, peerSchemes)
	if !ok {
		return ErrNoCommonScheme
	}
	content := certificateVerifyContent(certVerifyContextServer, h.tr.Sum())
	sig, err := h.cfg.CertProvider.Sign(scheme, content)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	cv := &handshake.CertificateVerify{Algorithm: scheme, Signature: sig}
	cvRaw, err := cv.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(cvRaw); err != nil {
		return err
	}
	h.tr.AddMessage(cvRaw)
	return nil
}

// readEndOfEarlyData reads the client's EndOfEarlyData, still under
// the early read protector, then switches reads over to the
// (already-derived) handshake traffic secret.
func (h *ServerHandshake) readEndOfEarlyData() error {
	typ, body, err := h.rio.readHandshakeMessage()
	if err != nil {
		return err
	}
	if typ != handshake.TypeEndOfEarlyData {
		return alert.Fatal(alert.UnexpectedMessage)
	}
	if _, err := handshake.UnmarshalEndOfEarlyData(body); err != nil {
		return alert.Fatal(alert.DecodeError)
	}
	h.tr.AddMessage(rawHandshakeMessage(typ, body))

	if err := h.rio.setReadProtector(h.pendingHandshakeReadProtector); err != nil {
		return err
	}
	h.pendingHandshakeReadProtector = nil
	return nil
}

// readClientFlight reads the client's Certificate/CertificateVerify
// (only when requireClientAuth is set, and only verifies the
// signature when the client actually presented a non-empty chain) and
// Finished.
func (h *ServerHandshake) readClientFlight() error {
	if h.cfg.requireClientAuth {
		h.state = serverWaitCert
		typ, body, err := h.rio.readHandshakeMessage()
		if err != nil {
			return err
		}
		if typ != handshake.TypeCertificate {
			return alert.Fatal(alert.UnexpectedMessage)
		}
		cert, err := handshake.UnmarshalCertificate(body)
		if err != nil {
			return alert.Fatal(alert.DecodeError)
		}
		h.tr.AddMessage(rawHandshakeMessage(typ, body))
		for _, e := range cert.Entries {
			h.clientCertChain = append(h.clientCertChain, e.CertData)
		}

		if len(h.clientCertChain) > 0 {
			h.state = serverWaitCV
			typ, body, err = h.rio.readHandshakeMessage()
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
			content := certificateVerifyContent(certVerifyContextClient, h.tr.Sum())
			h.tr.AddMessage(rawHandshakeMessage(typ, body))

			leaf, err := x509.ParseCertificate(h.clientCertChain[0])
			if err != nil {
				return alert.Fatal(alert.BadCertificate)
			}
			if err := suite.VerifyWithPublicKey(leaf.PublicKey, cv.Algorithm, content, cv.Signature); err != nil {
				return alert.Fatal(alert.DecryptError)
			}
		}
	}

	h.state = serverWaitFinished
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
	finishedKey := h.sch.FinishedKey(h.sch.ClientHandshakeTrafficSecret)
	if !h.sch.VerifyData(finishedKey, h.tr.Sum(), fin.VerifyData) {
		return alert.Fatal(alert.DecryptError)
	}
	h.tr.AddMessage(rawHandshakeMessage(typ, body))
	return nil
}

// issueSessionTicket sends one NewSessionTicket under the application
// traffic keys and stores the corresponding ticket in cfg.SessionCache
// (RFC 8446 §4.6.1), when a cache is configured.
func (h *ServerHandshake) issueSessionTicket() error {
	if h.cfg.SessionCache == nil {
		return nil
	}
	identity, err := session.NewTicketIdentity(32)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	nonce, err := session.NewTicketIdentity(8)
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	ageAdd, err := session.NewAgeAdd()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}

	psk := h.suite.ExpandLabel(h.sch.ResumptionMasterSecret, "resumption", nonce, h.suite.HashSize())

	var exts []extension.Body
	if h.cfg.MaxEarlyDataSize > 0 {
		exts = append(exts, &extension.EarlyData{Ctx: extension.ContextNewSessionTicket, MaxEarlyDataSize: h.cfg.MaxEarlyDataSize})
	}

	nst := &handshake.NewSessionTicket{
		LifetimeSeconds: h.cfg.TicketLifetime,
		AgeAdd:          ageAdd,
		Nonce:           nonce,
		Ticket:          identity,
		Extensions:      exts,
	}
	raw, err := nst.Marshal()
	if err != nil {
		return alert.Fatal(alert.InternalError)
	}
	if err := h.rio.writeMessage(raw); err != nil {
		return err
	}

	h.cfg.SessionCache.Put(ticketCacheKey(identity), &session.Ticket{
		Identity:         identity,
		CipherSuite:      uint16(h.cipherSuite),
		ResumptionSecret: psk,
		MaxEarlyDataSize: h.cfg.MaxEarlyDataSize,
		ReceivedAt:       time.Now(),
		LifetimeSeconds:  h.cfg.TicketLifetime,
		AgeAdd:           ageAdd,
	})
	return nil
}
