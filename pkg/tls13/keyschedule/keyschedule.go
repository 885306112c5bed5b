// Package keyschedule implements the RFC 8446 §7.1 key schedule: the
// HKDF-Extract/Expand-Label ladder from (PSK | 0) through the early,
// handshake, and master secrets, down to the traffic secrets each
// record-protection direction derives its keys from.
package keyschedule

import (
	"github.com/yourusername/tls13/pkg/tls13/suite"
)

// Schedule walks one connection's key schedule in lock-step with the
// handshake state machine: callers call each Derive* method exactly
// once, in the RFC 8446 §7.1 diagram's top-to-bottom order, threading
// the previous stage's output into the next and supplying the
// transcript hash available at that point.
//
//	              0
//	              |
//	              v
//	    PSK ->  HKDF-Extract = Early Secret
//	              |
//	              +-----> Derive-Secret(., "ext binder" | "res binder", "")
//	              |                     = binder_key
//	              |
//	              +-----> Derive-Secret(., "c e traffic", ClientHello)
//	              |                     = client_early_traffic_secret
//	              |
//	              +-----> Derive-Secret(., "e exp master", ClientHello)
//	              |                     = early_exporter_master_secret
//	              v
//	    Derive-Secret(., "derived", "")
//	              |
//	              v
//	  (EC)DHE -> HKDF-Extract = Handshake Secret
//	              |
//	              +-----> Derive-Secret(., "c hs traffic", CH..SH)
//	              |                     = client_handshake_traffic_secret
//	              |
//	              +-----> Derive-Secret(., "s hs traffic", CH..SH)
//	              |                     = server_handshake_traffic_secret
//	              v
//	    Derive-Secret(., "derived", "")
//	              |
//	              v
//	     0 -> HKDF-Extract = Master Secret
//	              |
//	              +-----> Derive-Secret(., "c ap traffic", CH..server Finished)
//	              |                     = client_application_traffic_secret_0
//	              +-----> Derive-Secret(., "s ap traffic", CH..server Finished)
//	              |                     = server_application_traffic_secret_0
//	              +-----> Derive-Secret(., "exp master", CH..server Finished)
//	              |                     = exporter_master_secret
//	              +-----> Derive-Secret(., "res master", CH..client Finished)
//	                                    = resumption_master_secret
type Schedule struct {
	s *suite.Suite

	earlySecret     []byte
	handshakeSecret []byte
	masterSecret    []byte

	BinderKey                      []byte
	ClientEarlyTrafficSecret       []byte
	EarlyExporterMasterSecret      []byte
	ClientHandshakeTrafficSecret   []byte
	ServerHandshakeTrafficSecret   []byte
	ClientApplicationTrafficSecret []byte
	ServerApplicationTrafficSecret []byte
	ExporterMasterSecret           []byte
	ResumptionMasterSecret         []byte
}

// New starts a key schedule bound to suite s. The caller is
// responsible for calling the Derive* stages in order; nothing here
// enforces that ordering beyond the data dependencies between stages.
func New(s *suite.Suite) *Schedule {
	return &Schedule{s: s}
}

// deriveSecret implements RFC 8446 §7.1's Derive-Secret(Secret, Label,
// Messages) = HKDF-Expand-Label(Secret, Label, Transcript-Hash(Messages), Hash.length).
func (sch *Schedule) deriveSecret(secret []byte, label string, transcriptHash []byte) []byte {
	return sch.s.ExpandLabel(secret, label, transcriptHash, sch.s.HashSize())
}

// zeroOfHashLen returns an all-zero IKM/salt of the suite's hash
// length, standing in for "0" in the RFC 8446 §7.1 diagram.
func (sch *Schedule) zeroOfHashLen() []byte {
	return make([]byte, sch.s.HashSize())
}

// DeriveEarlySecret runs the first HKDF-Extract, binding in psk (the
// resumption/external PSK; a nil psk is replaced by an all-zero IKM of
// the hash length).
func (sch *Schedule) DeriveEarlySecret(psk []byte) {
	if psk == nil {
		psk = sch.zeroOfHashLen()
	}
	sch.earlySecret = sch.s.Extract(sch.zeroOfHashLen(), psk)
}

// DeriveBinderKey computes binder_key for either an external
// (isResumption=false) or resumption (isResumption=true) PSK, per RFC
// 8446 §7.1's "ext binder"/"res binder" label choice.
func (sch *Schedule) DeriveBinderKey(isResumption bool) {
	label := "ext binder"
	if isResumption {
		label = "res binder"
	}
	sch.BinderKey = sch.deriveSecret(sch.earlySecret, label, sch.emptyTranscriptHash())
}

// DeriveEarlyTrafficSecrets computes the 0-RTT traffic/exporter secrets
// once the ClientHello (and, for a PSK binder, its completed binder)
// transcript hash is known.
func (sch *Schedule) DeriveEarlyTrafficSecrets(transcriptHashThroughClientHello []byte) {
	sch.ClientEarlyTrafficSecret = sch.deriveSecret(sch.earlySecret, "c e traffic", transcriptHashThroughClientHello)
	sch.EarlyExporterMasterSecret = sch.deriveSecret(sch.earlySecret, "e exp master", transcriptHashThroughClientHello)
}

// DeriveHandshakeSecret runs the second HKDF-Extract over the (EC)DHE
// shared secret, after "salting" with Derive-Secret(EarlySecret,
// "derived", "").
func (sch *Schedule) DeriveHandshakeSecret(sharedSecret []byte) {
	salt := sch.deriveSecret(sch.earlySecretOrZero(), "derived", sch.emptyTranscriptHash())
	sch.handshakeSecret = sch.s.Extract(salt, sharedSecret)
}

// earlySecretOrZero lets DeriveHandshakeSecret run correctly even when
// DeriveEarlySecret was never called (no PSK in play): RFC 8446 §7.1's
// "Early Secret" node is present on every connection, PSK or not, the
// diagram just elides it when psk is "0".
func (sch *Schedule) earlySecretOrZero() []byte {
	if sch.earlySecret != nil {
		return sch.earlySecret
	}
	return sch.s.Extract(sch.zeroOfHashLen(), sch.zeroOfHashLen())
}

// DeriveHandshakeTrafficSecrets computes the Handshake-protected
// traffic secrets from the transcript hash through ServerHello.
func (sch *Schedule) DeriveHandshakeTrafficSecrets(transcriptHashThroughServerHello []byte) {
	sch.ClientHandshakeTrafficSecret = sch.deriveSecret(sch.handshakeSecret, "c hs traffic", transcriptHashThroughServerHello)
	sch.ServerHandshakeTrafficSecret = sch.deriveSecret(sch.handshakeSecret, "s hs traffic", transcriptHashThroughServerHello)
}

// DeriveMasterSecret runs the third and final HKDF-Extract, salted the
// same way as the handshake secret, with an all-zero IKM.
func (sch *Schedule) DeriveMasterSecret() {
	salt := sch.deriveSecret(sch.handshakeSecret, "derived", sch.emptyTranscriptHash())
	sch.masterSecret = sch.s.Extract(salt, sch.zeroOfHashLen())
}

// DeriveApplicationTrafficSecrets computes
// client/server_application_traffic_secret_0 and
// exporter_master_secret from the transcript hash through the server's
// Finished message.
func (sch *Schedule) DeriveApplicationTrafficSecrets(transcriptHashThroughServerFinished []byte) {
	sch.ClientApplicationTrafficSecret = sch.deriveSecret(sch.masterSecret, "c ap traffic", transcriptHashThroughServerFinished)
	sch.ServerApplicationTrafficSecret = sch.deriveSecret(sch.masterSecret, "s ap traffic", transcriptHashThroughServerFinished)
	sch.ExporterMasterSecret = sch.deriveSecret(sch.masterSecret, "exp master", transcriptHashThroughServerFinished)
}

// DeriveResumptionMasterSecret computes resumption_master_secret from
// the transcript hash through the client's Finished message, for
// NewSessionTicket issuance.
func (sch *Schedule) DeriveResumptionMasterSecret(transcriptHashThroughClientFinished []byte) {
	sch.ResumptionMasterSecret = sch.deriveSecret(sch.masterSecret, "res master", transcriptHashThroughClientFinished)
}

// emptyTranscriptHash returns Transcript-Hash(""), needed by the two
// "derived" salt stages which run before any handshake message exists.
func (sch *Schedule) emptyTranscriptHash() []byte {
	h := sch.s.NewHash()
	return h.Sum(nil)
}

// TrafficKeys is the (key, iv) pair a record-layer direction derives
// from its traffic secret (RFC 8446 §7.3).
type TrafficKeys struct {
	Key []byte
	IV  []byte
}

// DeriveTrafficKeys computes [sender]_write_key/iv from a traffic
// secret via HKDF-Expand-Label(Secret, "key"/"iv", "", key/iv length).
func (sch *Schedule) DeriveTrafficKeys(trafficSecret []byte) TrafficKeys {
	return TrafficKeys{
		Key: sch.s.ExpandLabel(trafficSecret, "key", nil, sch.s.KeyLen),
		IV:  sch.s.ExpandLabel(trafficSecret, "iv", nil, sch.s.IVLen),
	}
}

// UpdateTrafficSecret implements the RFC 8446 §7.2 KeyUpdate ratchet:
// application_traffic_secret_N+1 = HKDF-Expand-Label(application_traffic_secret_N, "traffic upd", "", Hash.length).
func (sch *Schedule) UpdateTrafficSecret(trafficSecret []byte) []byte {
	return sch.s.ExpandLabel(trafficSecret, "traffic upd", nil, sch.s.HashSize())
}

// FinishedKey derives finished_key = HKDF-Expand-Label(BaseKey,
// "finished", "", Hash.length) for either the client or server
// handshake traffic secret (RFC 8446 §4.4.4).
func (sch *Schedule) FinishedKey(handshakeTrafficSecret []byte) []byte {
	return sch.s.ExpandLabel(handshakeTrafficSecret, "finished", nil, sch.s.HashSize())
}
