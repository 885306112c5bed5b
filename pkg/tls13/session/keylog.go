package session

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// KeyLogLabel identifies which secret a KeyLogWriter line records, per
// the NSS SSLKEYLOGFILE format Wireshark and other packet-capture
// tooling consume.
type KeyLogLabel string

const (
	LabelClientEarlyTrafficSecret    KeyLogLabel = "CLIENT_EARLY_TRAFFIC_SECRET"
	LabelClientHandshakeTrafficSecret KeyLogLabel = "CLIENT_HANDSHAKE_TRAFFIC_SECRET"
	LabelServerHandshakeTrafficSecret KeyLogLabel = "SERVER_HANDSHAKE_TRAFFIC_SECRET"
	LabelClientTrafficSecret0       KeyLogLabel = "CLIENT_TRAFFIC_SECRET_0"
	LabelServerTrafficSecret0       KeyLogLabel = "SERVER_TRAFFIC_SECRET_0"
	LabelEarlyExporterSecret        KeyLogLabel = "EARLY_EXPORTER_SECRET"
	LabelExporterSecret             KeyLogLabel = "EXPORTER_SECRET"
)

// KeyLogWriter appends NSS-format key-log lines to an underlying
// io.Writer, guarded by a mutex since a connection's client and server
// traffic secrets may be logged from different goroutines. Each line
// is "<label> <32-byte-hex-client-random> <hex-secret>\n".
//
// This exists purely as an out-of-band debugging aid (RFC 8446 has
// nothing to say about it). The client and server handshakes write
// their traffic secrets to it only when a KeyLogWriter is set on their
// config (KeyLog / WithKeyLogWriter).
type KeyLogWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewKeyLogWriter wraps w. A nil w is valid and makes WriteSecret a
// no-op, so callers can hold a *KeyLogWriter unconditionally and only
// pay for logging when a sink was actually configured.
func NewKeyLogWriter(w io.Writer) *KeyLogWriter {
	return &KeyLogWriter{w: w}
}

// WriteSecret appends one key-log line. clientRandom must be the
// ClientHello.random of the connection the secret belongs to.
func (k *KeyLogWriter) WriteSecret(label KeyLogLabel, clientRandom, secret []byte) error {
	if k == nil || k.w == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	line := fmt.Sprintf("%s %s %s\n", label, hex.EncodeToString(clientRandom), hex.EncodeToString(secret))
	if _, err := io.WriteString(k.w, line); err != nil {
		return fmt.Errorf("session: writing key log line: %w", err)
	}
	return nil
}
