package session

import (
	"sync"
	"time"
)

// StrikeRegister is the server-side 0-RTT anti-replay tracker: a
// bounded window of (ticket identity, obfuscated ticket age) pairs the
// server has already accepted early data for, generalized from the
// teacher's per-ClientHello-random antiReplayWindow to the
// (PSK identity, obfuscated_ticket_age) pair RFC 8446 §8 recommends a
// single-use check on. A server with no better single-use enforcement
// available (no shared storage across instances) can fall back to
// this in-memory window; §8.1/§8.2's stronger mechanisms are out of
// scope here.
type StrikeRegister struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	maxSize int
}

// NewStrikeRegister constructs a window tracking up to maxSize
// recently seen (identity, age) pairs (non-positive falls back to
// 1000, matching the teacher's default).
func NewStrikeRegister(maxSize int) *StrikeRegister {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &StrikeRegister{seen: make(map[string]time.Time), maxSize: maxSize}
}

func strikeKey(ticketIdentity []byte, obfuscatedAge uint32) string {
	key := make([]byte, len(ticketIdentity)+4)
	copy(key, ticketIdentity)
	key[len(ticketIdentity)+0] = byte(obfuscatedAge >> 24)
	key[len(ticketIdentity)+1] = byte(obfuscatedAge >> 16)
	key[len(ticketIdentity)+2] = byte(obfuscatedAge >> 8)
	key[len(ticketIdentity)+3] = byte(obfuscatedAge)
	return string(key)
}

// CheckAndRemember reports whether (ticketIdentity, obfuscatedAge) has
// already been accepted for early data; if not, it records the pair so
// a later replay of the same ClientHello is rejected. The server
// should call this once, exactly when it decides to accept 0-RTT for a
// given ClientHello, and treat a true return as "reject early data,
// continue the handshake as 1-RTT" rather than aborting the connection
// (RFC 8446 §8: rejecting early data on a replay is always safe).
func (r *StrikeRegister) CheckAndRemember(ticketIdentity []byte, obfuscatedAge uint32) (replay bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strikeKey(ticketIdentity, obfuscatedAge)
	if _, exists := r.seen[key]; exists {
		return true
	}

	if len(r.seen) >= r.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, t := range r.seen {
			if first || t.Before(oldestTime) {
				oldestKey, oldestTime = k, t
				first = false
			}
		}
		delete(r.seen, oldestKey)
	}

	r.seen[key] = time.Now()
	return false
}
