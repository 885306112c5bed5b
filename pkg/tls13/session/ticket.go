// Package session implements the client/server-side collaborators
// around TLS 1.3 resumption that sit outside the wire codec proper:
// opaque ticket export/import, an NSS SSLKEYLOG-format key-log writer,
// and the server-side 0-RTT replay tracker (spec.md §3 "StrikeRegister").
package session

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNoTicket = errors.New("session: no ticket available")

// MaxTicketLifetimeSeconds is the upper bound a NewSessionTicket's
// ticket_lifetime may carry before a caller must cap or reject it
// (spec.md §3): 7 days, matching RFC 8446 §4.6.1's own SHOULD NOT
// exceed 7 days guidance.
const MaxTicketLifetimeSeconds = 7 * 24 * 60 * 60

// Ticket is everything a client needs to attempt PSK resumption (and,
// if the server allowed it, 0-RTT) on a later connection — the
// client-side counterpart to a received NewSessionTicket message, kept
// import/export-able as an opaque blob so a caller can persist it
// across process restarts (spec.md §6 "Session export/import").
type Ticket struct {
	Identity            []byte // the opaque ticket bytes from NewSessionTicket
	CipherSuite         uint16
	ResumptionSecret    []byte
	MaxEarlyDataSize    uint32
	ServerName          string
	ReceivedAt          time.Time
	LifetimeSeconds     uint32
	AgeAdd              uint32
}

// SupportsEarlyData reports whether this ticket authorizes 0-RTT.
func (t *Ticket) SupportsEarlyData() bool {
	return t.MaxEarlyDataSize > 0
}

// Expired reports whether the ticket has outlived its
// ticket_lifetime, per RFC 8446 §4.6.1 (servers MUST NOT accept a
// ticket past its lifetime; well-behaved clients discard it first).
func (t *Ticket) Expired(now time.Time) bool {
	return now.Sub(t.ReceivedAt) > time.Duration(t.LifetimeSeconds)*time.Second
}

// ObfuscatedAge computes the obfuscated_ticket_age a ClientHello's
// PSKIdentity carries for this ticket at time now, per RFC 8446
// §4.2.11: real age in milliseconds, plus age_add, wrapping mod 2^32.
func (t *Ticket) ObfuscatedAge(now time.Time) uint32 {
	realAgeMillis := uint32(now.Sub(t.ReceivedAt).Milliseconds())
	return realAgeMillis + t.AgeAdd
}

// Export serializes a Ticket to an opaque byte sequence a caller may
// store and later hand back to Import — e.g. in a file, a database
// row, or a client-side cache keyed by server name. The format is
// private to this package and may change between versions; it is not
// a wire format callers should expect to interoperate with other TLS
// stacks over.
func (t *Ticket) Export() []byte {
	var buf []byte
	buf = appendLenPrefixed(buf, t.Identity)
	buf = binary.BigEndian.AppendUint16(buf, t.CipherSuite)
	buf = appendLenPrefixed(buf, t.ResumptionSecret)
	buf = binary.BigEndian.AppendUint32(buf, t.MaxEarlyDataSize)
	buf = appendLenPrefixed(buf, []byte(t.ServerName))
	buf = binary.BigEndian.AppendUint64(buf, uint64(t.ReceivedAt.Unix()))
	buf = binary.BigEndian.AppendUint32(buf, t.LifetimeSeconds)
	buf = binary.BigEndian.AppendUint32(buf, t.AgeAdd)
	return buf
}

// Import parses a Ticket from Export's format.
func Import(data []byte) (*Ticket, error) {
	t := &Ticket{}
	var ok bool

	t.Identity, data, ok = takeLenPrefixed(data)
	if !ok {
		return nil, fmt.Errorf("session: truncated ticket")
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("session: truncated ticket")
	}
	t.CipherSuite = binary.BigEndian.Uint16(data)
	data = data[2:]

	t.ResumptionSecret, data, ok = takeLenPrefixed(data)
	if !ok {
		return nil, fmt.Errorf("session: truncated ticket")
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("session: truncated ticket")
	}
	t.MaxEarlyDataSize = binary.BigEndian.Uint32(data)
	data = data[4:]

	var nameBytes []byte
	nameBytes, data, ok = takeLenPrefixed(data)
	if !ok {
		return nil, fmt.Errorf("session: truncated ticket")
	}
	t.ServerName = string(nameBytes)

	if len(data) < 8+4+4 {
		return nil, fmt.Errorf("session: truncated ticket")
	}
	t.ReceivedAt = time.Unix(int64(binary.BigEndian.Uint64(data)), 0)
	data = data[8:]
	t.LifetimeSeconds = binary.BigEndian.Uint32(data)
	data = data[4:]
	t.AgeAdd = binary.BigEndian.Uint32(data)

	return t, nil
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func takeLenPrefixed(data []byte) (value, rest []byte, ok bool) {
	if len(data) < 4 {
		return nil, nil, false
	}
	n := binary.BigEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, false
	}
	return data[:n], data[n:], true
}

// Cache stores tickets keyed by server name, generalized from the
// teacher's per-server-name SessionCache: FIFO eviction by
// oldest-received-at once Cache reaches its capacity.
type Cache struct {
	mu      sync.RWMutex
	tickets map[string]*Ticket
	maxSize int
}

// NewCache constructs a Cache capped at maxSize entries (a
// non-positive maxSize falls back to 100, matching the teacher's
// default).
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Cache{tickets: make(map[string]*Ticket), maxSize: maxSize}
}

// Put stores a ticket, evicting the oldest entry first if the cache is
// full.
func (c *Cache) Put(serverName string, t *Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tickets[serverName]; !exists && len(c.tickets) >= c.maxSize {
		var oldestName string
		var oldestTime time.Time
		first := true
		for name, ticket := range c.tickets {
			if first || ticket.ReceivedAt.Before(oldestTime) {
				oldestName, oldestTime = name, ticket.ReceivedAt
				first = false
			}
		}
		delete(c.tickets, oldestName)
	}

	c.tickets[serverName] = t
}

// Get retrieves a non-expired ticket for serverName.
func (c *Cache) Get(serverName string) (*Ticket, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tickets[serverName]
	if !ok {
		return nil, ErrNoTicket
	}
	if t.Expired(time.Now()) {
		return nil, ErrNoTicket
	}
	return t, nil
}

// Remove discards any cached ticket for serverName — e.g. after the
// server rejects a resumption attempt.
func (c *Cache) Remove(serverName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tickets, serverName)
}

// NewTicketIdentity generates fresh random bytes suitable for use as a
// NewSessionTicket's opaque ticket field.
func NewTicketIdentity(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("session: generating ticket identity: %w", err)
	}
	return b, nil
}

// NewAgeAdd generates a fresh random ticket_age_add value (RFC 8446
// §4.6.1: "securely generated" obfuscation constant).
func NewAgeAdd() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("session: generating age_add: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
