package session

import (
	"bytes"
	"testing"
	"time"
)

func TestTicketExportImportRoundTrip(t *testing.T) {
	orig := &Ticket{
		Identity:         []byte{0xAA, 0xBB, 0xCC},
		CipherSuite:      0x1301,
		ResumptionSecret: bytes.Repeat([]byte{0x01}, 32),
		MaxEarlyDataSize: 16384,
		ServerName:       "example.com",
		ReceivedAt:       time.Unix(1700000000, 0),
		LifetimeSeconds:  86400,
		AgeAdd:           0xDEADBEEF,
	}

	blob := orig.Export()
	got, err := Import(blob)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if !bytes.Equal(got.Identity, orig.Identity) ||
		got.CipherSuite != orig.CipherSuite ||
		!bytes.Equal(got.ResumptionSecret, orig.ResumptionSecret) ||
		got.MaxEarlyDataSize != orig.MaxEarlyDataSize ||
		got.ServerName != orig.ServerName ||
		!got.ReceivedAt.Equal(orig.ReceivedAt) ||
		got.LifetimeSeconds != orig.LifetimeSeconds ||
		got.AgeAdd != orig.AgeAdd {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, orig)
	}
}

func TestImportRejectsTruncatedData(t *testing.T) {
	if _, err := Import([]byte{0x00, 0x00, 0x00}); err == nil {
		t.Fatal("expected error for truncated ticket data")
	}
}

func TestTicketExpired(t *testing.T) {
	tk := &Ticket{ReceivedAt: time.Now().Add(-2 * time.Hour), LifetimeSeconds: 3600}
	if !tk.Expired(time.Now()) {
		t.Fatal("expected ticket to be expired")
	}

	fresh := &Ticket{ReceivedAt: time.Now(), LifetimeSeconds: 3600}
	if fresh.Expired(time.Now()) {
		t.Fatal("did not expect fresh ticket to be expired")
	}
}

func TestTicketSupportsEarlyData(t *testing.T) {
	if (&Ticket{MaxEarlyDataSize: 0}).SupportsEarlyData() {
		t.Fatal("zero MaxEarlyDataSize must not support early data")
	}
	if !(&Ticket{MaxEarlyDataSize: 1}).SupportsEarlyData() {
		t.Fatal("non-zero MaxEarlyDataSize must support early data")
	}
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	c := NewCache(2)
	now := time.Now()
	c.Put("a", &Ticket{ReceivedAt: now.Add(-3 * time.Second), LifetimeSeconds: 1000})
	c.Put("b", &Ticket{ReceivedAt: now.Add(-2 * time.Second), LifetimeSeconds: 1000})
	c.Put("c", &Ticket{ReceivedAt: now.Add(-1 * time.Second), LifetimeSeconds: 1000})

	if _, err := c.Get("a"); err == nil {
		t.Fatal("expected oldest entry 'a' to have been evicted")
	}
	if _, err := c.Get("c"); err != nil {
		t.Fatalf("expected 'c' to still be cached: %v", err)
	}
}

func TestCacheGetRejectsExpired(t *testing.T) {
	c := NewCache(10)
	c.Put("stale", &Ticket{ReceivedAt: time.Now().Add(-48 * time.Hour), LifetimeSeconds: 3600})
	if _, err := c.Get("stale"); err != ErrNoTicket {
		t.Fatalf("err = %v, want ErrNoTicket", err)
	}
}

func TestCacheRemove(t *testing.T) {
	c := NewCache(10)
	c.Put("x", &Ticket{ReceivedAt: time.Now(), LifetimeSeconds: 3600})
	c.Remove("x")
	if _, err := c.Get("x"); err != ErrNoTicket {
		t.Fatalf("err = %v, want ErrNoTicket after Remove", err)
	}
}

func TestStrikeRegisterDetectsReplay(t *testing.T) {
	r := NewStrikeRegister(10)
	identity := []byte{0x01, 0x02, 0x03}

	if replay := r.CheckAndRemember(identity, 42); replay {
		t.Fatal("first use must not be flagged as a replay")
	}
	if replay := r.CheckAndRemember(identity, 42); !replay {
		t.Fatal("second use of the same (identity, age) must be flagged as a replay")
	}
	if replay := r.CheckAndRemember(identity, 43); replay {
		t.Fatal("a different obfuscated age must not collide with a prior entry")
	}
}

func TestStrikeRegisterEvictsOldestWhenFull(t *testing.T) {
	r := NewStrikeRegister(2)
	r.CheckAndRemember([]byte("a"), 1)
	r.CheckAndRemember([]byte("b"), 1)
	r.CheckAndRemember([]byte("c"), 1)

	if replay := r.CheckAndRemember([]byte("a"), 1); replay {
		t.Fatal("expected 'a' to have been evicted and thus not flagged as a replay")
	}
}

func TestKeyLogWriterFormatsNSSLine(t *testing.T) {
	var buf bytes.Buffer
	klw := NewKeyLogWriter(&buf)

	clientRandom := bytes.Repeat([]byte{0xAB}, 32)
	secret := bytes.Repeat([]byte{0xCD}, 32)
	if err := klw.WriteSecret(LabelClientHandshakeTrafficSecret, clientRandom, secret); err != nil {
		t.Fatalf("WriteSecret: %v", err)
	}

	line := buf.String()
	wantPrefix := "CLIENT_HANDSHAKE_TRAFFIC_SECRET "
	if len(line) < len(wantPrefix) || line[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("line = %q, want prefix %q", line, wantPrefix)
	}
	if line[len(line)-1] != '\n' {
		t.Fatal("expected line to be newline-terminated")
	}
}

func TestKeyLogWriterNilSinkIsNoOp(t *testing.T) {
	klw := NewKeyLogWriter(nil)
	if err := klw.WriteSecret(LabelExporterSecret, []byte{1}, []byte{2}); err != nil {
		t.Fatalf("expected nil-sink WriteSecret to be a no-op, got %v", err)
	}
}
