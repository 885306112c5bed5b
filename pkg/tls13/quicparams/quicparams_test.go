package quicparams

import (
	"bytes"
	"testing"

	"github.com/yourusername/tls13/pkg/tls13/extension"
)

func TestDefaultEncodeDecodeRoundTrip(t *testing.T) {
	p := Default()
	p.InitialSourceConnectionID = []byte{0xDE, 0xAD, 0xBE, 0xEF}

	raw, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.MaxIdleTimeout != p.MaxIdleTimeout ||
		decoded.InitialMaxData != p.InitialMaxData ||
		decoded.InitialMaxStreamsBidi != p.InitialMaxStreamsBidi {
		t.Fatalf("decoded = %+v, want fields matching %+v", decoded, p)
	}
	if !bytes.Equal(decoded.InitialSourceConnectionID, p.InitialSourceConnectionID) {
		t.Fatalf("InitialSourceConnectionID = %x, want %x", decoded.InitialSourceConnectionID, p.InitialSourceConnectionID)
	}
}

func TestDisableActiveMigrationRoundTrip(t *testing.T) {
	p := Default()
	p.DisableActiveMigration = true

	raw, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.DisableActiveMigration {
		t.Fatal("expected disable_active_migration to round-trip as true")
	}
}

func TestUnrecognizedParameterPreservedOnRoundTrip(t *testing.T) {
	p := Default()
	greaseID := ID(27 + 31*3)
	p.Unrecognized = []RawParameter{{ID: greaseID, Value: []byte{0x01, 0x02, 0x03}}}

	raw, err := p.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Unrecognized) != 1 {
		t.Fatalf("got %d unrecognized params, want 1", len(decoded.Unrecognized))
	}
	got := decoded.Unrecognized[0]
	if got.ID != greaseID || !bytes.Equal(got.Value, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("unrecognized param = %+v", got)
	}
	if !IsGREASE(greaseID) {
		t.Fatalf("expected %d to be recognized as a GREASE id", greaseID)
	}
}

func TestDisableActiveMigrationRejectsNonEmptyValue(t *testing.T) {
	// Hand-craft a malformed disable_active_migration with a non-empty value.
	malformed := []byte{0x0c, 0x01, 0xFF}
	if _, err := Decode(&extension.QUICTransportParametersRaw{Body: malformed}); err == nil {
		t.Fatal("expected error for non-empty disable_active_migration value")
	}
}
