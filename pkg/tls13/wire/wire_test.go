package wire

import (
	"bytes"
	"testing"
)

func TestIntCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		want uint64
		put  func([]byte) []byte
		get  func(*Reader) (uint64, error)
	}{
		{"uint8", 0xAB, func(b []byte) []byte { return PutUint8(b, 0xAB) },
			func(r *Reader) (uint64, error) { v, err := r.Uint8(); return uint64(v), err }},
		{"uint16", 0xBEEF, func(b []byte) []byte { return PutUint16(b, 0xBEEF) },
			func(r *Reader) (uint64, error) { v, err := r.Uint16(); return uint64(v), err }},
		{"uint24", 0x123456, func(b []byte) []byte { return PutUint24(b, 0x123456) },
			func(r *Reader) (uint64, error) { v, err := r.Uint24(); return uint64(v), err }},
		{"uint32", 0xDEADBEEF, func(b []byte) []byte { return PutUint32(b, 0xDEADBEEF) },
			func(r *Reader) (uint64, error) { v, err := r.Uint32(); return uint64(v), err }},
		{"uint64", 0x0102030405060708, func(b []byte) []byte { return PutUint64(b, 0x0102030405060708) },
			func(r *Reader) (uint64, error) { return r.Uint64() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.put(nil)
			r := NewReader(buf)
			v, err := tt.get(r)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if r.Len() != 0 {
				t.Fatalf("leftover bytes: %d", r.Len())
			}
			if v != tt.want {
				t.Fatalf("decoded %#x, want %#x", v, tt.want)
			}
		})
	}
}

func TestVectorRoundTrip(t *testing.T) {
	data := []byte("hello tls 1.3")

	buf, err := PutVector8(nil, data)
	if err != nil {
		t.Fatalf("PutVector8: %v", err)
	}
	got, err := NewReader(buf).Vector8()
	if err != nil {
		t.Fatalf("Vector8: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Vector8 round trip = %q, want %q", got, data)
	}

	buf, err = PutVector16(nil, data)
	if err != nil {
		t.Fatalf("PutVector16: %v", err)
	}
	got, err = NewReader(buf).Vector16()
	if err != nil {
		t.Fatalf("Vector16: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Vector16 round trip = %q, want %q", got, data)
	}

	buf, err = PutVector24(nil, data)
	if err != nil {
		t.Fatalf("PutVector24: %v", err)
	}
	got, err = NewReader(buf).Vector24()
	if err != nil {
		t.Fatalf("Vector24: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Vector24 round trip = %q, want %q", got, data)
	}
}

func TestTruncatedReadsFail(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.Uint16(); err != ErrTruncated {
		t.Fatalf("Uint16 on short buffer: got %v, want ErrTruncated", err)
	}

	r = NewReader([]byte{0x05, 0x01, 0x02})
	if _, err := r.Vector8(); err != ErrTruncated {
		t.Fatalf("Vector8 with overlong prefix: got %v, want ErrTruncated", err)
	}
}

func TestVarintEncoding(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		want  []byte
	}{
		{"1-byte max", 63, []byte{0x3F}},
		{"2-byte min", 64, []byte{0x40, 0x40}},
		{"2-byte max", 16383, []byte{0x7F, 0xFF}},
		{"4-byte min", 16384, []byte{0x80, 0x00, 0x40, 0x00}},
		{"8-byte min", 1073741824, []byte{0xC0, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00}},
		{"zero", 0, []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := AppendVarint(nil, tt.value)
			if err != nil {
				t.Fatalf("AppendVarint() error = %v", err)
			}
			if !bytes.Equal(buf, tt.want) {
				t.Errorf("AppendVarint() = %x, want %x", buf, tt.want)
			}

			v, n, err := ParseVarint(tt.want)
			if err != nil {
				t.Fatalf("ParseVarint() error = %v", err)
			}
			if v != tt.value || n != len(tt.want) {
				t.Errorf("ParseVarint() = (%d, %d), want (%d, %d)", v, n, tt.value, len(tt.want))
			}
		})
	}
}

func TestVarintTooLarge(t *testing.T) {
	if _, err := AppendVarint(nil, MaxVarint8+1); err != ErrEncodeShort {
		t.Fatalf("AppendVarint overflow: got %v, want ErrEncodeShort", err)
	}
}
