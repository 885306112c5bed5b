package conn

import (
	"io"

	"github.com/yourusername/tls13/pkg/tls13/alert"
	"github.com/yourusername/tls13/pkg/tls13/handshake"
	"github.com/yourusername/tls13/pkg/tls13/record"
)

// Transport is the streaming byte source/sink the core consumes
// (spec.md §6 "Network"): it does not open sockets, only reads and
// writes an already-established stream.
type Transport interface {
	io.Reader
	io.Writer
}

// recordIO is the record-layer glue both ClientHandshake and
// ServerHandshake drive: it fragments/coalesces handshake messages
// into TLSPlaintext/TLSCiphertext records, seals/opens them under
// whichever Protector is current for each direction, and reassembles
// handshake messages that arrive split across records.
type recordIO struct {
	nc Transport

	writeProtector *record.Protector
	readProtector  *record.Protector

	reassembler record.Reassembler

	recordSizeLimit int // plaintext fragment cap for outgoing records
	sentCompatCCS   bool
}

func newRecordIO(nc Transport) *recordIO {
	return &recordIO{nc: nc, recordSizeLimit: record.DefaultRecordSizeLimit}
}

func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// setWriteProtector installs the Protector used for every subsequent
// outgoing record; nil reverts to plaintext (used only before the
// first key change).
func (rio *recordIO) setWriteProtector(p *record.Protector) {
	rio.writeProtector = p
}

// setReadProtector installs the Protector used for every subsequent
// incoming record. Per spec.md §9 Open Question (2), an epoch change
// while a handshake message is still being reassembled is rejected
// rather than silently spanning the boundary.
func (rio *recordIO) setReadProtector(p *record.Protector) error {
	if rio.reassembler.Pending() > 0 {
		return alert.Fatal(alert.UnexpectedMessage)
	}
	rio.readProtector = p
	return nil
}

func writeAll(w io.Writer, buf []byte) error {
	_, err := w.Write(buf)
	return err
}

// writeCompatCCS sends the single middlebox-compatibility
// change_cipher_spec record (spec.md §4.4), at most once per
// connection.
func (rio *recordIO) writeCompatCCS() error {
	if rio.sentCompatCCS {
		return nil
	}
	rio.sentCompatCCS = true
	header := record.AppendPlaintextHeader(nil, record.ContentTypeChangeCipherSpec, 1)
	return writeAll(rio.nc, append(header, 0x01))
}

// writeMessage sends one full handshake message, fragmenting it across
// as many records as recordSizeLimit requires and sealing each
// fragment under the current write Protector (or sending it in the
// clear if none is set yet).
func (rio *recordIO) writeMessage(raw []byte) error {
	for _, frag := range record.FragmentForRecords(raw, rio.recordSizeLimit) {
		if err := rio.writeFragment(record.ContentTypeHandshake, frag); err != nil {
			return err
		}
	}
	return nil
}

func (rio *recordIO) writeFragment(typ record.ContentType, fragment []byte) error {
	if rio.writeProtector == nil {
		header := record.AppendPlaintextHeader(nil, typ, len(fragment))
		return writeAll(rio.nc, append(header, fragment...))
	}

	inner := record.AppendInnerPlaintext(fragment, typ, 0)
	cipherLen := len(inner) + rio.writeProtector.Overhead()
	header := record.AppendPlaintextHeader(nil, record.ContentTypeApplicationData, cipherLen)
	ciphertext := rio.writeProtector.Seal(inner, header)
	return writeAll(rio.nc, append(header, ciphertext...))
}

// writeAlert sends a fatal or warning alert as its own record, sealed
// under whatever Protector (if any) currently protects writes.
func (rio *recordIO) writeAlert(a *alert.Error) error {
	return rio.writeFragment(record.ContentTypeAlert, a.Encode(nil))
}

// readRecordPlaintext reads and, if necessary, decrypts exactly one
// record, returning its true content type and plaintext payload. A
// middlebox-compatibility CCS is consumed and reported back as
// ContentTypeChangeCipherSpec with a nil payload so callers can drop
// it without feeding it to the transcript or reassembler.
func (rio *recordIO) readRecordPlaintext() (record.ContentType, []byte, error) {
	hdr, err := readFull(rio.nc, 5)
	if err != nil {
		return 0, nil, err
	}
	typ := record.ContentType(hdr[0])
	length := int(hdr[3])<<8 | int(hdr[4])
	if length > record.MaxCiphertextLen {
		return 0, nil, alert.Fatal(alert.DecodeError)
	}
	body, err := readFull(rio.nc, length)
	if err != nil {
		return 0, nil, err
	}

	if typ == record.ContentTypeChangeCipherSpec {
		// A non-compatibility-mode CCS byte is a protocol violation,
		// not a middlebox artifact, at any point in the handshake
		// (spec.md §4.4).
		if !record.IsCompatibilityCCS(body) {
			return 0, nil, alert.Fatal(alert.UnexpectedMessage)
		}
		return record.ContentTypeChangeCipherSpec, nil, nil
	}

	if rio.readProtector == nil {
		return typ, body, nil
	}

	if typ != record.ContentTypeApplicationData {
		return 0, nil, alert.Fatal(alert.UnexpectedMessage)
	}
	plain, err := rio.readProtector.Open(body, hdr)
	if err != nil {
		return 0, nil, alert.Fatal(alert.BadRecordMAC)
	}
	content, realTyp, err := record.StripInnerPlaintext(plain)
	if err != nil {
		return 0, nil, alert.Fatal(alert.DecodeError)
	}
	return realTyp, content, nil
}

// readHandshakeMessage returns the next complete handshake message,
// transparently pulling and decrypting as many records as needed and
// dropping compatibility CCS records along the way. An Alert record
// from the peer is surfaced as an error.
func (rio *recordIO) readHandshakeMessage() (handshake.Type, []byte, error) {
	for {
		if typ, body, ok, err := rio.reassembler.Next(); err != nil {
			return 0, nil, err
		} else if ok {
			return typ, body, nil
		}

		ct, payload, err := rio.readRecordPlaintext()
		if err != nil {
			return 0, nil, err
		}
		switch ct {
		case record.ContentTypeChangeCipherSpec:
			continue
		case record.ContentTypeHandshake:
			rio.reassembler.Feed(payload)
		case record.ContentTypeAlert:
			a, decodeErr := alert.Decode(payload)
			if decodeErr != nil {
				return 0, nil, alert.Fatal(alert.DecodeError)
			}
			return 0, nil, a
		default:
			return 0, nil, alert.Fatal(alert.UnexpectedMessage)
		}
	}
}

// readApplicationRecord returns the next decrypted application_data
// payload, transparently absorbing interleaved alerts (surfaced as
// errors), CCS, and handshake-content-type records (fed to a caller
// supplied sink, e.g. for post-handshake NewSessionTicket/KeyUpdate).
func (rio *recordIO) readApplicationRecord(onHandshake func([]byte) error) ([]byte, error) {
	for {
		ct, payload, err := rio.readRecordPlaintext()
		if err != nil {
			return nil, err
		}
		switch ct {
		case record.ContentTypeChangeCipherSpec:
			continue
		case record.ContentTypeApplicationData:
			return payload, nil
		case record.ContentTypeHandshake:
			if onHandshake == nil {
				return nil, alert.Fatal(alert.UnexpectedMessage)
			}
			rio.reassembler.Feed(payload)
			for {
				typ, body, ok, nerr := rio.reassembler.Next()
				if nerr != nil {
					return nil, nerr
				}
				if !ok {
					break
				}
				if err := onHandshake(append([]byte{byte(typ)}, body...)); err != nil {
					return nil, err
				}
			}
		case record.ContentTypeAlert:
			a, decodeErr := alert.Decode(payload)
			if decodeErr != nil {
				return nil, alert.Fatal(alert.DecodeError)
			}
			return nil, a
		default:
			return nil, alert.Fatal(alert.UnexpectedMessage)
		}
	}
}
