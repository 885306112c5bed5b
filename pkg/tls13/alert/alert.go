// Package alert implements the RFC 8446 §6 alert protocol: the fixed
// (level, description) pairs a TLS endpoint sends on a fatal or
// closing condition, and the mapping from the core's internal error
// kinds (spec.md §7) onto them.
package alert

import (
	"errors"
	"fmt"
)

// Level is the alert level byte: warning(1) or fatal(2).
type Level uint8

const (
	LevelWarning Level = 1
	LevelFatal   Level = 2
)

// Description is the RFC 8446 §6 alert description byte.
type Description uint8

const (
	CloseNotify            Description = 0
	UnexpectedMessage      Description = 10
	BadRecordMAC           Description = 20
	HandshakeFailure       Description = 40
	BadCertificate         Description = 42
	UnsupportedCertificate Description = 43
	CertificateExpired     Description = 45
	CertificateUnknown     Description = 46
	IllegalParameter       Description = 47
	UnknownCA              Description = 48
	AccessDenied           Description = 49
	DecodeError            Description = 50
	DecryptError           Description = 51
	ProtocolVersion        Description = 70
	InsufficientSecurity   Description = 71
	InternalError          Description = 80
	InappropriateFallback  Description = 86
	UserCanceled           Description = 90
	MissingExtension       Description = 109
	UnsupportedExtension   Description = 110
	UnrecognizedName       Description = 112
	CertificateRequired    Description = 116
	NoApplicationProtocol  Description = 120
)

func (d Description) String() string {
	switch d {
	case CloseNotify:
		return "close_notify"
	case UnexpectedMessage:
		return "unexpected_message"
	case BadRecordMAC:
		return "bad_record_mac"
	case HandshakeFailure:
		return "handshake_failure"
	case BadCertificate:
		return "bad_certificate"
	case UnsupportedCertificate:
		return "unsupported_certificate"
	case CertificateExpired:
		return "certificate_expired"
	case CertificateUnknown:
		return "certificate_unknown"
	case IllegalParameter:
		return "illegal_parameter"
	case UnknownCA:
		return "unknown_ca"
	case AccessDenied:
		return "access_denied"
	case DecodeError:
		return "decode_error"
	case DecryptError:
		return "decrypt_error"
	case ProtocolVersion:
		return "protocol_version"
	case InsufficientSecurity:
		return "insufficient_security"
	case InternalError:
		return "internal_error"
	case InappropriateFallback:
		return "inappropriate_fallback"
	case UserCanceled:
		return "user_canceled"
	case MissingExtension:
		return "missing_extension"
	case UnsupportedExtension:
		return "unsupported_extension"
	case UnrecognizedName:
		return "unrecognized_name"
	case CertificateRequired:
		return "certificate_required"
	case NoApplicationProtocol:
		return "no_application_protocol"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// Error is a TLS alert carried as a Go error. Returning one from a
// handshake or Conn method does not put it on the wire: the only alert
// a Conn writes is the close_notify sent by Close, and a connection is
// not drained after a fatal error.
type Error struct {
	Level       Level
	Description Description
}

func (e *Error) Error() string {
	return fmt.Sprintf("tls: alert %s", e.Description)
}

// Fatal constructs a fatal alert error.
func Fatal(d Description) *Error {
	return &Error{Level: LevelFatal, Description: d}
}

// Warning constructs a warning-level alert error (only close_notify
// and user_canceled are non-fatal per spec.md §4.6).
func Warning(d Description) *Error {
	return &Error{Level: LevelWarning, Description: d}
}

// IsFatal reports whether closing on receipt of this alert is required.
// Per spec.md §4.6, only close_notify and user_canceled are not fatal.
func IsFatal(d Description) bool {
	return d != CloseNotify && d != UserCanceled
}

// Encode appends the 2-byte alert record body.
func (e *Error) Encode(buf []byte) []byte {
	return append(buf, byte(e.Level), byte(e.Description))
}

// Decode parses a 2-byte alert record body.
func Decode(buf []byte) (*Error, error) {
	if len(buf) != 2 {
		return nil, fmt.Errorf("alert: malformed record, length %d", len(buf))
	}
	return &Error{Level: Level(buf[0]), Description: Description(buf[1])}, nil
}

// Classifier is implemented by the sentinel error kinds defined across
// pkg/tls13 (wire.ErrTruncated, record.ErrBadRecordMAC, ...) so that
// FromError can map them onto the RFC 8446 §6 alert spec.md §7 requires,
// without the alert package importing any of those packages back.
type Classifier interface {
	error
	Alert() Description
}

// FromError maps an internal error onto the alert it must produce, per
// the spec.md §7 table. A *Error is returned unchanged. An error with
// no Classifier and no recognized stdlib shape maps to internal_error,
// the spec.md §7 "Resource" catch-all.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var c Classifier
	if errors.As(err, &c) {
		return Fatal(c.Alert())
	}

	return Fatal(InternalError)
}
