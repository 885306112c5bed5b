package alert

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := Fatal(HandshakeFailure)
	buf := e.Encode(nil)
	if !bytes.Equal(buf, []byte{byte(LevelFatal), byte(HandshakeFailure)}) {
		t.Fatalf("Encode = %x", buf)
	}

	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Level != LevelFatal || got.Description != HandshakeFailure {
		t.Fatalf("Decode = %+v", got)
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(CloseNotify) {
		t.Error("close_notify must not be fatal")
	}
	if IsFatal(UserCanceled) {
		t.Error("user_canceled must not be fatal")
	}
	if !IsFatal(BadRecordMAC) {
		t.Error("bad_record_mac must be fatal")
	}
}

type fakeClassified struct{}

func (fakeClassified) Error() string       { return "fake" }
func (fakeClassified) Alert() Description  { return DecodeError }

func TestFromErrorClassifier(t *testing.T) {
	got := FromError(fakeClassified{})
	if got.Description != DecodeError {
		t.Fatalf("FromError = %v, want decode_error", got.Description)
	}
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(bytes.ErrTooLarge)
	if got.Description != InternalError {
		t.Fatalf("FromError default = %v, want internal_error", got.Description)
	}
}
