package transcript

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestSumIsOrderSensitive(t *testing.T) {
	a := New(sha256.New)
	a.AddMessage([]byte("one"))
	a.AddMessage([]byte("two"))

	b := New(sha256.New)
	b.AddMessage([]byte("two"))
	b.AddMessage([]byte("one"))

	if bytes.Equal(a.Sum(), b.Sum()) {
		t.Fatal("transcripts with swapped message order must not match")
	}
}

func TestSumIsStableAcrossRepeatedCalls(t *testing.T) {
	tr := New(sha256.New)
	tr.AddMessage([]byte("client_hello"))
	first := tr.Sum()
	second := tr.Sum()
	if !bytes.Equal(first, second) {
		t.Fatal("Sum should be idempotent")
	}
	tr.AddMessage([]byte("server_hello"))
	third := tr.Sum()
	if bytes.Equal(first, third) {
		t.Fatal("Sum should change once a new message is added")
	}
}

func TestReplaceFirstClientHelloChangesTranscript(t *testing.T) {
	withoutRetry := New(sha256.New)
	withoutRetry.AddMessage([]byte("client_hello_1"))
	withoutRetry.AddMessage([]byte("hello_retry_request"))
	plainSum := withoutRetry.Sum()

	withRetry := New(sha256.New)
	withRetry.AddMessage([]byte("client_hello_1"))
	withRetry.ReplaceFirstClientHello()
	withRetry.AddMessage([]byte("hello_retry_request"))
	substitutedSum := withRetry.Sum()

	if bytes.Equal(plainSum, substitutedSum) {
		t.Fatal("message_hash substitution should change the transcript sum")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tr := New(sha256.New)
	tr.AddMessage([]byte("client_hello"))

	clone := tr.Clone()
	clone.AddMessage([]byte("certificate_verify"))

	if bytes.Equal(tr.Sum(), clone.Sum()) {
		t.Fatal("mutating a clone should not affect the original")
	}
}
