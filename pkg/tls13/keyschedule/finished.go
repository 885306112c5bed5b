package keyschedule

import (
	"crypto/hmac"
)

// ComputeVerifyData implements RFC 8446 §4.4.4:
//
//	verify_data = HMAC(finished_key, Transcript-Hash(Handshake Context, Certificate*, CertificateVerify*))
//
// finishedKey is FinishedKey(...)'s output; transcriptHash is the
// running transcript hash evaluated up to (but not including) this
// Finished message.
func (sch *Schedule) ComputeVerifyData(finishedKey, transcriptHash []byte) []byte {
	mac := hmac.New(sch.s.NewHash, finishedKey)
	mac.Write(transcriptHash)
	return mac.Sum(nil)
}

// VerifyData reports whether candidate matches the expected verify_data
// for finishedKey/transcriptHash, using a constant-time comparison
// (RFC 8446 §4.4.4 — Finished is itself authentication, so a timing
// leak here would undermine it).
func (sch *Schedule) VerifyData(finishedKey, transcriptHash, candidate []byte) bool {
	expected := sch.ComputeVerifyData(finishedKey, transcriptHash)
	return hmac.Equal(expected, candidate)
}

// ComputeBinder implements RFC 8446 §4.2.11.2's PSK binder: an HMAC
// under binder_key's derived finished_key over the transcript hash of
// the truncated ClientHello (everything up to but excluding the
// binders list itself).
func (sch *Schedule) ComputeBinder(truncatedClientHelloTranscriptHash []byte) []byte {
	binderFinishedKey := sch.FinishedKey(sch.BinderKey)
	return sch.ComputeVerifyData(binderFinishedKey, truncatedClientHelloTranscriptHash)
}

// VerifyBinder is ComputeBinder's server-side counterpart.
func (sch *Schedule) VerifyBinder(truncatedClientHelloTranscriptHash, candidate []byte) bool {
	expected := sch.ComputeBinder(truncatedClientHelloTranscriptHash)
	return hmac.Equal(expected, candidate)
}
