package handshake

import (
	"fmt"

	"github.com/yourusername/tls13/pkg/tls13/extension"
	"github.com/yourusername/tls13/pkg/tls13/wire"
)

// CertificateEntry is one (cert_data, extensions) pair in a Certificate
// message's list (spec.md §4.3).
type CertificateEntry struct {
	CertData   []byte // DER-encoded X.509, opaque<1..2^24-1>
	Extensions []extension.Body
}

func (e CertificateEntry) length() (int, error) {
	extBytes, err := extension.EncodeList(nil, e.Extensions)
	if err != nil {
		return 0, err
	}
	return 3 + len(e.CertData) + len(extBytes), nil
}

func (e CertificateEntry) appendTo(buf []byte) ([]byte, error) {
	var err error
	buf, err = wire.PutVector24(buf, e.CertData)
	if err != nil {
		return nil, err
	}
	return extension.EncodeList(buf, e.Extensions)
}

// Certificate carries the certificate_request_context (empty for
// server authentication, spec.md §4.3) and the certificate chain.
type Certificate struct {
	RequestContext []byte
	Entries        []CertificateEntry
}

func (c *Certificate) marshalBody() ([]byte, error) {
	var err error
	buf, err := wire.PutVector8(nil, c.RequestContext)
	if err != nil {
		return nil, err
	}

	var list []byte
	for _, e := range c.Entries {
		list, err = e.appendTo(list)
		if err != nil {
			return nil, err
		}
	}
	return wire.PutVector24(buf, list)
}

func (c *Certificate) Marshal() ([]byte, error) {
	body, err := c.marshalBody()
	if err != nil {
		return nil, err
	}
	header := append([]byte{byte(TypeCertificate)}, wire.PutUint24(nil, uint32(len(body)))...)
	return append(header, body...), nil
}

func UnmarshalCertificate(body []byte) (*Certificate, error) {
	r := wire.NewReader(body)

	reqCtx, err := r.Vector8()
	if err != nil {
		return nil, fmt.Errorf("certificate: request_context: %w", err)
	}

	list, err := r.Vector24()
	if err != nil {
		return nil, fmt.Errorf("certificate: cert_list: %w", err)
	}

	lr := wire.NewReader(list)
	var entries []CertificateEntry
	for lr.Len() > 0 {
		certData, err := lr.Vector24()
		if err != nil {
			return nil, fmt.Errorf("certificate: cert_data: %w", err)
		}
		exts, err := extension.DecodeList(extension.ContextCertificateEntry, lr)
		if err != nil {
			return nil, fmt.Errorf("certificate: entry extensions: %w", err)
		}
		entries = append(entries, CertificateEntry{CertData: certData, Extensions: exts})
	}

	return &Certificate{RequestContext: reqCtx, Entries: entries}, nil
}

// CertificateRequest solicits a client certificate (spec.md §4.3). The
// signature_algorithms extension is mandatory; this implementation
// always includes it and ignores any certificate_authorities it
// cannot act on, since validating against a trust store is out of
// scope (spec.md §1 Non-goals).
type CertificateRequest struct {
	RequestContext []byte
	Extensions     []extension.Body
}

func (c *CertificateRequest) marshalBody() ([]byte, error) {
	buf, err := wire.PutVector8(nil, c.RequestContext)
	if err != nil {
		return nil, err
	}
	return extension.EncodeList(buf, c.Extensions)
}

func (c *CertificateRequest) Marshal() ([]byte, error) {
	body, err := c.marshalBody()
	if err != nil {
		return nil, err
	}
	header := append([]byte{byte(TypeCertificateRequest)}, wire.PutUint24(nil, uint32(len(body)))...)
	return append(header, body...), nil
}

func UnmarshalCertificateRequest(body []byte) (*CertificateRequest, error) {
	r := wire.NewReader(body)

	reqCtx, err := r.Vector8()
	if err != nil {
		return nil, fmt.Errorf("certificate_request: request_context: %w", err)
	}
	exts, err := extension.DecodeList(extension.ContextCertificateRequest, r)
	if err != nil {
		return nil, fmt.Errorf("certificate_request: %w", err)
	}
	return &CertificateRequest{RequestContext: reqCtx, Extensions: exts}, nil
}

// CertificateVerify carries the signature over the transcript that
// proves possession of the certificate's private key (spec.md §4.3).
type CertificateVerify struct {
	Algorithm extension.SignatureScheme
	Signature []byte
}

func (c *CertificateVerify) marshalBody() ([]byte, error) {
	buf := wire.PutUint16(nil, uint16(c.Algorithm))
	return wire.PutVector16(buf, c.Signature)
}

func (c *CertificateVerify) Marshal() ([]byte, error) {
	body, err := c.marshalBody()
	if err != nil {
		return nil, err
	}
	header := append([]byte{byte(TypeCertificateVerify)}, wire.PutUint24(nil, uint32(len(body)))...)
	return append(header, body...), nil
}

func UnmarshalCertificateVerify(body []byte) (*CertificateVerify, error) {
	r := wire.NewReader(body)
	alg, err := r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("certificate_verify: algorithm: %w", err)
	}
	sig, err := r.Vector16()
	if err != nil {
		return nil, fmt.Errorf("certificate_verify: signature: %w", err)
	}
	return &CertificateVerify{Algorithm: extension.SignatureScheme(alg), Signature: sig}, nil
}

// Finished carries exactly Hash.output_size bytes of HMAC over the
// transcript (spec.md §4.3).
type Finished struct {
	VerifyData []byte
}

func (f *Finished) Marshal() ([]byte, error) {
	header := append([]byte{byte(TypeFinished)}, wire.PutUint24(nil, uint32(len(f.VerifyData)))...)
	return append(header, f.VerifyData...), nil
}

func UnmarshalFinished(body []byte) (*Finished, error) {
	out := make([]byte, len(body))
	copy(out, body)
	return &Finished{VerifyData: out}, nil
}
