package conn

import "errors"

var (
	ErrHandshakeNotComplete = errors.New("conn: handshake has not completed")
	ErrNoCommonCipherSuite  = errors.New("conn: no cipher suite in common with peer")
	ErrNoCommonGroup        = errors.New("conn: no key-exchange group in common with peer")
	ErrNoCommonScheme       = errors.New("conn: no signature scheme in common with peer")
	ErrSecondHelloRetry     = errors.New("conn: server sent a second HelloRetryRequest")
	ErrPSKBinderMismatch    = errors.New("conn: pre_shared_key binder verification failed")
	ErrUnknownPSKIdentity   = errors.New("conn: server selected a pre_shared_key identity the client did not offer")
	ErrNoServerCertificate  = errors.New("conn: server presented an empty certificate chain")
)
