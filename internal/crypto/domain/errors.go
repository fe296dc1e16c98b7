package domain

import (
	"github.com/allisson/attachments/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so the
// HTTP layer can tell malformed input (ErrInvalidInput) apart from data that failed
// authentication (ErrIntegrity).
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates the cryptographic key is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidNonceSize indicates the nonce is not exactly NonceSize bytes.
	ErrInvalidNonceSize = errors.Wrap(errors.ErrInvalidInput, "invalid nonce size")

	// ErrInvalidTagSize indicates the authentication tag is not exactly TagSize bytes.
	ErrInvalidTagSize = errors.Wrap(errors.ErrInvalidInput, "invalid authentication tag size")

	// ErrAuthenticationFailed indicates the AEAD tag did not verify.
	//
	// This happens when the ciphertext or tag was modified, or when the key or nonce
	// does not match the ones used for encryption. The cause is deliberately not
	// disclosed. Callers must treat it as tampering or corruption and must not retry
	// with the same inputs.
	ErrAuthenticationFailed = errors.Wrap(errors.ErrIntegrity, "authentication failed")

	// ErrMasterKeysNotSet indicates MASTER_KEYS is empty and no test key is allowed.
	ErrMasterKeysNotSet = errors.New("MASTER_KEYS environment variable is not set")

	// ErrActiveMasterKeyIDNotSet indicates ACTIVE_MASTER_KEY_ID is empty.
	ErrActiveMasterKeyIDNotSet = errors.New("ACTIVE_MASTER_KEY_ID environment variable is not set")

	// ErrInvalidMasterKeysFormat indicates an entry of MASTER_KEYS is not "id:base64".
	ErrInvalidMasterKeysFormat = errors.New("invalid MASTER_KEYS format")

	// ErrInvalidMasterKeyBase64 indicates a master key entry is not valid base64.
	ErrInvalidMasterKeyBase64 = errors.New("invalid master key base64")

	// ErrActiveMasterKeyNotFound indicates ACTIVE_MASTER_KEY_ID is not present in MASTER_KEYS.
	ErrActiveMasterKeyNotFound = errors.New("active master key not found")

	// ErrMasterKeyNotFound indicates a record references a master key that is not loaded.
	ErrMasterKeyNotFound = errors.Wrap(errors.ErrNotFound, "master key not found")

	// ErrTestMasterKeyForbidden indicates the insecure test master key was requested in production.
	ErrTestMasterKeyForbidden = errors.New("test master key is not allowed in production")
)
