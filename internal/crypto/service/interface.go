// Package service provides the cipher primitives behind attachment and key envelope encryption.
// Implements detached-tag AEAD ciphers (AES-256-GCM, ChaCha20-Poly1305), hashing, HMAC and
// master-key wrapping of server keys.
package service

import (
	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

// AEAD defines Authenticated Encryption with Associated Data with a detached tag.
//
// The caller owns the nonce. Ciphertext has the same length as the plaintext and the
// 16-byte tag is returned separately, matching how attachments store iv and authTag.
type AEAD interface {
	// Seal encrypts plaintext under nonce and returns the ciphertext and its authentication tag.
	Seal(nonce, plaintext, aad []byte) (ciphertext, tag []byte, err error)

	// Open verifies tag and decrypts ciphertext. Returns ErrAuthenticationFailed on mismatch.
	Open(nonce, ciphertext, tag, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// Primitives groups the stateless operations used by the attachment service and key vault.
type Primitives interface {
	// GenerateKey returns KeySize bytes from a CSPRNG.
	GenerateKey() ([]byte, error)

	// GenerateNonce returns NonceSize bytes from a CSPRNG.
	GenerateNonce() ([]byte, error)

	// Encrypt seals plaintext with AES-256-GCM and returns ciphertext and tag.
	Encrypt(key, nonce, plaintext []byte) (ciphertext, tag []byte, err error)

	// Decrypt opens ciphertext with AES-256-GCM.
	Decrypt(key, nonce, ciphertext, tag []byte) ([]byte, error)

	// SHA256 returns the lowercase hex SHA-256 digest of data.
	SHA256(data []byte) string

	// DeriveHMACKey returns the raw SHA-256 digest of key, used as the HMAC key so the MAC
	// never runs under the encryption key itself.
	DeriveHMACKey(key []byte) []byte

	// HMACSHA256 returns the raw HMAC-SHA256 of data under key.
	HMACSHA256(key, data []byte) []byte

	// ConstantTimeEquals compares a and b in time independent of their contents.
	ConstantTimeEquals(a, b []byte) bool
}

// KeyWrapper wraps and unwraps server keys under a master key.
type KeyWrapper interface {
	// Wrap encrypts key under masterKey with alg and a fresh nonce.
	Wrap(masterKey *cryptoDomain.MasterKey, alg cryptoDomain.Algorithm, key []byte) (cryptoDomain.WrappedKey, error)

	// Unwrap decrypts a wrapped key. The caller owns the returned slice.
	Unwrap(masterKey *cryptoDomain.MasterKey, wrapped cryptoDomain.WrappedKey) ([]byte, error)
}
