package service

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

// AESGCMCipher implements the AEAD interface using AES-256-GCM.
//
// Security properties:
//   - 256-bit key size
//   - 12-byte nonce supplied by the caller, never reused with the same key
//   - 16-byte authentication tag returned separately from the ciphertext
//
// Ciphertext length always equals plaintext length, which is what lets an encrypted
// attachment of N bytes be stored as N bytes plus a separate tag.
//
// The cipher instance is stateless and safe for concurrent use.
type AESGCMCipher struct {
	detachedAEAD
}

// NewAESGCM creates a new AES-256-GCM cipher instance. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{detachedAEAD{aead: aead}}, nil
}
