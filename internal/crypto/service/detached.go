package service

import (
	"crypto/cipher"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

// detachedAEAD adapts a cipher.AEAD, which appends the tag to the ciphertext, to the
// detached-tag AEAD interface.
type detachedAEAD struct {
	aead cipher.AEAD
}

func (d detachedAEAD) Seal(nonce, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	if len(nonce) != d.aead.NonceSize() {
		return nil, nil, cryptoDomain.ErrInvalidNonceSize
	}

	sealed := d.aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - d.aead.Overhead()

	ciphertext = sealed[:split:split]
	tag = sealed[split:]
	return ciphertext, tag, nil
}

func (d detachedAEAD) Open(nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(nonce) != d.aead.NonceSize() {
		return nil, cryptoDomain.ErrInvalidNonceSize
	}
	if len(tag) != d.aead.Overhead() {
		return nil, cryptoDomain.ErrInvalidTagSize
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := d.aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, cryptoDomain.ErrAuthenticationFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
