package service

import (
	"fmt"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

// KeyWrapperService implements KeyWrapper on top of an AEADManager.
//
// The master key ID is bound to the ciphertext as additional authenticated data, so a
// wrapped key cannot be unwrapped under a different master key entry even if the raw
// key material were identical.
type KeyWrapperService struct {
	aeadManager AEADManager
}

// NewKeyWrapper creates a new KeyWrapperService.
func NewKeyWrapper(aeadManager AEADManager) *KeyWrapperService {
	return &KeyWrapperService{aeadManager: aeadManager}
}

// Wrap encrypts key under masterKey with a fresh random nonce.
func (w *KeyWrapperService) Wrap(
	masterKey *cryptoDomain.MasterKey,
	alg cryptoDomain.Algorithm,
	key []byte,
) (cryptoDomain.WrappedKey, error) {
	if len(key) != cryptoDomain.KeySize {
		return cryptoDomain.WrappedKey{}, cryptoDomain.ErrInvalidKeySize
	}

	nonce, err := randomBytes(cryptoDomain.NonceSize)
	if err != nil {
		return cryptoDomain.WrappedKey{}, err
	}

	var encryptedKey, tag []byte
	err = masterKey.Use(func(mk []byte) error {
		aead, err := w.aeadManager.CreateCipher(mk, alg)
		if err != nil {
			return err
		}
		encryptedKey, tag, err = aead.Seal(nonce, key, []byte(masterKey.ID))
		return err
	})
	if err != nil {
		return cryptoDomain.WrappedKey{}, fmt.Errorf("failed to wrap key: %w", err)
	}

	return cryptoDomain.WrappedKey{
		MasterKeyID:  masterKey.ID,
		Algorithm:    alg,
		EncryptedKey: encryptedKey,
		Nonce:        nonce,
		Tag:          tag,
	}, nil
}

// Unwrap decrypts a wrapped key. Returns ErrAuthenticationFailed if the wrapped form was
// altered or masterKey is not the key that wrapped it.
func (w *KeyWrapperService) Unwrap(
	masterKey *cryptoDomain.MasterKey,
	wrapped cryptoDomain.WrappedKey,
) ([]byte, error) {
	var key []byte
	err := masterKey.Use(func(mk []byte) error {
		aead, err := w.aeadManager.CreateCipher(mk, wrapped.Algorithm)
		if err != nil {
			return err
		}
		key, err = aead.Open(wrapped.Nonce, wrapped.EncryptedKey, wrapped.Tag, []byte(wrapped.MasterKeyID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap key: %w", err)
	}
	if len(key) != cryptoDomain.KeySize {
		cryptoDomain.Zero(key)
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	return key, nil
}
