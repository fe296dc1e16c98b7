package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

func newTestMasterKey(t *testing.T, id string) *cryptoDomain.MasterKey {
	t.Helper()
	mk, err := cryptoDomain.NewMasterKey(id, testRandomBytes(t, cryptoDomain.KeySize))
	require.NoError(t, err)
	return mk
}

func TestKeyWrapperService(t *testing.T) {
	wrapper := NewKeyWrapper(NewAEADManager())
	masterKey := newTestMasterKey(t, "master-1")

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg)+" round trip", func(t *testing.T) {
			key := testRandomBytes(t, cryptoDomain.KeySize)

			wrapped, err := wrapper.Wrap(masterKey, alg, key)
			require.NoError(t, err)
			assert.Equal(t, "master-1", wrapped.MasterKeyID)
			assert.Equal(t, alg, wrapped.Algorithm)
			assert.Len(t, wrapped.EncryptedKey, cryptoDomain.KeySize)
			assert.Len(t, wrapped.Nonce, cryptoDomain.NonceSize)
			assert.Len(t, wrapped.Tag, cryptoDomain.TagSize)
			assert.NotEqual(t, key, wrapped.EncryptedKey)

			unwrapped, err := wrapper.Unwrap(masterKey, wrapped)
			require.NoError(t, err)
			assert.Equal(t, key, unwrapped)
		})
	}

	t.Run("fresh nonce per wrap", func(t *testing.T) {
		key := testRandomBytes(t, cryptoDomain.KeySize)
		first, err := wrapper.Wrap(masterKey, cryptoDomain.AESGCM, key)
		require.NoError(t, err)
		second, err := wrapper.Wrap(masterKey, cryptoDomain.AESGCM, key)
		require.NoError(t, err)
		assert.NotEqual(t, first.Nonce, second.Nonce)
		assert.NotEqual(t, first.EncryptedKey, second.EncryptedKey)
	})

	t.Run("wrong master key fails authentication", func(t *testing.T) {
		wrapped, err := wrapper.Wrap(masterKey, cryptoDomain.AESGCM, testRandomBytes(t, cryptoDomain.KeySize))
		require.NoError(t, err)

		_, err = wrapper.Unwrap(newTestMasterKey(t, "master-1"), wrapped)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})

	t.Run("master key id is authenticated", func(t *testing.T) {
		wrapped, err := wrapper.Wrap(masterKey, cryptoDomain.AESGCM, testRandomBytes(t, cryptoDomain.KeySize))
		require.NoError(t, err)

		wrapped.MasterKeyID = "master-2"
		_, err = wrapper.Unwrap(masterKey, wrapped)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})

	t.Run("rejects invalid key size", func(t *testing.T) {
		_, err := wrapper.Wrap(masterKey, cryptoDomain.AESGCM, make([]byte, 16))
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})

	t.Run("rejects unsupported algorithm", func(t *testing.T) {
		_, err := wrapper.Wrap(masterKey, cryptoDomain.Algorithm("rot13"), testRandomBytes(t, cryptoDomain.KeySize))
		assert.ErrorIs(t, err, cryptoDomain.ErrUnsupportedAlgorithm)
	})
}
