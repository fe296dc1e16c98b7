package domain

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeeper struct {
	plaintexts map[string][]byte
	err        error
}

func (f *fakeKeeper) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	plaintext, ok := f.plaintexts[string(ciphertext)]
	if !ok {
		return nil, errors.New("unknown ciphertext")
	}
	return append([]byte(nil), plaintext...), nil
}

func (f *fakeKeeper) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func keyBytes(t *testing.T, mk *MasterKey) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, mk.Use(func(key []byte) error {
		out = append([]byte(nil), key...)
		return nil
	}))
	return out
}

func TestNewMasterKey(t *testing.T) {
	t.Run("seals key and wipes source", func(t *testing.T) {
		source := []byte("12345678901234567890123456789012")

		mk, err := NewMasterKey("key1", source)
		require.NoError(t, err)

		assert.Equal(t, make([]byte, KeySize), source)
		assert.Equal(t, []byte("12345678901234567890123456789012"), keyBytes(t, mk))
	})

	t.Run("rejects wrong size", func(t *testing.T) {
		source := []byte("short")

		mk, err := NewMasterKey("key1", source)

		assert.Nil(t, mk)
		assert.ErrorIs(t, err, ErrInvalidKeySize)
		assert.Equal(t, make([]byte, 5), source)
	})

	t.Run("use propagates callback error", func(t *testing.T) {
		mk, err := NewMasterKey("key1", make([]byte, KeySize))
		require.NoError(t, err)

		callbackErr := errors.New("boom")
		err = mk.Use(func([]byte) error { return callbackErr })
		assert.ErrorIs(t, err, callbackErr)
	})
}

func TestMasterKeyChain(t *testing.T) {
	key1, err := NewMasterKey("key1", make([]byte, KeySize))
	require.NoError(t, err)
	key2, err := NewMasterKey("key2", make([]byte, KeySize))
	require.NoError(t, err)

	t.Run("active and lookup", func(t *testing.T) {
		mkc, err := NewMasterKeyChain("key2", key1, key2)
		require.NoError(t, err)

		assert.Equal(t, "key2", mkc.ActiveMasterKeyID())
		active, err := mkc.Active()
		require.NoError(t, err)
		assert.Equal(t, "key2", active.ID)

		got, found := mkc.Get("key1")
		assert.True(t, found)
		assert.Equal(t, "key1", got.ID)

		_, found = mkc.Get("missing")
		assert.False(t, found)

		assert.Equal(t, []string{"key1", "key2"}, mkc.IDs())
	})

	t.Run("active key must be present", func(t *testing.T) {
		mkc, err := NewMasterKeyChain("key3", key1)
		assert.Nil(t, mkc)
		assert.ErrorIs(t, err, ErrActiveMasterKeyNotFound)
	})

	t.Run("close clears keys", func(t *testing.T) {
		mkc, err := NewMasterKeyChain("key1", key1, key2)
		require.NoError(t, err)

		mkc.Close()

		assert.Equal(t, "", mkc.ActiveMasterKeyID())
		assert.Empty(t, mkc.IDs())
		_, err = mkc.Active()
		assert.ErrorIs(t, err, ErrActiveMasterKeyNotFound)
	})
}

func TestLoadMasterKeyChain(t *testing.T) {
	ctx := context.Background()
	key1 := base64.StdEncoding.EncodeToString(make([]byte, 32))
	key2 := base64.StdEncoding.EncodeToString([]byte("12345678901234567890123456789012"))

	tests := []struct {
		name         string
		source       MasterKeySource
		wantErr      error
		errMsg       string
		validateFunc func(*testing.T, *MasterKeyChain)
	}{
		{
			name:   "valid single key",
			source: MasterKeySource{MasterKeys: "key1:" + key1, ActiveMasterKeyID: "key1"},
			validateFunc: func(t *testing.T, mkc *MasterKeyChain) {
				assert.Equal(t, "key1", mkc.ActiveMasterKeyID())
				mk, found := mkc.Get("key1")
				require.True(t, found)
				assert.Equal(t, make([]byte, 32), keyBytes(t, mk))
			},
		},
		{
			name:   "valid multiple keys",
			source: MasterKeySource{MasterKeys: "key1:" + key1 + ",key2:" + key2, ActiveMasterKeyID: "key2"},
			validateFunc: func(t *testing.T, mkc *MasterKeyChain) {
				assert.Equal(t, []string{"key1", "key2"}, mkc.IDs())
				mk, found := mkc.Get("key2")
				require.True(t, found)
				assert.Equal(t, []byte("12345678901234567890123456789012"), keyBytes(t, mk))
			},
		},
		{
			name:   "valid keys with whitespace",
			source: MasterKeySource{MasterKeys: " key1:" + key1 + " , key2:" + key2 + " ", ActiveMasterKeyID: "key1"},
			validateFunc: func(t *testing.T, mkc *MasterKeyChain) {
				assert.Equal(t, []string{"key1", "key2"}, mkc.IDs())
			},
		},
		{
			name:    "MASTER_KEYS not set",
			source:  MasterKeySource{ActiveMasterKeyID: "key1"},
			wantErr: ErrMasterKeysNotSet,
			errMsg:  "MASTER_KEYS environment variable is not set",
		},
		{
			name:    "ACTIVE_MASTER_KEY_ID not set",
			source:  MasterKeySource{MasterKeys: "key1:" + key1},
			wantErr: ErrActiveMasterKeyIDNotSet,
			errMsg:  "ACTIVE_MASTER_KEY_ID environment variable is not set",
		},
		{
			name:    "invalid format - missing colon",
			source:  MasterKeySource{MasterKeys: "key1" + key1, ActiveMasterKeyID: "key1"},
			wantErr: ErrInvalidMasterKeysFormat,
			errMsg:  "invalid MASTER_KEYS format",
		},
		{
			name:    "invalid format - empty id",
			source:  MasterKeySource{MasterKeys: ":" + key1, ActiveMasterKeyID: "key1"},
			wantErr: ErrInvalidMasterKeysFormat,
			errMsg:  "invalid MASTER_KEYS format",
		},
		{
			name:    "invalid format - too many colons",
			source:  MasterKeySource{MasterKeys: "key1:part1:part2", ActiveMasterKeyID: "key1"},
			wantErr: ErrInvalidMasterKeyBase64,
			errMsg:  "invalid master key base64",
		},
		{
			name:    "key too short",
			source:  MasterKeySource{MasterKeys: "key1:" + base64.StdEncoding.EncodeToString(make([]byte, 16)), ActiveMasterKeyID: "key1"},
			wantErr: ErrInvalidKeySize,
			errMsg:  "must be 32 bytes, got 16",
		},
		{
			name:    "invalid key after valid key",
			source:  MasterKeySource{MasterKeys: "key1:" + key1 + ",key2:invalid!!!", ActiveMasterKeyID: "key1"},
			wantErr: ErrInvalidMasterKeyBase64,
			errMsg:  "invalid master key base64 for key2",
		},
		{
			name:    "active key not in keychain",
			source:  MasterKeySource{MasterKeys: "key1:" + key1, ActiveMasterKeyID: "key2"},
			wantErr: ErrActiveMasterKeyNotFound,
			errMsg:  "ACTIVE_MASTER_KEY_ID=key2",
		},
		{
			name:   "test master key outside production",
			source: MasterKeySource{AllowTestMasterKey: true},
			validateFunc: func(t *testing.T, mkc *MasterKeyChain) {
				assert.Equal(t, TestMasterKeyID, mkc.ActiveMasterKeyID())
				mk, err := mkc.Active()
				require.NoError(t, err)
				assert.Equal(t, testMasterKeyMaterial(), keyBytes(t, mk))
			},
		},
		{
			name:    "test master key refused in production",
			source:  MasterKeySource{AllowTestMasterKey: true, Production: true},
			wantErr: ErrTestMasterKeyForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mkc, err := LoadMasterKeyChain(ctx, tt.source, nil, discardLogger())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				assert.Nil(t, mkc)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, mkc)
			if tt.validateFunc != nil {
				tt.validateFunc(t, mkc)
			}
			mkc.Close()
		})
	}
}

func TestLoadMasterKeyChain_WithKMS(t *testing.T) {
	ctx := context.Background()
	plaintext := []byte("abcdefghijklmnopqrstuvwxyz012345")
	ciphertext := []byte("kms-ciphertext-for-key1")
	source := MasterKeySource{
		MasterKeys:        "key1:" + base64.StdEncoding.EncodeToString(ciphertext),
		ActiveMasterKeyID: "key1",
	}

	t.Run("decrypts entries with keeper", func(t *testing.T) {
		keeper := &fakeKeeper{plaintexts: map[string][]byte{string(ciphertext): plaintext}}

		mkc, err := LoadMasterKeyChain(ctx, source, keeper, discardLogger())
		require.NoError(t, err)
		defer mkc.Close()

		mk, err := mkc.Active()
		require.NoError(t, err)
		assert.Equal(t, plaintext, keyBytes(t, mk))
	})

	t.Run("keeper failure is fatal", func(t *testing.T) {
		keeper := &fakeKeeper{err: errors.New("kms unavailable")}

		mkc, err := LoadMasterKeyChain(ctx, source, keeper, discardLogger())
		assert.Nil(t, mkc)
		assert.ErrorContains(t, err, "failed to decrypt master key key1 with KMS")
	})
}
