package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

type mockKMSService struct {
	mock.Mock
}

func (m *mockKMSService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	args := m.Called(ctx, keyURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cryptoDomain.KMSKeeper), args.Error(1)
}

type mockKMSKeeper struct {
	mock.Mock
}

func (m *mockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockKMSKeeper) Close() error {
	return m.Called().Error(0)
}

// decryptOnlyKeeper satisfies KMSKeeper without an Encrypt method.
type decryptOnlyKeeper struct{}

func (decryptOnlyKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}

func (decryptOnlyKeeper) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCreateMasterKey(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()

	t.Run("Success_KMS", func(t *testing.T) {
		mockService := &mockKMSService{}
		mockKeeper := &mockKMSKeeper{}

		mockService.On("OpenKeeper", ctx, "base64key://...").Return(mockKeeper, nil)
		mockKeeper.On("Encrypt", ctx, mock.MatchedBy(func(key []byte) bool {
			return len(key) == cryptoDomain.KeySize
		})).Return([]byte("encrypted"), nil)
		mockKeeper.On("Close").Return(nil)

		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, mockService, logger, &out, "test-key", "localsecrets", "base64key://...")
		require.NoError(t, err)

		assert.Contains(t, out.String(), `KMS_PROVIDER="localsecrets"`)
		assert.Contains(t, out.String(), `MASTER_KEYS="test-key:ZW5jcnlwdGVk"`)
		assert.Contains(t, out.String(), `ACTIVE_MASTER_KEY_ID="test-key"`)

		mockService.AssertExpectations(t)
		mockKeeper.AssertExpectations(t)
	})

	t.Run("Success_PlaintextWithDefaultID", func(t *testing.T) {
		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, nil, logger, &out, "", "", "")
		require.NoError(t, err)

		match := regexp.MustCompile(`MASTER_KEYS="(master-key-\d{4}-\d{2}-\d{2}):([^"]+)"`).
			FindStringSubmatch(out.String())
		require.Len(t, match, 3)

		raw, err := base64.StdEncoding.DecodeString(match[2])
		require.NoError(t, err)
		assert.Len(t, raw, cryptoDomain.KeySize)
		assert.Contains(t, out.String(), "WARNING")
		assert.NotContains(t, out.String(), "KMS_PROVIDER")
	})

	t.Run("Error_KMSParamsNotTogether", func(t *testing.T) {
		err := RunCreateMasterKey(ctx, nil, logger, &bytes.Buffer{}, "", "localsecrets", "")
		assert.ErrorIs(t, err, errKMSParamsTogether)
	})

	t.Run("Error_OpenKeeper", func(t *testing.T) {
		mockService := &mockKMSService{}
		mockService.On("OpenKeeper", ctx, "invalid").Return(nil, errors.New("kms error"))

		err := RunCreateMasterKey(ctx, mockService, logger, &bytes.Buffer{}, "test-key", "localsecrets", "invalid")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open KMS keeper")
	})

	t.Run("Error_KeeperCannotEncrypt", func(t *testing.T) {
		mockService := &mockKMSService{}
		mockService.On("OpenKeeper", ctx, "base64key://...").Return(decryptOnlyKeeper{}, nil)

		err := RunCreateMasterKey(ctx, mockService, logger, &bytes.Buffer{}, "test-key", "localsecrets", "base64key://...")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not support encryption")
	})

	t.Run("Error_Encrypt", func(t *testing.T) {
		mockService := &mockKMSService{}
		mockKeeper := &mockKMSKeeper{}

		mockService.On("OpenKeeper", ctx, "base64key://...").Return(mockKeeper, nil)
		mockKeeper.On("Encrypt", ctx, mock.Anything).Return(nil, errors.New("encrypt failed"))
		mockKeeper.On("Close").Return(errors.New("close failed"))

		var out bytes.Buffer
		err := RunCreateMasterKey(ctx, mockService, logger, &out, "test-key", "localsecrets", "base64key://...")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encrypt failed")
		assert.Empty(t, out.String())
		mockKeeper.AssertExpectations(t)
	})
}
