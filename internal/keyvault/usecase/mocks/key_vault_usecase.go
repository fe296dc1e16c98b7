package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

// MockKeyVaultUseCase is a mock implementation of KeyVaultUseCase.
type MockKeyVaultUseCase struct {
	mock.Mock
}

func (m *MockKeyVaultUseCase) GenerateKey(
	ctx context.Context,
	scope keyvaultDomain.Scope,
) (*keyvaultDomain.GeneratedKey, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keyvaultDomain.GeneratedKey), args.Error(1)
}

func (m *MockKeyVaultUseCase) GetKey(ctx context.Context, keyID uuid.UUID) ([]byte, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyVaultUseCase) HasKey(ctx context.Context, keyID uuid.UUID) bool {
	args := m.Called(ctx, keyID)
	return args.Bool(0)
}

func (m *MockKeyVaultUseCase) DeleteKey(ctx context.Context, keyID uuid.UUID) bool {
	args := m.Called(ctx, keyID)
	return args.Bool(0)
}

func (m *MockKeyVaultUseCase) CleanupExpiredKeys(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockKeyVaultUseCase) RewrapKeys(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}

func (m *MockKeyVaultUseCase) Stats() keyvaultDomain.Stats {
	args := m.Called()
	return args.Get(0).(keyvaultDomain.Stats)
}

func (m *MockKeyVaultUseCase) Close() {
	m.Called()
}
