// Package mocks provides mock implementations of the key vault interfaces for testing.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

// MockServerKeyRepository is a mock implementation of ServerKeyRepository.
type MockServerKeyRepository struct {
	mock.Mock
}

func (m *MockServerKeyRepository) Create(ctx context.Context, key *keyvaultDomain.ServerKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockServerKeyRepository) Get(ctx context.Context, keyID uuid.UUID) (*keyvaultDomain.ServerKey, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keyvaultDomain.ServerKey), args.Error(1)
}

func (m *MockServerKeyRepository) UpdateLastAccessedAt(ctx context.Context, keyID uuid.UUID, accessedAt time.Time) error {
	args := m.Called(ctx, keyID, accessedAt)
	return args.Error(0)
}

func (m *MockServerKeyRepository) SoftDelete(ctx context.Context, keyID uuid.UUID) error {
	args := m.Called(ctx, keyID)
	return args.Error(0)
}

func (m *MockServerKeyRepository) DeactivateExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockServerKeyRepository) ListActiveNotMasterKeyID(
	ctx context.Context,
	masterKeyID string,
	afterID uuid.UUID,
	limit int,
) ([]*keyvaultDomain.ServerKey, error) {
	args := m.Called(ctx, masterKeyID, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*keyvaultDomain.ServerKey), args.Error(1)
}

func (m *MockServerKeyRepository) UpdateWrapping(ctx context.Context, key *keyvaultDomain.ServerKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
