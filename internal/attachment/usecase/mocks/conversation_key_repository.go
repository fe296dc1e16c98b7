// Package mocks provides mock implementations of the attachment interfaces for testing.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockConversationKeyRepository is a mock implementation of ConversationKeyRepository.
type MockConversationKeyRepository struct {
	mock.Mock
}

func (m *MockConversationKeyRepository) GetKeyID(ctx context.Context, conversationID string) (uuid.UUID, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockConversationKeyRepository) SetKeyID(ctx context.Context, conversationID string, keyID uuid.UUID) error {
	args := m.Called(ctx, conversationID, keyID)
	return args.Error(0)
}
