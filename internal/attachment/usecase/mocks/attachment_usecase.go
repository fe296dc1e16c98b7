package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	attachmentDomain "github.com/allisson/attachments/internal/attachment/domain"
)

// MockAttachmentUseCase is a mock implementation of AttachmentUseCase.
type MockAttachmentUseCase struct {
	mock.Mock
}

func (m *MockAttachmentUseCase) Encrypt(
	ctx context.Context,
	input *attachmentDomain.EncryptInput,
) (*attachmentDomain.EncryptResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attachmentDomain.EncryptResult), args.Error(1)
}

func (m *MockAttachmentUseCase) Decrypt(
	ctx context.Context,
	input *attachmentDomain.DecryptInput,
) (*attachmentDomain.DecryptResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attachmentDomain.DecryptResult), args.Error(1)
}

func (m *MockAttachmentUseCase) DecryptServer(
	ctx context.Context,
	input *attachmentDomain.ServerDecryptInput,
) ([]byte, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockAttachmentUseCase) VerifyHMAC(
	ctx context.Context,
	encryptedBuffer []byte,
	encryptionKey, expectedHMAC string,
) bool {
	args := m.Called(ctx, encryptedBuffer, encryptionKey, expectedHMAC)
	return args.Bool(0)
}

func (m *MockAttachmentUseCase) EncryptMetadata(ctx context.Context, record any, encryptionKey string) (string, error) {
	args := m.Called(ctx, record, encryptionKey)
	return args.String(0), args.Error(1)
}

func (m *MockAttachmentUseCase) DecryptMetadata(ctx context.Context, envelope, encryptionKey string) ([]byte, error) {
	args := m.Called(ctx, envelope, encryptionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
