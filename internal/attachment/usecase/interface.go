// Package usecase implements the attachment encryption service: multi-mode encryption of
// attachments and thumbnails, decryption, HMAC verification and small metadata envelopes.
package usecase

import (
	"context"

	"github.com/google/uuid"

	attachmentDomain "github.com/allisson/attachments/internal/attachment/domain"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

// ServerKeyProvider is the part of the key vault the attachment service depends on.
type ServerKeyProvider interface {
	// GenerateKey creates a server key for scope.
	GenerateKey(ctx context.Context, scope keyvaultDomain.Scope) (*keyvaultDomain.GeneratedKey, error)

	// GetKey returns a copy of the plaintext server key or ErrKeyNotAvailable.
	GetKey(ctx context.Context, keyID uuid.UUID) ([]byte, error)
}

// ConversationKeyRepository associates a conversation with the server key of its server copies.
type ConversationKeyRepository interface {
	// GetKeyID returns the key ID of the conversation or ErrConversationKeyNotFound.
	GetKeyID(ctx context.Context, conversationID string) (uuid.UUID, error)

	// SetKeyID associates keyID with the conversation, replacing any previous association.
	SetKeyID(ctx context.Context, conversationID string, keyID uuid.UUID) error
}

// AttachmentUseCase encrypts and decrypts attachments.
type AttachmentUseCase interface {
	// Encrypt validates the input and produces the primary ciphertext with its metadata, an
	// encrypted thumbnail when one was supplied and, in server and hybrid modes, a server copy
	// sealed under the conversation key.
	Encrypt(ctx context.Context, input *attachmentDomain.EncryptInput) (*attachmentDomain.EncryptResult, error)

	// Decrypt opens a ciphertext with its base64 key, iv and tag. Tag mismatch returns
	// ErrAuthenticationFailed. A hash mismatch is reported in the result, not as an error.
	Decrypt(ctx context.Context, input *attachmentDomain.DecryptInput) (*attachmentDomain.DecryptResult, error)

	// DecryptServer opens a server copy with a key held by the vault.
	DecryptServer(ctx context.Context, input *attachmentDomain.ServerDecryptInput) ([]byte, error)

	// VerifyHMAC reports whether expectedHMAC matches the ciphertext. Malformed input is a
	// mismatch, never an error.
	VerifyHMAC(ctx context.Context, encryptedBuffer []byte, encryptionKey, expectedHMAC string) bool

	// EncryptMetadata seals the JSON encoding of record under encryptionKey and returns the
	// "iv:authTag:ciphertext" envelope.
	EncryptMetadata(ctx context.Context, record any, encryptionKey string) (string, error)

	// DecryptMetadata opens an envelope and returns the JSON document it carries.
	DecryptMetadata(ctx context.Context, envelope, encryptionKey string) ([]byte, error)
}
