package domain

import (
	"github.com/allisson/attachments/internal/errors"
)

var (
	// ErrEmptyFile indicates an empty attachment or ciphertext buffer.
	ErrEmptyFile = errors.Wrap(errors.ErrInvalidInput, "file is empty")

	// ErrFileTooLarge indicates the attachment exceeds the configured maximum size.
	ErrFileTooLarge = errors.Wrap(errors.ErrInvalidInput, "file exceeds maximum size")

	// ErrInvalidMode indicates a mode other than e2ee, server or hybrid.
	ErrInvalidMode = errors.Wrap(errors.ErrInvalidInput, "invalid encryption mode")

	// ErrConversationIDRequired indicates server or hybrid mode without a conversation ID.
	ErrConversationIDRequired = errors.Wrap(errors.ErrInvalidInput, "conversation id is required for server and hybrid modes")

	// ErrInvalidEncoding indicates a key, nonce or tag that is not valid base64.
	ErrInvalidEncoding = errors.Wrap(errors.ErrInvalidInput, "invalid base64 encoding")

	// ErrInvalidFieldLength indicates a decoded key, nonce or tag of the wrong length.
	ErrInvalidFieldLength = errors.Wrap(errors.ErrInvalidInput, "invalid field length")

	// ErrInvalidEnvelope indicates a metadata envelope that is not "iv:authTag:ciphertext".
	ErrInvalidEnvelope = errors.Wrap(errors.ErrInvalidInput, "invalid metadata envelope")

	// ErrConversationKeyNotFound indicates no server key is associated with the conversation.
	ErrConversationKeyNotFound = errors.Wrap(errors.ErrNotFound, "conversation key not found")
)
