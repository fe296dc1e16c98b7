// Package dto provides data transfer objects for attachment HTTP requests and responses.
//
// Binary buffers are []byte fields, so they travel as standard base64 in JSON. Keys, nonces,
// tags and HMACs are base64 strings, the same representation the metadata uses.
package dto

import (
	"encoding/json"
	"regexp"

	validation "github.com/jellydator/validation"

	attachmentDomain "github.com/allisson/attachments/internal/attachment/domain"
	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	customValidation "github.com/allisson/attachments/internal/validation"
)

var sha256Hex = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// EncryptRequest contains the attachment to encrypt.
type EncryptRequest struct {
	File           []byte `json:"file"`
	Filename       string `json:"filename"`
	MimeType       string `json:"mime_type"`
	Mode           string `json:"mode"`
	Thumbnail      []byte `json:"thumbnail,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Validate checks if the encrypt request is valid.
func (r *EncryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.File, validation.Required),
		validation.Field(&r.Filename, validation.Length(0, 1024)),
		validation.Field(&r.MimeType, customValidation.NoWhitespace, validation.Length(0, 255)),
		validation.Field(&r.Mode,
			validation.Required,
			validation.In(
				string(attachmentDomain.ModeE2EE),
				string(attachmentDomain.ModeServer),
				string(attachmentDomain.ModeHybrid),
			),
		),
		validation.Field(&r.ConversationID,
			customValidation.NoWhitespace,
			validation.Length(0, 255),
			validation.When(
				attachmentDomain.Mode(r.Mode).RequiresServerKey(),
				validation.Required.Error("is required for server and hybrid modes"),
			),
		),
	)
}

// ToInput converts the request to a use case input.
func (r *EncryptRequest) ToInput() *attachmentDomain.EncryptInput {
	return &attachmentDomain.EncryptInput{
		File:           r.File,
		Filename:       r.Filename,
		MimeType:       r.MimeType,
		Mode:           attachmentDomain.Mode(r.Mode),
		Thumbnail:      r.Thumbnail,
		ConversationID: r.ConversationID,
	}
}

// DecryptRequest contains a ciphertext and the key material to open it.
type DecryptRequest struct {
	EncryptedBuffer []byte `json:"encrypted_buffer"`
	EncryptionKey   string `json:"encryption_key"`
	IV              string `json:"iv"`
	AuthTag         string `json:"auth_tag"`
	ExpectedHash    string `json:"expected_hash,omitempty"`
}

// Validate checks if the decrypt request is valid.
func (r *DecryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EncryptedBuffer, validation.Required),
		validation.Field(&r.EncryptionKey,
			validation.Required,
			customValidation.Base64Length(cryptoDomain.KeySize),
		),
		validation.Field(&r.IV, validation.Required, customValidation.Base64Length(cryptoDomain.NonceSize)),
		validation.Field(&r.AuthTag, validation.Required, customValidation.Base64Length(cryptoDomain.TagSize)),
		validation.Field(&r.ExpectedHash,
			validation.Match(sha256Hex).Error("must be a hex encoded sha-256 digest"),
		),
	)
}

// ToInput converts the request to a use case input.
func (r *DecryptRequest) ToInput() *attachmentDomain.DecryptInput {
	return &attachmentDomain.DecryptInput{
		EncryptedBuffer: r.EncryptedBuffer,
		EncryptionKey:   r.EncryptionKey,
		IV:              r.IV,
		AuthTag:         r.AuthTag,
		ExpectedHash:    r.ExpectedHash,
	}
}

// ServerDecryptRequest contains a server copy and the vault key that sealed it.
type ServerDecryptRequest struct {
	EncryptedBuffer []byte `json:"encrypted_buffer"`
	KeyID           string `json:"key_id"`
	IV              string `json:"iv"`
	AuthTag         string `json:"auth_tag"`
}

// Validate checks if the server decrypt request is valid.
func (r *ServerDecryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EncryptedBuffer, validation.Required),
		validation.Field(&r.KeyID, validation.Required, customValidation.UUID),
		validation.Field(&r.IV, validation.Required, customValidation.Base64Length(cryptoDomain.NonceSize)),
		validation.Field(&r.AuthTag, validation.Required, customValidation.Base64Length(cryptoDomain.TagSize)),
	)
}

// ToInput converts the request to a use case input.
func (r *ServerDecryptRequest) ToInput() *attachmentDomain.ServerDecryptInput {
	return &attachmentDomain.ServerDecryptInput{
		EncryptedBuffer: r.EncryptedBuffer,
		KeyID:           r.KeyID,
		IV:              r.IV,
		AuthTag:         r.AuthTag,
	}
}

// VerifyHMACRequest contains a ciphertext and the HMAC it should carry. Only the buffer is
// validated; malformed keys and HMACs are reported as a mismatch.
type VerifyHMACRequest struct {
	EncryptedBuffer []byte `json:"encrypted_buffer"`
	EncryptionKey   string `json:"encryption_key"`
	HMAC            string `json:"hmac"`
}

// Validate checks if the verify hmac request is valid.
func (r *VerifyHMACRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EncryptedBuffer, validation.Required),
	)
}

// EncryptMetadataRequest contains a JSON document to seal under an attachment key.
type EncryptMetadataRequest struct {
	Metadata      json.RawMessage `json:"metadata"`
	EncryptionKey string          `json:"encryption_key"`
}

// Validate checks if the encrypt metadata request is valid.
func (r *EncryptMetadataRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Metadata, validation.Required),
		validation.Field(&r.EncryptionKey,
			validation.Required,
			customValidation.Base64Length(cryptoDomain.KeySize),
		),
	)
}

// DecryptMetadataRequest contains an "iv:authTag:ciphertext" envelope.
type DecryptMetadataRequest struct {
	Envelope      string `json:"envelope"`
	EncryptionKey string `json:"encryption_key"`
}

// Validate checks if the decrypt metadata request is valid.
func (r *DecryptMetadataRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Envelope, validation.Required, customValidation.NoWhitespace),
		validation.Field(&r.EncryptionKey,
			validation.Required,
			customValidation.Base64Length(cryptoDomain.KeySize),
		),
	)
}
