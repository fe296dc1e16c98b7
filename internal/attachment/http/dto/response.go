package dto

import (
	"encoding/json"

	attachmentDomain "github.com/allisson/attachments/internal/attachment/domain"
)

// ThumbnailResponse is an encrypted thumbnail.
type ThumbnailResponse struct {
	EncryptedBuffer []byte `json:"encrypted_buffer"`
	IV              string `json:"iv"`
	AuthTag         string `json:"auth_tag"`
}

// ServerCopyResponse is an attachment copy sealed under a conversation key.
type ServerCopyResponse struct {
	EncryptedBuffer []byte `json:"encrypted_buffer"`
	KeyID           string `json:"key_id"`
	IV              string `json:"iv"`
	AuthTag         string `json:"auth_tag"`
}

// EncryptResponse bundles every output of an encryption.
type EncryptResponse struct {
	EncryptedBuffer []byte                    `json:"encrypted_buffer"`
	Metadata        attachmentDomain.Metadata `json:"metadata"`
	Thumbnail       *ThumbnailResponse        `json:"thumbnail,omitempty"`
	ServerCopy      *ServerCopyResponse       `json:"server_copy,omitempty"`
}

// MapEncryptResultToResponse converts an encrypt result to an API response.
func MapEncryptResultToResponse(result *attachmentDomain.EncryptResult) EncryptResponse {
	response := EncryptResponse{
		EncryptedBuffer: result.EncryptedBuffer,
		Metadata:        result.Metadata,
	}
	if result.Thumbnail != nil {
		response.Thumbnail = &ThumbnailResponse{
			EncryptedBuffer: result.Thumbnail.EncryptedBuffer,
			IV:              result.Thumbnail.IV,
			AuthTag:         result.Thumbnail.AuthTag,
		}
	}
	if result.ServerCopy != nil {
		response.ServerCopy = &ServerCopyResponse{
			EncryptedBuffer: result.ServerCopy.EncryptedBuffer,
			KeyID:           result.ServerCopy.KeyID,
			IV:              result.ServerCopy.IV,
			AuthTag:         result.ServerCopy.AuthTag,
		}
	}
	return response
}

// DecryptResponse carries the plaintext and the advisory hash check.
type DecryptResponse struct {
	DecryptedBuffer []byte `json:"decrypted_buffer"`
	HashVerified    bool   `json:"hash_verified"`
	ComputedHash    string `json:"computed_hash"`
}

// MapDecryptResultToResponse converts a decrypt result to an API response.
func MapDecryptResultToResponse(result *attachmentDomain.DecryptResult) DecryptResponse {
	return DecryptResponse{
		DecryptedBuffer: result.DecryptedBuffer,
		HashVerified:    result.HashVerified,
		ComputedHash:    result.ComputedHash,
	}
}

// ServerDecryptResponse carries the plaintext of a server copy.
type ServerDecryptResponse struct {
	DecryptedBuffer []byte `json:"decrypted_buffer"`
}

// VerifyHMACResponse reports whether the HMAC matched.
type VerifyHMACResponse struct {
	Valid bool `json:"valid"`
}

// EncryptMetadataResponse carries the serialized envelope.
type EncryptMetadataResponse struct {
	Envelope string `json:"envelope"`
}

// DecryptMetadataResponse carries the decrypted JSON document.
type DecryptMetadataResponse struct {
	Metadata json.RawMessage `json:"metadata"`
}
