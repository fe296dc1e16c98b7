package domain

import (
	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

// MaxFileSize is the hard ceiling for a single attachment (2 GiB).
const MaxFileSize int64 = 2 << 30

// Metadata describes one encryption of an attachment.
//
// EncryptedSize is OriginalSize plus the tag length; the tag is carried in AuthTag and
// is not appended to the ciphertext buffer.
type Metadata struct {
	Mode          Mode                   `json:"mode"`
	Algorithm     cryptoDomain.Algorithm `json:"algorithm"`
	EncryptionKey string                 `json:"encryption_key,omitempty"`
	IV            string                 `json:"iv"`
	AuthTag       string                 `json:"auth_tag"`
	HMAC          string                 `json:"hmac"`
	OriginalSize  int64                  `json:"original_size"`
	EncryptedSize int64                  `json:"encrypted_size"`
	MimeType      string                 `json:"mime_type"`
	OriginalHash  string                 `json:"original_hash"`
	EncryptedHash string                 `json:"encrypted_hash"`
}

// Redacted returns a copy without the encryption key, suitable for server-side storage.
func (m Metadata) Redacted() Metadata {
	m.EncryptionKey = ""
	return m
}

// EncryptInput is a plaintext attachment to encrypt.
type EncryptInput struct {
	File           []byte
	Filename       string
	MimeType       string
	Mode           Mode
	Thumbnail      []byte
	ConversationID string
}

// EncryptedThumbnail is the thumbnail sealed under the attachment key with its own nonce.
type EncryptedThumbnail struct {
	EncryptedBuffer []byte
	IV              string
	AuthTag         string
}

// ServerCopy is the attachment sealed under the conversation's server key.
type ServerCopy struct {
	EncryptedBuffer []byte
	KeyID           string
	IV              string
	AuthTag         string
}

// EncryptResult bundles every output of one encryption. Thumbnail is set when a
// thumbnail was supplied; ServerCopy is set for server and hybrid modes.
type EncryptResult struct {
	EncryptedBuffer []byte
	Metadata        Metadata
	Thumbnail       *EncryptedThumbnail
	ServerCopy      *ServerCopy
}

// DecryptInput is a ciphertext with the base64 key material needed to open it.
// ExpectedHash is an optional lowercase hex SHA-256 of the plaintext.
type DecryptInput struct {
	EncryptedBuffer []byte
	EncryptionKey   string
	IV              string
	AuthTag         string
	ExpectedHash    string
}

// DecryptResult carries the plaintext and the advisory hash check. HashVerified is
// false when no ExpectedHash was supplied.
type DecryptResult struct {
	DecryptedBuffer []byte
	HashVerified    bool
	ComputedHash    string
}

// ServerDecryptInput is a server copy to open with a vault-held key.
type ServerDecryptInput struct {
	EncryptedBuffer []byte
	KeyID           string
	IV              string
	AuthTag         string
}
