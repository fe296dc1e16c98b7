package domain

import (
	"encoding/base64"
	"strings"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

// MetadataEnvelope is an encrypted auxiliary record, serialized as
// base64(iv):base64(authTag):base64(ciphertext).
type MetadataEnvelope struct {
	IV         []byte
	AuthTag    []byte
	Ciphertext []byte
}

// String serializes the envelope.
func (e MetadataEnvelope) String() string {
	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(e.IV),
		base64.StdEncoding.EncodeToString(e.AuthTag),
		base64.StdEncoding.EncodeToString(e.Ciphertext),
	}, ":")
}

// ParseMetadataEnvelope parses and length-checks a serialized envelope.
func ParseMetadataEnvelope(s string) (MetadataEnvelope, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return MetadataEnvelope{}, ErrInvalidEnvelope
	}

	decoded := make([][]byte, len(parts))
	for i, part := range parts {
		b, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return MetadataEnvelope{}, ErrInvalidEnvelope
		}
		decoded[i] = b
	}

	env := MetadataEnvelope{IV: decoded[0], AuthTag: decoded[1], Ciphertext: decoded[2]}
	if len(env.IV) != cryptoDomain.NonceSize || len(env.AuthTag) != cryptoDomain.TagSize {
		return MetadataEnvelope{}, ErrInvalidEnvelope
	}
	return env, nil
}
