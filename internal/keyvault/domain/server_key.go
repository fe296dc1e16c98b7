package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

// PurposeAttachment marks keys used to encrypt attachment server copies.
const PurposeAttachment = "attachment"

// Scope associates a server key with a conversation, a user, or both.
type Scope struct {
	ConversationID string
	UserID         string
}

// ServerKey is the persisted record of a wrapped server key.
type ServerKey struct {
	ID             uuid.UUID
	Wrapped        cryptoDomain.WrappedKey
	Purpose        string
	ConversationID *string
	UserID         *string
	IsActive       bool
	CreatedAt      time.Time
	LastAccessedAt *time.Time
	ExpiresAt      *time.Time
}

// IsExpired reports whether the key has an expiry at or before now.
func (k *ServerKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// IsUsable reports whether the key may be unwrapped and handed out.
func (k *ServerKey) IsUsable(now time.Time) bool {
	return k.IsActive && !k.IsExpired(now)
}

// GeneratedKey is returned by GenerateKey. Key is a copy owned by the caller.
type GeneratedKey struct {
	ID  uuid.UUID
	Key []byte
}

// Stats summarizes the in-memory cache of the vault.
type Stats struct {
	CacheSize     int
	CacheCapacity int
	CacheTTL      time.Duration
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
