// Package usecase implements the key vault: server key lifecycle with a plaintext cache in
// front of a durable store of master-key-wrapped records.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

// ServerKeyRepository persists wrapped server keys.
//
// Implementations exist for PostgreSQL, MySQL and SQLite. Every method participates in a
// transaction carried by ctx (see database.GetTx).
type ServerKeyRepository interface {
	// Create inserts a new record in a single statement.
	Create(ctx context.Context, key *keyvaultDomain.ServerKey) error

	// Get returns the record regardless of its active or expiry state.
	// Returns ErrServerKeyNotFound if no record exists.
	Get(ctx context.Context, keyID uuid.UUID) (*keyvaultDomain.ServerKey, error)

	// UpdateLastAccessedAt records a read of the key.
	UpdateLastAccessedAt(ctx context.Context, keyID uuid.UUID, accessedAt time.Time) error

	// SoftDelete marks the record inactive. Returns ErrServerKeyNotFound if no active record matched.
	SoftDelete(ctx context.Context, keyID uuid.UUID) error

	// DeactivateExpired marks every active record with expires_at at or before the given
	// time inactive and returns how many were changed.
	DeactivateExpired(ctx context.Context, before time.Time) (int64, error)

	// ListActiveNotMasterKeyID returns up to limit active records wrapped under a master key
	// other than masterKeyID with an id greater than afterID, ordered by id. uuid.Nil starts
	// from the beginning.
	ListActiveNotMasterKeyID(
		ctx context.Context,
		masterKeyID string,
		afterID uuid.UUID,
		limit int,
	) ([]*keyvaultDomain.ServerKey, error)

	// UpdateWrapping replaces the wrapped key material and master key id of a record.
	UpdateWrapping(ctx context.Context, key *keyvaultDomain.ServerKey) error
}

// KeyVaultUseCase manages server keys for attachment server copies.
type KeyVaultUseCase interface {
	// GenerateKey creates, wraps and stores a new key for scope and seeds the cache.
	// If the store write fails the key is still returned and cached; the failure is
	// logged as ErrPersistenceDegraded.
	GenerateKey(ctx context.Context, scope keyvaultDomain.Scope) (*keyvaultDomain.GeneratedKey, error)

	// GetKey returns a copy of the plaintext key. Returns ErrKeyNotAvailable when the key
	// is missing, inactive, expired or cannot be unwrapped.
	GetKey(ctx context.Context, keyID uuid.UUID) ([]byte, error)

	// HasKey reports whether the key is cached or stored as active and unexpired.
	HasKey(ctx context.Context, keyID uuid.UUID) bool

	// DeleteKey evicts the key and soft-deletes its record. Returns false if the store
	// could not be updated.
	DeleteKey(ctx context.Context, keyID uuid.UUID) bool

	// CleanupExpiredKeys deactivates every expired record and drops stale cache entries.
	CleanupExpiredKeys(ctx context.Context) (int64, error)

	// RewrapKeys re-wraps every active record under the active master key, batchSize records
	// per transaction, and returns how many were updated. Records that cannot be unwrapped,
	// such as those whose master key is no longer loaded, are logged and skipped.
	RewrapKeys(ctx context.Context, batchSize int) (int, error)

	// Stats reports cache occupancy.
	Stats() keyvaultDomain.Stats

	// Close waits for pending access-time updates and clears the cache.
	Close()
}
