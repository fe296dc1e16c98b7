// Package repository implements persistence of wrapped server keys.
// Supports PostgreSQL (this package), MySQL and SQLite (subpackages).
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	"github.com/allisson/attachments/internal/database"
	apperrors "github.com/allisson/attachments/internal/errors"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

const serverKeyColumns = `id, encrypted_key, nonce, tag, algorithm, master_key_id, purpose,
			  conversation_id, user_id, is_active, created_at, last_accessed_at, expires_at`

// PostgreSQLServerKeyRepository implements server key persistence for PostgreSQL databases.
type PostgreSQLServerKeyRepository struct {
	db *sql.DB
}

// Create inserts a new server key record.
func (p *PostgreSQLServerKeyRepository) Create(ctx context.Context, key *keyvaultDomain.ServerKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO server_encryption_keys (` + serverKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.Wrapped.EncryptedKey,
		key.Wrapped.Nonce,
		key.Wrapped.Tag,
		string(key.Wrapped.Algorithm),
		key.Wrapped.MasterKeyID,
		key.Purpose,
		key.ConversationID,
		key.UserID,
		key.IsActive,
		key.CreatedAt,
		key.LastAccessedAt,
		key.ExpiresAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create server key")
	}
	return nil
}

// Get retrieves a server key by ID, including inactive and expired records.
func (p *PostgreSQLServerKeyRepository) Get(ctx context.Context, keyID uuid.UUID) (*keyvaultDomain.ServerKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + serverKeyColumns + ` FROM server_encryption_keys WHERE id = $1`

	key, err := scanServerKey(querier.QueryRowContext(ctx, query, keyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keyvaultDomain.ErrServerKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get server key")
	}
	return key, nil
}

// UpdateLastAccessedAt sets last_accessed_at for a key.
func (p *PostgreSQLServerKeyRepository) UpdateLastAccessedAt(
	ctx context.Context,
	keyID uuid.UUID,
	accessedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE server_encryption_keys SET last_accessed_at = $1 WHERE id = $2`

	if _, err := querier.ExecContext(ctx, query, accessedAt, keyID); err != nil {
		return apperrors.Wrap(err, "failed to update server key access time")
	}
	return nil
}

// SoftDelete marks an active key inactive.
func (p *PostgreSQLServerKeyRepository) SoftDelete(ctx context.Context, keyID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE server_encryption_keys SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`

	result, err := querier.ExecContext(ctx, query, keyID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete server key")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return keyvaultDomain.ErrServerKeyNotFound
	}
	return nil
}

// DeactivateExpired marks every active key with expires_at at or before the given time inactive.
func (p *PostgreSQLServerKeyRepository) DeactivateExpired(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE server_encryption_keys SET is_active = FALSE
			  WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= $1`

	result, err := querier.ExecContext(ctx, query, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to deactivate expired server keys")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return count, nil
}

// ListActiveNotMasterKeyID returns active keys wrapped under a different master key whose id
// sorts after afterID.
func (p *PostgreSQLServerKeyRepository) ListActiveNotMasterKeyID(
	ctx context.Context,
	masterKeyID string,
	afterID uuid.UUID,
	limit int,
) ([]*keyvaultDomain.ServerKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + serverKeyColumns + ` FROM server_encryption_keys
			  WHERE is_active = TRUE AND master_key_id <> $1 AND id > $2
			  ORDER BY id
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, masterKeyID, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list server keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]*keyvaultDomain.ServerKey, 0)
	for rows.Next() {
		key, err := scanServerKey(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan server key")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate server keys")
	}
	return keys, nil
}

// UpdateWrapping replaces the wrapped key material of a key.
func (p *PostgreSQLServerKeyRepository) UpdateWrapping(ctx context.Context, key *keyvaultDomain.ServerKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE server_encryption_keys
			  SET encrypted_key = $1, nonce = $2, tag = $3, algorithm = $4, master_key_id = $5
			  WHERE id = $6`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.Wrapped.EncryptedKey,
		key.Wrapped.Nonce,
		key.Wrapped.Tag,
		string(key.Wrapped.Algorithm),
		key.Wrapped.MasterKeyID,
		key.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update server key wrapping")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanServerKey(row scanner) (*keyvaultDomain.ServerKey, error) {
	var key keyvaultDomain.ServerKey
	var algorithm string

	err := row.Scan(
		&key.ID,
		&key.Wrapped.EncryptedKey,
		&key.Wrapped.Nonce,
		&key.Wrapped.Tag,
		&algorithm,
		&key.Wrapped.MasterKeyID,
		&key.Purpose,
		&key.ConversationID,
		&key.UserID,
		&key.IsActive,
		&key.CreatedAt,
		&key.LastAccessedAt,
		&key.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	key.Wrapped.Algorithm = cryptoDomain.Algorithm(algorithm)
	return &key, nil
}

// NewPostgreSQLServerKeyRepository creates a new PostgreSQL server key repository.
func NewPostgreSQLServerKeyRepository(db *sql.DB) *PostgreSQLServerKeyRepository {
	return &PostgreSQLServerKeyRepository{db: db}
}
