// Package mysql implements server key persistence for MySQL databases.
package mysql

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

// MySQLServerKeyRepository implements server key persistence for MySQL databases.
// IDs are stored as BINARY(16).
type MySQLServerKeyRepository struct {
	db *sql.DB
}

// Create inserts a new server key record.
func (m *MySQLServerKeyRepository) Create(ctx context.Context, key *keyvaultDomain.ServerKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO server_encryption_keys (` + serverKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal server key id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (m *MySQLServerKeyRepository) Get(ctx context.Context, keyID uuid.UUID) (*keyvaultDomain.ServerKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + serverKeyColumns + ` FROM server_encryption_keys WHERE id = ?`

	id, err := keyID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal server key id")
	}

	key, err := scanServerKey(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keyvaultDomain.ErrServerKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get server key")
	}
	return key, nil
}

// UpdateLastAccessedAt sets last_accessed_at for a key.
func (m *MySQLServerKeyRepository) UpdateLastAccessedAt(
	ctx context.Context,
	keyID uuid.UUID,
	accessedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal server key id")
	}

	query := `UPDATE server_encryption_keys SET last_accessed_at = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, accessedAt, id); err != nil {
		return apperrors.Wrap(err, "failed to update server key access time")
	}
	return nil
}

// SoftDelete marks an active key inactive.
func (m *MySQLServerKeyRepository) SoftDelete(ctx context.Context, keyID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal server key id")
	}

	query := `UPDATE server_encryption_keys SET is_active = FALSE WHERE id = ? AND is_active = TRUE`

	result, err := querier.ExecContext(ctx, query, id)
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
func (m *MySQLServerKeyRepository) DeactivateExpired(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE server_encryption_keys SET is_active = FALSE
			  WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= ?`

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
func (m *MySQLServerKeyRepository) ListActiveNotMasterKeyID(
	ctx context.Context,
	masterKeyID string,
	afterID uuid.UUID,
	limit int,
) ([]*keyvaultDomain.ServerKey, error) {
	querier := database.GetTx(ctx, m.db)

	after, err := afterID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal server key id")
	}

	query := `SELECT ` + serverKeyColumns + ` FROM server_encryption_keys
			  WHERE is_active = TRUE AND master_key_id <> ? AND id > ?
			  ORDER BY id
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, masterKeyID, after, limit)
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
func (m *MySQLServerKeyRepository) UpdateWrapping(ctx context.Context, key *keyvaultDomain.ServerKey) error {
	querier := database.GetTx(ctx, m.db)

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal server key id")
	}

	query := `UPDATE server_encryption_keys
			  SET encrypted_key = ?, nonce = ?, tag = ?, algorithm = ?, master_key_id = ?
			  WHERE id = ?`

	_, err = querier.ExecContext(
		ctx,
		query,
		key.Wrapped.EncryptedKey,
		key.Wrapped.Nonce,
		key.Wrapped.Tag,
		string(key.Wrapped.Algorithm),
		key.Wrapped.MasterKeyID,
		id,
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
	var id []byte
	var algorithm string

	err := row.Scan(
		&id,
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

	if err := key.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal server key id")
	}
	key.Wrapped.Algorithm = cryptoDomain.Algorithm(algorithm)
	return &key, nil
}

// NewMySQLServerKeyRepository creates a new MySQL server key repository.
func NewMySQLServerKeyRepository(db *sql.DB) *MySQLServerKeyRepository {
	return &MySQLServerKeyRepository{db: db}
}
