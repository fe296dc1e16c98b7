// Package sqlite implements server key persistence for SQLite databases.
//
// IDs are stored as canonical UUID text and timestamps are written in UTC so
// that range comparisons over julianday() stay consistent.
package sqlite

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

// SQLiteServerKeyRepository implements server key persistence for SQLite databases.
type SQLiteServerKeyRepository struct {
	db *sql.DB
}

// Create inserts a new server key record.
func (s *SQLiteServerKeyRepository) Create(ctx context.Context, key *keyvaultDomain.ServerKey) error {
	querier := database.GetTx(ctx, s.db)

	query := `INSERT INTO server_encryption_keys (` + serverKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID.String(),
		key.Wrapped.EncryptedKey,
		key.Wrapped.Nonce,
		key.Wrapped.Tag,
		string(key.Wrapped.Algorithm),
		key.Wrapped.MasterKeyID,
		key.Purpose,
		nullString(key.ConversationID),
		nullString(key.UserID),
		key.IsActive,
		key.CreatedAt.UTC(),
		nullTime(key.LastAccessedAt),
		nullTime(key.ExpiresAt),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create server key")
	}
	return nil
}

// Get retrieves a server key by ID, including inactive and expired records.
func (s *SQLiteServerKeyRepository) Get(ctx context.Context, keyID uuid.UUID) (*keyvaultDomain.ServerKey, error) {
	querier := database.GetTx(ctx, s.db)

	query := `SELECT ` + serverKeyColumns + ` FROM server_encryption_keys WHERE id = ?`

	key, err := scanServerKey(querier.QueryRowContext(ctx, query, keyID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keyvaultDomain.ErrServerKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get server key")
	}
	return key, nil
}

// UpdateLastAccessedAt sets last_accessed_at for a key.
func (s *SQLiteServerKeyRepository) UpdateLastAccessedAt(
	ctx context.Context,
	keyID uuid.UUID,
	accessedAt time.Time,
) error {
	querier := database.GetTx(ctx, s.db)

	query := `UPDATE server_encryption_keys SET last_accessed_at = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, accessedAt.UTC(), keyID.String()); err != nil {
		return apperrors.Wrap(err, "failed to update server key access time")
	}
	return nil
}

// SoftDelete marks an active key inactive.
func (s *SQLiteServerKeyRepository) SoftDelete(ctx context.Context, keyID uuid.UUID) error {
	querier := database.GetTx(ctx, s.db)

	query := `UPDATE server_encryption_keys SET is_active = 0 WHERE id = ? AND is_active = 1`

	result, err := querier.ExecContext(ctx, query, keyID.String())
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
func (s *SQLiteServerKeyRepository) DeactivateExpired(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, s.db)

	query := `UPDATE server_encryption_keys SET is_active = 0
			  WHERE is_active = 1 AND expires_at IS NOT NULL
			  AND julianday(expires_at) <= julianday(?)`

	result, err := querier.ExecContext(ctx, query, before.UTC())
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
func (s *SQLiteServerKeyRepository) ListActiveNotMasterKeyID(
	ctx context.Context,
	masterKeyID string,
	afterID uuid.UUID,
	limit int,
) ([]*keyvaultDomain.ServerKey, error) {
	querier := database.GetTx(ctx, s.db)

	query := `SELECT ` + serverKeyColumns + ` FROM server_encryption_keys
			  WHERE is_active = 1 AND master_key_id <> ? AND id > ?
			  ORDER BY id
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, masterKeyID, afterID.String(), limit)
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
func (s *SQLiteServerKeyRepository) UpdateWrapping(ctx context.Context, key *keyvaultDomain.ServerKey) error {
	querier := database.GetTx(ctx, s.db)

	query := `UPDATE server_encryption_keys
			  SET encrypted_key = ?, nonce = ?, tag = ?, algorithm = ?, master_key_id = ?
			  WHERE id = ?`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.Wrapped.EncryptedKey,
		key.Wrapped.Nonce,
		key.Wrapped.Tag,
		string(key.Wrapped.Algorithm),
		key.Wrapped.MasterKeyID,
		key.ID.String(),
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
	var id, algorithm string
	var conversationID, userID sql.NullString
	var lastAccessedAt, expiresAt sql.NullTime

	err := row.Scan(
		&id,
		&key.Wrapped.EncryptedKey,
		&key.Wrapped.Nonce,
		&key.Wrapped.Tag,
		&algorithm,
		&key.Wrapped.MasterKeyID,
		&key.Purpose,
		&conversationID,
		&userID,
		&key.IsActive,
		&key.CreatedAt,
		&lastAccessedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse server key id")
	}
	key.ID = parsed
	key.Wrapped.Algorithm = cryptoDomain.Algorithm(algorithm)
	if conversationID.Valid {
		key.ConversationID = &conversationID.String
	}
	if userID.Valid {
		key.UserID = &userID.String
	}
	if lastAccessedAt.Valid {
		key.LastAccessedAt = &lastAccessedAt.Time
	}
	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}
	return &key, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// NewSQLiteServerKeyRepository creates a new SQLite server key repository.
func NewSQLiteServerKeyRepository(db *sql.DB) *SQLiteServerKeyRepository {
	return &SQLiteServerKeyRepository{db: db}
}
