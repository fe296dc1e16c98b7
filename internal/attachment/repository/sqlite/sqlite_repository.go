// Package sqlite implements conversation key persistence for SQLite databases.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	attachmentDomain "github.com/allisson/attachments/internal/attachment/domain"
	"github.com/allisson/attachments/internal/database"
	apperrors "github.com/allisson/attachments/internal/errors"
)

// SQLiteConversationKeyRepository implements conversation key persistence for SQLite databases.
type SQLiteConversationKeyRepository struct {
	db *sql.DB
}

// GetKeyID returns the server key ID associated with a conversation.
func (s *SQLiteConversationKeyRepository) GetKeyID(ctx context.Context, conversationID string) (uuid.UUID, error) {
	querier := database.GetTx(ctx, s.db)

	query := `SELECT key_id FROM conversation_keys WHERE conversation_id = ?`

	var raw string
	err := querier.QueryRowContext(ctx, query, conversationID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, attachmentDomain.ErrConversationKeyNotFound
		}
		return uuid.Nil, apperrors.Wrap(err, "failed to get conversation key")
	}

	keyID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to parse conversation key id")
	}
	return keyID, nil
}

// SetKeyID associates a server key with a conversation, replacing any previous association.
func (s *SQLiteConversationKeyRepository) SetKeyID(ctx context.Context, conversationID string, keyID uuid.UUID) error {
	querier := database.GetTx(ctx, s.db)

	query := `INSERT INTO conversation_keys (conversation_id, key_id, updated_at)
			  VALUES (?, ?, ?)
			  ON CONFLICT (conversation_id) DO UPDATE
			  SET key_id = excluded.key_id, updated_at = excluded.updated_at`

	_, err := querier.ExecContext(ctx, query, conversationID, keyID.String(), time.Now().UTC())
	if err != nil {
		return apperrors.Wrap(err, "failed to set conversation key")
	}
	return nil
}

// NewSQLiteConversationKeyRepository creates a new SQLite conversation key repository.
func NewSQLiteConversationKeyRepository(db *sql.DB) *SQLiteConversationKeyRepository {
	return &SQLiteConversationKeyRepository{db: db}
}
