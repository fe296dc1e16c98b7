// Package mysql implements conversation key persistence for MySQL databases.
// Key IDs are stored as BINARY(16).
package mysql

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

// MySQLConversationKeyRepository implements conversation key persistence for MySQL databases.
type MySQLConversationKeyRepository struct {
	db *sql.DB
}

// GetKeyID returns the server key ID associated with a conversation.
func (m *MySQLConversationKeyRepository) GetKeyID(ctx context.Context, conversationID string) (uuid.UUID, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT key_id FROM conversation_keys WHERE conversation_id = ?`

	var raw []byte
	err := querier.QueryRowContext(ctx, query, conversationID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, attachmentDomain.ErrConversationKeyNotFound
		}
		return uuid.Nil, apperrors.Wrap(err, "failed to get conversation key")
	}

	var keyID uuid.UUID
	if err := keyID.UnmarshalBinary(raw); err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to unmarshal conversation key id")
	}
	return keyID, nil
}

// SetKeyID associates a server key with a conversation, replacing any previous association.
func (m *MySQLConversationKeyRepository) SetKeyID(ctx context.Context, conversationID string, keyID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := keyID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal conversation key id")
	}

	query := `INSERT INTO conversation_keys (conversation_id, key_id, updated_at)
			  VALUES (?, ?, ?)
			  ON DUPLICATE KEY UPDATE key_id = VALUES(key_id), updated_at = VALUES(updated_at)`

	if _, err := querier.ExecContext(ctx, query, conversationID, id, time.Now().UTC()); err != nil {
		return apperrors.Wrap(err, "failed to set conversation key")
	}
	return nil
}

// NewMySQLConversationKeyRepository creates a new MySQL conversation key repository.
func NewMySQLConversationKeyRepository(db *sql.DB) *MySQLConversationKeyRepository {
	return &MySQLConversationKeyRepository{db: db}
}
