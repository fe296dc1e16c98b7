// Package repository implements the conversation to server key association.
// Supports PostgreSQL (this package), MySQL and SQLite (subpackages).
package repository

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

// PostgreSQLConversationKeyRepository implements conversation key persistence for PostgreSQL databases.
type PostgreSQLConversationKeyRepository struct {
	db *sql.DB
}

// GetKeyID returns the server key ID associated with a conversation.
func (p *PostgreSQLConversationKeyRepository) GetKeyID(ctx context.Context, conversationID string) (uuid.UUID, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT key_id FROM conversation_keys WHERE conversation_id = $1`

	var keyID uuid.UUID
	err := querier.QueryRowContext(ctx, query, conversationID).Scan(&keyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, attachmentDomain.ErrConversationKeyNotFound
		}
		return uuid.Nil, apperrors.Wrap(err, "failed to get conversation key")
	}
	return keyID, nil
}

// SetKeyID associates a server key with a conversation, replacing any previous association.
func (p *PostgreSQLConversationKeyRepository) SetKeyID(
	ctx context.Context,
	conversationID string,
	keyID uuid.UUID,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO conversation_keys (conversation_id, key_id, updated_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (conversation_id) DO UPDATE
			  SET key_id = EXCLUDED.key_id, updated_at = EXCLUDED.updated_at`

	_, err := querier.ExecContext(ctx, query, conversationID, keyID, time.Now().UTC())
	if err != nil {
		return apperrors.Wrap(err, "failed to set conversation key")
	}
	return nil
}

// NewPostgreSQLConversationKeyRepository creates a new PostgreSQL conversation key repository.
func NewPostgreSQLConversationKeyRepository(db *sql.DB) *PostgreSQLConversationKeyRepository {
	return &PostgreSQLConversationKeyRepository{db: db}
}
