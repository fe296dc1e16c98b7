package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
	keyvaultUseCase "github.com/allisson/attachments/internal/keyvault/usecase"
)

// RunCreateServerKey generates a server key for the given scope and prints its id.
// The plaintext key never leaves the vault.
func RunCreateServerKey(
	ctx context.Context,
	keyVault keyvaultUseCase.KeyVaultUseCase,
	logger *slog.Logger,
	writer io.Writer,
	conversationID, userID, format string,
) error {
	generated, err := keyVault.GenerateKey(ctx, keyvaultDomain.Scope{
		ConversationID: conversationID,
		UserID:         userID,
	})
	if err != nil {
		return fmt.Errorf("failed to create server key: %w", err)
	}
	cryptoDomain.Zero(generated.Key)

	logger.Info("server key created",
		slog.String("key_id", generated.ID.String()),
		slog.String("conversation_id", conversationID),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"key_id":          generated.ID.String(),
			"conversation_id": conversationID,
			"user_id":         userID,
		})
	}
	_, err = fmt.Fprintf(writer, "Created server key %s\n", generated.ID)
	return err
}
