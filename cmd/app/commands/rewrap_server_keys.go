package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keyvaultUseCase "github.com/allisson/attachments/internal/keyvault/usecase"
)

// RunRewrapServerKeys re-wraps every active server key still wrapped under a master key
// other than ACTIVE_MASTER_KEY_ID, batchSize records per transaction. Keys whose master key
// is no longer in MASTER_KEYS are logged and left as they are.
//
// Requirements: Database must be migrated, MASTER_KEYS must still contain the old keys.
func RunRewrapServerKeys(
	ctx context.Context,
	keyVault keyvaultUseCase.KeyVaultUseCase,
	logger *slog.Logger,
	writer io.Writer,
	activeMasterKeyID string,
	batchSize int,
	format string,
) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0, got: %d", batchSize)
	}

	logger.Info("starting server key rewrap",
		slog.String("master_key_id", activeMasterKeyID),
		slog.Int("batch_size", batchSize),
	)

	total, err := keyVault.RewrapKeys(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to rewrap server keys after %d: %w", total, err)
	}

	logger.Info("server key rewrap completed",
		slog.Int("total_rewrapped", total),
		slog.String("master_key_id", activeMasterKeyID),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"rewrapped":     total,
			"master_key_id": activeMasterKeyID,
		})
	}
	_, err = fmt.Fprintf(writer, "Re-wrapped %d server key(s) under master key %s\n", total, activeMasterKeyID)
	return err
}
