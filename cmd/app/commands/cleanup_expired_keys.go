package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keyvaultUseCase "github.com/allisson/attachments/internal/keyvault/usecase"
)

// RunCleanupExpiredKeys deactivates every expired server key once, the same sweep the
// server runs on KEY_CLEANUP_SCHEDULE.
func RunCleanupExpiredKeys(
	ctx context.Context,
	keyVault keyvaultUseCase.KeyVaultUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	count, err := keyVault.CleanupExpiredKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired server keys: %w", err)
	}

	logger.Info("cleanup completed", slog.Int64("count", count))

	if format == "json" {
		return writeJSON(writer, map[string]any{"deactivated": count})
	}
	_, err = fmt.Fprintf(writer, "Deactivated %d expired server key(s)\n", count)
	return err
}
