package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
	"github.com/allisson/attachments/internal/metrics"
)

const metricsDomain = "keyvault"

// keyVaultUseCaseWithMetrics decorates KeyVaultUseCase with metrics instrumentation.
type keyVaultUseCaseWithMetrics struct {
	next    KeyVaultUseCase
	metrics metrics.BusinessMetrics
}

// NewKeyVaultUseCaseWithMetrics wraps a KeyVaultUseCase with metrics recording.
func NewKeyVaultUseCaseWithMetrics(useCase KeyVaultUseCase, m metrics.BusinessMetrics) KeyVaultUseCase {
	return &keyVaultUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (k *keyVaultUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	k.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	k.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// GenerateKey records metrics for server key generation.
func (k *keyVaultUseCaseWithMetrics) GenerateKey(
	ctx context.Context,
	scope keyvaultDomain.Scope,
) (*keyvaultDomain.GeneratedKey, error) {
	start := time.Now()
	key, err := k.next.GenerateKey(ctx, scope)
	k.record(ctx, "server_key_generate", start, err == nil)
	return key, err
}

// GetKey records metrics for server key reads.
func (k *keyVaultUseCaseWithMetrics) GetKey(ctx context.Context, keyID uuid.UUID) ([]byte, error) {
	start := time.Now()
	key, err := k.next.GetKey(ctx, keyID)
	k.record(ctx, "server_key_get", start, err == nil)
	return key, err
}

// HasKey records metrics for server key existence checks.
func (k *keyVaultUseCaseWithMetrics) HasKey(ctx context.Context, keyID uuid.UUID) bool {
	start := time.Now()
	found := k.next.HasKey(ctx, keyID)
	k.record(ctx, "server_key_has", start, true)
	return found
}

// DeleteKey records metrics for server key deletion.
func (k *keyVaultUseCaseWithMetrics) DeleteKey(ctx context.Context, keyID uuid.UUID) bool {
	start := time.Now()
	deleted := k.next.DeleteKey(ctx, keyID)
	k.record(ctx, "server_key_delete", start, deleted)
	return deleted
}

// CleanupExpiredKeys records metrics for expired key cleanup.
func (k *keyVaultUseCaseWithMetrics) CleanupExpiredKeys(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := k.next.CleanupExpiredKeys(ctx)
	k.record(ctx, "server_key_cleanup", start, err == nil)
	return count, err
}

// RewrapKeys records metrics for master key rotation batches.
func (k *keyVaultUseCaseWithMetrics) RewrapKeys(ctx context.Context, batchSize int) (int, error) {
	start := time.Now()
	count, err := k.next.RewrapKeys(ctx, batchSize)
	k.record(ctx, "server_key_rewrap", start, err == nil)
	return count, err
}

func (k *keyVaultUseCaseWithMetrics) Stats() keyvaultDomain.Stats {
	return k.next.Stats()
}

func (k *keyVaultUseCaseWithMetrics) Close() {
	k.next.Close()
}
