package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	cryptoService "github.com/allisson/attachments/internal/crypto/service"
	"github.com/allisson/attachments/internal/database"
	apperrors "github.com/allisson/attachments/internal/errors"
	"github.com/allisson/attachments/internal/keyvault/cache"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

// Config holds the tunables of the key vault.
type Config struct {
	// WrapAlgorithm is used to wrap new keys and re-wrap keys during rotation.
	WrapAlgorithm cryptoDomain.Algorithm

	// KeyTTL sets expires_at on generated keys. Zero means keys never expire.
	KeyTTL time.Duration

	// AccessUpdateTimeout bounds the background last_accessed_at update.
	AccessUpdateTimeout time.Duration
}

// keyVaultUseCase owns the master key chain and the plaintext key cache. Nothing outside
// this type ever sees master key material or wrapped key bytes.
type keyVaultUseCase struct {
	txManager  database.TxManager
	repo       ServerKeyRepository
	masterKeys *cryptoDomain.MasterKeyChain
	wrapper    cryptoService.KeyWrapper
	primitives cryptoService.Primitives
	cache      *cache.KeyCache
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewKeyVaultUseCase creates the key vault.
func NewKeyVaultUseCase(
	txManager database.TxManager,
	repo ServerKeyRepository,
	masterKeys *cryptoDomain.MasterKeyChain,
	wrapper cryptoService.KeyWrapper,
	primitives cryptoService.Primitives,
	keyCache *cache.KeyCache,
	cfg Config,
	logger *slog.Logger,
) KeyVaultUseCase {
	if cfg.WrapAlgorithm == "" {
		cfg.WrapAlgorithm = cryptoDomain.AESGCM
	}
	if cfg.AccessUpdateTimeout <= 0 {
		cfg.AccessUpdateTimeout = 5 * time.Second
	}
	return &keyVaultUseCase{
		txManager:  txManager,
		repo:       repo,
		masterKeys: masterKeys,
		wrapper:    wrapper,
		primitives: primitives,
		cache:      keyCache,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// GenerateKey creates a server key, persists it wrapped under the active master key and caches it.
func (k *keyVaultUseCase) GenerateKey(
	ctx context.Context,
	scope keyvaultDomain.Scope,
) (*keyvaultDomain.GeneratedKey, error) {
	masterKey, err := k.masterKeys.Active()
	if err != nil {
		return nil, err
	}

	key, err := k.primitives.GenerateKey()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate server key")
	}
	defer cryptoDomain.Zero(key)

	wrapped, err := k.wrapper.Wrap(masterKey, k.cfg.WrapAlgorithm, key)
	if err != nil {
		return nil, err
	}

	now := k.now().UTC()
	record := &keyvaultDomain.ServerKey{
		ID:             uuid.Must(uuid.NewV7()),
		Wrapped:        wrapped,
		Purpose:        keyvaultDomain.PurposeAttachment,
		ConversationID: keyvaultDomain.StringPtr(scope.ConversationID),
		UserID:         keyvaultDomain.StringPtr(scope.UserID),
		IsActive:       true,
		CreatedAt:      now,
	}
	if k.cfg.KeyTTL > 0 {
		expiresAt := now.Add(k.cfg.KeyTTL)
		record.ExpiresAt = &expiresAt
	}

	if err := k.repo.Create(ctx, record); err != nil {
		k.logger.Warn("server key generated but not persisted",
			slog.String("key_id", record.ID.String()),
			slog.Any("error", fmt.Errorf("%w: %w", keyvaultDomain.ErrPersistenceDegraded, err)),
		)
	}

	k.cache.Put(record.ID, key, record.ExpiresAt)

	return &keyvaultDomain.GeneratedKey{
		ID:  record.ID,
		Key: append([]byte(nil), key...),
	}, nil
}

// GetKey returns a copy of the server key from the cache or, on a miss, from the store.
func (k *keyVaultUseCase) GetKey(ctx context.Context, keyID uuid.UUID) ([]byte, error) {
	now := k.now().UTC()

	if hit, ok := k.cache.Get(keyID); ok {
		if hit.ExpiresAt != nil && !hit.ExpiresAt.After(now) {
			cryptoDomain.Zero(hit.Key)
			k.cache.Delete(keyID)
			return nil, keyvaultDomain.ErrKeyNotAvailable
		}
		return hit.Key, nil
	}

	record, err := k.repo.Get(ctx, keyID)
	if err != nil {
		if apperrors.Is(err, keyvaultDomain.ErrServerKeyNotFound) {
			k.logger.Debug("server key not found", slog.String("key_id", keyID.String()))
		} else {
			k.logger.Error("failed to load server key",
				slog.String("key_id", keyID.String()),
				slog.Any("error", err),
			)
		}
		return nil, keyvaultDomain.ErrKeyNotAvailable
	}

	if !record.IsUsable(now) {
		k.logger.Debug("server key not usable",
			slog.String("key_id", keyID.String()),
			slog.Bool("is_active", record.IsActive),
			slog.Bool("is_expired", record.IsExpired(now)),
		)
		return nil, keyvaultDomain.ErrKeyNotAvailable
	}

	key, err := k.unwrap(record)
	if err != nil {
		k.logger.Error("failed to unwrap server key",
			slog.String("key_id", keyID.String()),
			slog.String("master_key_id", record.Wrapped.MasterKeyID),
			slog.Any("error", err),
		)
		return nil, keyvaultDomain.ErrKeyNotAvailable
	}

	k.cache.Put(keyID, key, record.ExpiresAt)
	k.touch(ctx, keyID)

	return key, nil
}

// HasKey reports whether GetKey would currently return the key.
func (k *keyVaultUseCase) HasKey(ctx context.Context, keyID uuid.UUID) bool {
	now := k.now().UTC()

	if hit, ok := k.cache.Get(keyID); ok {
		cryptoDomain.Zero(hit.Key)
		if hit.ExpiresAt != nil && !hit.ExpiresAt.After(now) {
			k.cache.Delete(keyID)
			return false
		}
		return true
	}

	record, err := k.repo.Get(ctx, keyID)
	if err != nil {
		return false
	}
	return record.IsUsable(now)
}

// DeleteKey deactivates the key in the store and evicts it from the cache.
func (k *keyVaultUseCase) DeleteKey(ctx context.Context, keyID uuid.UUID) bool {
	k.cache.Delete(keyID)

	if err := k.repo.SoftDelete(ctx, keyID); err != nil {
		k.logger.Warn("failed to delete server key",
			slog.String("key_id", keyID.String()),
			slog.Any("error", err),
		)
		return false
	}

	k.logger.Info("server key deleted", slog.String("key_id", keyID.String()))
	return true
}

// CleanupExpiredKeys deactivates every record past its expires_at and purges stale cache entries.
func (k *keyVaultUseCase) CleanupExpiredKeys(ctx context.Context) (int64, error) {
	count, err := k.repo.DeactivateExpired(ctx, k.now().UTC())
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to deactivate expired server keys")
	}

	purged := k.cache.PurgeStale()

	k.logger.Info("expired server keys cleaned up",
		slog.Int64("deactivated", count),
		slog.Int("cache_purged", purged),
	)
	return count, nil
}

// RewrapKeys walks the active records wrapped under any other master key in id order and
// re-wraps them under the active one, one transaction per batch.
func (k *keyVaultUseCase) RewrapKeys(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidInput, "batch size must be greater than 0, got: %d", batchSize)
	}

	active, err := k.masterKeys.Active()
	if err != nil {
		return 0, err
	}

	rewrapped := 0
	cursor := uuid.Nil
	for {
		records, err := k.repo.ListActiveNotMasterKeyID(ctx, active.ID, cursor, batchSize)
		if err != nil {
			return rewrapped, err
		}
		if len(records) == 0 {
			return rewrapped, nil
		}
		cursor = records[len(records)-1].ID

		n, err := k.rewrapBatch(ctx, active, records)
		rewrapped += n
		if err != nil {
			return rewrapped, err
		}

		if len(records) < batchSize {
			return rewrapped, nil
		}
	}
}

// rewrapBatch re-wraps records under active and stores them in one transaction. Records
// that cannot be unwrapped are left untouched.
func (k *keyVaultUseCase) rewrapBatch(
	ctx context.Context,
	active *cryptoDomain.MasterKey,
	records []*keyvaultDomain.ServerKey,
) (int, error) {
	updates := make([]*keyvaultDomain.ServerKey, 0, len(records))
	for _, record := range records {
		key, err := k.unwrap(record)
		if err != nil {
			k.logger.Warn("skipping server key that cannot be unwrapped",
				slog.String("key_id", record.ID.String()),
				slog.String("master_key_id", record.Wrapped.MasterKeyID),
				slog.Any("error", err),
			)
			continue
		}

		wrapped, err := k.wrapper.Wrap(active, k.cfg.WrapAlgorithm, key)
		cryptoDomain.Zero(key)
		if err != nil {
			return 0, apperrors.Wrapf(err, "failed to wrap server key %s", record.ID)
		}

		record.Wrapped = wrapped
		updates = append(updates, record)
	}
	if len(updates) == 0 {
		return 0, nil
	}

	err := k.txManager.WithTx(ctx, func(ctx context.Context) error {
		for _, record := range updates {
			if err := k.repo.UpdateWrapping(ctx, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(updates), nil
}

// Stats reports cache occupancy, capacity and TTL.
func (k *keyVaultUseCase) Stats() keyvaultDomain.Stats {
	return keyvaultDomain.Stats{
		CacheSize:     k.cache.Len(),
		CacheCapacity: k.cache.Capacity(),
		CacheTTL:      k.cache.TTL(),
	}
}

// Close waits for pending last-access updates and wipes the cache.
func (k *keyVaultUseCase) Close() {
	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()

	k.pending.Wait()
	k.cache.Clear()
}

func (k *keyVaultUseCase) unwrap(record *keyvaultDomain.ServerKey) ([]byte, error) {
	masterKey, ok := k.masterKeys.Get(record.Wrapped.MasterKeyID)
	if !ok {
		return nil, cryptoDomain.ErrMasterKeyNotFound
	}
	return k.wrapper.Unwrap(masterKey, record.Wrapped)
}

// touch updates last_accessed_at in the background. Failures are logged and never reach
// the caller of GetKey.
func (k *keyVaultUseCase) touch(ctx context.Context, keyID uuid.UUID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}

	k.pending.Add(1)
	go func() {
		defer k.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.cfg.AccessUpdateTimeout)
		defer cancel()

		if err := k.repo.UpdateLastAccessedAt(ctx, keyID, k.now().UTC()); err != nil {
			k.logger.Warn("failed to update server key access time",
				slog.String("key_id", keyID.String()),
				slog.Any("error", err),
			)
		}
	}()
}
