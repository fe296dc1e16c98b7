package app

import (
	"fmt"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	"github.com/allisson/attachments/internal/keyvault/cache"
	keyvaultHTTP "github.com/allisson/attachments/internal/keyvault/http"
	keyvaultRepository "github.com/allisson/attachments/internal/keyvault/repository"
	keyvaultMySQL "github.com/allisson/attachments/internal/keyvault/repository/mysql"
	keyvaultSQLite "github.com/allisson/attachments/internal/keyvault/repository/sqlite"
	keyvaultUseCase "github.com/allisson/attachments/internal/keyvault/usecase"
	"github.com/allisson/attachments/internal/keyvault/worker"
	"github.com/allisson/attachments/internal/metrics"
)

// KeyCache returns the bounded plaintext key cache shared by the key vault.
func (c *Container) KeyCache() *cache.KeyCache {
	c.keyCacheInit.Do(func() {
		c.keyCache = cache.New(c.config.KeyCacheMaxSize, c.config.KeyCacheTTL, c.config.KeyCacheEvictionRatio)
	})
	return c.keyCache
}

// ServerKeyRepository returns the server key repository for the configured driver.
func (c *Container) ServerKeyRepository() (keyvaultUseCase.ServerKeyRepository, error) {
	var err error
	c.serverKeyRepoInit.Do(func() {
		c.serverKeyRepo, err = c.initServerKeyRepository()
		if err != nil {
			c.setInitError("serverKeyRepo", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("serverKeyRepo"); storedErr != nil {
		return nil, storedErr
	}
	return c.serverKeyRepo, nil
}

// KeyVaultUseCase returns the key vault, wrapped with metrics when enabled.
func (c *Container) KeyVaultUseCase() (keyvaultUseCase.KeyVaultUseCase, error) {
	var err error
	c.keyVaultUseCaseInit.Do(func() {
		c.keyVaultUseCase, err = c.initKeyVaultUseCase()
		if err != nil {
			c.setInitError("keyVaultUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("keyVaultUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.keyVaultUseCase, nil
}

// CleanupScheduler returns the cron worker that deactivates expired server keys.
func (c *Container) CleanupScheduler() (*worker.CleanupScheduler, error) {
	var err error
	c.cleanupSchedulerInit.Do(func() {
		c.cleanupScheduler, err = c.initCleanupScheduler()
		if err != nil {
			c.setInitError("cleanupScheduler", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("cleanupScheduler"); storedErr != nil {
		return nil, storedErr
	}
	return c.cleanupScheduler, nil
}

// ServerKeyHandler returns the HTTP handler for server key administration.
func (c *Container) ServerKeyHandler() (*keyvaultHTTP.ServerKeyHandler, error) {
	var err error
	c.serverKeyHandlerInit.Do(func() {
		var keyVault keyvaultUseCase.KeyVaultUseCase
		keyVault, err = c.KeyVaultUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get key vault for server key handler: %w", err)
			c.setInitError("serverKeyHandler", err)
			return
		}
		c.serverKeyHandler = keyvaultHTTP.NewServerKeyHandler(keyVault, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("serverKeyHandler"); storedErr != nil {
		return nil, storedErr
	}
	return c.serverKeyHandler, nil
}

func (c *Container) initServerKeyRepository() (keyvaultUseCase.ServerKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for server key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return keyvaultRepository.NewPostgreSQLServerKeyRepository(db), nil
	case "mysql":
		return keyvaultMySQL.NewMySQLServerKeyRepository(db), nil
	case "sqlite":
		return keyvaultSQLite.NewSQLiteServerKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initKeyVaultUseCase() (keyvaultUseCase.KeyVaultUseCase, error) {
	wrapAlgorithm, err := cryptoDomain.ParseAlgorithm(c.config.KeyWrapAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid KEY_WRAP_ALGORITHM %q: %w", c.config.KeyWrapAlgorithm, err)
	}

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for key vault: %w", err)
	}

	repo, err := c.ServerKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get server key repository for key vault: %w", err)
	}

	masterKeyChain, err := c.MasterKeyChain()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key chain for key vault: %w", err)
	}

	baseUseCase := keyvaultUseCase.NewKeyVaultUseCase(
		txManager,
		repo,
		masterKeyChain,
		c.KeyWrapper(),
		c.Primitives(),
		c.KeyCache(),
		keyvaultUseCase.Config{
			WrapAlgorithm:       wrapAlgorithm,
			KeyTTL:              c.config.ServerKeyTTL,
			AccessUpdateTimeout: c.config.KeyAccessUpdateTimeout,
		},
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for key vault: %w", err)
		}
		if err := c.registerKeyCacheGauges(baseUseCase); err != nil {
			return nil, err
		}
		return keyvaultUseCase.NewKeyVaultUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

func (c *Container) initCleanupScheduler() (*worker.CleanupScheduler, error) {
	keyVault, err := c.KeyVaultUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key vault for cleanup scheduler: %w", err)
	}
	return worker.NewCleanupScheduler(c.config.KeyCleanupSchedule, keyVault, c.Logger())
}

// registerKeyCacheGauges publishes the vault's cache occupancy on the metrics endpoint.
func (c *Container) registerKeyCacheGauges(keyVault keyvaultUseCase.KeyVaultUseCase) error {
	provider, err := c.MetricsProvider()
	if err != nil {
		return fmt.Errorf("failed to get metrics provider for key cache gauges: %w", err)
	}
	if provider == nil {
		return nil
	}

	registration, err := metrics.RegisterKeyCacheGauges(
		provider.MeterProvider(),
		c.config.MetricsNamespace,
		func() (int, int) {
			stats := keyVault.Stats()
			return stats.CacheSize, stats.CacheCapacity
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register key cache gauges: %w", err)
	}
	c.keyCacheGauges = registration
	return nil
}
