package app

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	cryptoService "github.com/allisson/attachments/internal/crypto/service"
)

// MasterKeyChain returns the master key chain loaded from environment variables.
func (c *Container) MasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	var err error
	c.masterKeyChainInit.Do(func() {
		c.masterKeyChain, err = c.initMasterKeyChain()
		if err != nil {
			c.setInitError("masterKeyChain", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("masterKeyChain"); storedErr != nil {
		return nil, storedErr
	}
	return c.masterKeyChain, nil
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() cryptoService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// Primitives returns the cipher primitives used for attachment content.
func (c *Container) Primitives() cryptoService.Primitives {
	c.primitivesInit.Do(func() {
		c.primitives = cryptoService.NewPrimitives(c.AEADManager())
	})
	return c.primitives
}

// KeyWrapper returns the service that wraps server keys under the master key.
func (c *Container) KeyWrapper() cryptoService.KeyWrapper {
	c.keyWrapperInit.Do(func() {
		c.keyWrapper = cryptoService.NewKeyWrapper(c.AEADManager())
	})
	return c.keyWrapper
}

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// initMasterKeyChain loads the master key chain, decrypting each entry through the
// configured KMS keeper when KMS_KEY_URI is set.
func (c *Container) initMasterKeyChain() (*cryptoDomain.MasterKeyChain, error) {
	ctx := context.Background()
	logger := c.Logger()

	var keeper cryptoDomain.KMSKeeper
	if c.config.KMSKeyURI != "" {
		provider, err := cryptoService.ProviderForKeyURI(c.config.KMSKeyURI)
		if err != nil {
			return nil, fmt.Errorf("invalid KMS_KEY_URI: %w", err)
		}
		if c.config.KMSProvider != "" && c.config.KMSProvider != provider {
			return nil, fmt.Errorf("KMS_PROVIDER %q does not match KMS_KEY_URI provider %q", c.config.KMSProvider, provider)
		}
		logger.Info("opening kms keeper for master keys", slog.String("kms_provider", provider))
		k, err := c.KMSService().OpenKeeper(ctx, c.config.KMSKeyURI)
		if err != nil {
			return nil, fmt.Errorf("failed to open kms keeper: %w", err)
		}
		c.kmsKeeper = k
		keeper = k
	}

	masterKeyChain, err := cryptoDomain.LoadMasterKeyChain(ctx, cryptoDomain.MasterKeySource{
		MasterKeys:         c.config.MasterKeys,
		ActiveMasterKeyID:  c.config.ActiveMasterKeyID,
		AllowTestMasterKey: c.config.AllowTestMasterKey,
		Production:         c.config.IsProduction(),
	}, keeper, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key chain: %w", err)
	}
	return masterKeyChain, nil
}
