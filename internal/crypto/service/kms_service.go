package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"

	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

var (
	// ErrUnsupportedKMSScheme indicates KMS_KEY_URI does not use a registered provider scheme.
	ErrUnsupportedKMSScheme = errors.New("unsupported KMS key URI scheme")

	// ErrKMSEncryptUnsupported indicates the keeper can only decrypt master keys.
	ErrKMSEncryptUnsupported = errors.New("KMS keeper does not support encryption")
)

// kmsProviders maps key URI schemes to the KMS_PROVIDER names printed by the master key commands.
var kmsProviders = map[string]string{
	"awskms":        "awskms",
	"azurekeyvault": "azurekeyvault",
	"gcpkms":        "gcpkms",
	"hashivault":    "hashivault",
	"base64key":     "localsecrets",
}

// KMSService opens the keeper that protects MASTER_KEYS entries at rest.
type KMSService interface {
	// OpenKeeper opens the keeper for keyURI. The caller closes it.
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

type kmsService struct{}

// NewKMSService creates a KMSService backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens a gocloud.dev/secrets keeper. Supported schemes are gcpkms://, awskms://,
// azurekeyvault://, hashivault:// and base64key:// (localsecrets, development only).
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	if _, err := ProviderForKeyURI(keyURI); err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

// ProviderForKeyURI returns the KMS_PROVIDER name for keyURI's scheme.
func ProviderForKeyURI(keyURI string) (string, error) {
	u, err := url.Parse(keyURI)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKMSScheme, keyURI)
	}
	provider, ok := kmsProviders[u.Scheme]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKMSScheme, u.Scheme)
	}
	return provider, nil
}

// EncryptMasterKey seals a freshly generated master key with keeper so it can be stored in
// MASTER_KEYS. *secrets.Keeper supports it; decrypt-only keepers return ErrKMSEncryptUnsupported.
func EncryptMasterKey(ctx context.Context, keeper cryptoDomain.KMSKeeper, masterKey []byte) ([]byte, error) {
	encrypter, ok := keeper.(interface {
		Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	})
	if !ok {
		return nil, ErrKMSEncryptUnsupported
	}

	ciphertext, err := encrypter.Encrypt(ctx, masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt master key with KMS: %w", err)
	}
	return ciphertext, nil
}
