package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// TestMasterKeyID identifies the fixed master key used when ALLOW_TEST_MASTER_KEY is enabled.
// Data wrapped under it is not protected and must never reach production.
const TestMasterKeyID = "insecure-test-master-key"

func testMasterKeyMaterial() []byte {
	return []byte("INSECURE-TEST-MASTER-KEY-DO-NOT!")
}

// KMSKeeper decrypts master keys stored as KMS ciphertext. *secrets.Keeper satisfies it.
type KMSKeeper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// MasterKey is the root key of the envelope scheme: it wraps server keys and nothing else.
//
// The key material lives in a memguard enclave (encrypted, guarded memory) and is only
// decrypted into a locked buffer for the duration of a single Use call.
type MasterKey struct {
	ID      string
	enclave *memguard.Enclave
}

// NewMasterKey seals key into an enclave. The key slice is wiped before returning,
// whether or not the call succeeds.
func NewMasterKey(id string, key []byte) (*MasterKey, error) {
	if len(key) != KeySize {
		Zero(key)
		return nil, fmt.Errorf("%w: master key %s must be %d bytes, got %d", ErrInvalidKeySize, id, KeySize, len(key))
	}
	return &MasterKey{ID: id, enclave: memguard.NewEnclave(key)}, nil
}

// Use opens the enclave and passes the plaintext key to fn. The buffer is destroyed when fn
// returns, so fn must not retain the slice.
func (m *MasterKey) Use(fn func(key []byte) error) error {
	buf, err := m.enclave.Open()
	if err != nil {
		return fmt.Errorf("failed to open master key %s: %w", m.ID, err)
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

// MasterKeyChain holds every loaded master key with one designated as active.
//
// New server keys are always wrapped under the active key. Older keys stay loaded so
// records wrapped before a rotation can still be unwrapped until they are re-wrapped.
type MasterKeyChain struct {
	activeID string
	keys     sync.Map
}

// NewMasterKeyChain builds a chain from already sealed keys.
func NewMasterKeyChain(activeID string, keys ...*MasterKey) (*MasterKeyChain, error) {
	mkc := &MasterKeyChain{activeID: activeID}
	for _, key := range keys {
		mkc.keys.Store(key.ID, key)
	}
	if _, ok := mkc.Get(activeID); !ok {
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, activeID)
	}
	return mkc, nil
}

// ActiveMasterKeyID returns the ID of the key used to wrap new server keys.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Active returns the active master key.
func (m *MasterKeyChain) Active() (*MasterKey, error) {
	key, ok := m.Get(m.activeID)
	if !ok {
		return nil, ErrActiveMasterKeyNotFound
	}
	return key, nil
}

// Get retrieves a master key by ID.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	if masterKey, ok := m.keys.Load(id); ok {
		return masterKey.(*MasterKey), ok
	}

	return nil, false
}

// IDs returns the loaded master key IDs in lexical order.
func (m *MasterKeyChain) IDs() []string {
	var ids []string
	m.keys.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	slices.Sort(ids)
	return ids
}

// Close drops every key reference and resets the chain. Enclave memory itself is
// released by memguard.Purge at process exit.
func (m *MasterKeyChain) Close() {
	m.activeID = ""
	m.keys.Clear()
}

// MasterKeySource describes where master keys come from.
//
// MasterKeys uses the format "id1:base64,id2:base64". When a KMS keeper is supplied to
// LoadMasterKeyChain each base64 value is KMS ciphertext, otherwise it is the raw 32-byte key.
type MasterKeySource struct {
	MasterKeys         string
	ActiveMasterKeyID  string
	AllowTestMasterKey bool
	Production         bool
}

// LoadMasterKeyChain parses and seals the configured master keys.
//
// An empty MASTER_KEYS is fatal unless AllowTestMasterKey is set outside production, in
// which case the fixed test key is loaded and a warning is logged.
func LoadMasterKeyChain(
	ctx context.Context,
	source MasterKeySource,
	keeper KMSKeeper,
	logger *slog.Logger,
) (*MasterKeyChain, error) {
	if source.MasterKeys == "" {
		if !source.AllowTestMasterKey {
			return nil, ErrMasterKeysNotSet
		}
		if source.Production {
			return nil, ErrTestMasterKeyForbidden
		}
		logger.Warn("using insecure test master key, do not use in production",
			slog.String("master_key_id", TestMasterKeyID),
		)
		key, err := NewMasterKey(TestMasterKeyID, testMasterKeyMaterial())
		if err != nil {
			return nil, err
		}
		return NewMasterKeyChain(TestMasterKeyID, key)
	}

	if source.ActiveMasterKeyID == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	mkc := &MasterKeyChain{activeID: source.ActiveMasterKeyID}

	for part := range strings.SplitSeq(source.MasterKeys, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 || p[0] == "" {
			mkc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, part)
		}
		id := p[0]
		raw, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, id, err)
		}

		key := raw
		if keeper != nil {
			key, err = keeper.Decrypt(ctx, raw)
			if err != nil {
				mkc.Close()
				return nil, fmt.Errorf("failed to decrypt master key %s with KMS: %w", id, err)
			}
		}

		masterKey, err := NewMasterKey(id, key)
		if err != nil {
			mkc.Close()
			return nil, err
		}
		mkc.keys.Store(id, masterKey)
	}

	if _, ok := mkc.Get(source.ActiveMasterKeyID); !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, source.ActiveMasterKeyID)
	}

	logger.Info("master key chain loaded",
		slog.Int("count", len(mkc.IDs())),
		slog.String("active_master_key_id", source.ActiveMasterKeyID),
		slog.Bool("kms", keeper != nil),
	)

	return mkc, nil
}
