package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	"github.com/allisson/attachments/internal/database"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
	"github.com/allisson/attachments/internal/testutil"
)

func newServerKey(masterKeyID string, expiresAt *time.Time) *keyvaultDomain.ServerKey {
	return &keyvaultDomain.ServerKey{
		ID: uuid.Must(uuid.NewV7()),
		Wrapped: cryptoDomain.WrappedKey{
			MasterKeyID:  masterKeyID,
			Algorithm:    cryptoDomain.AESGCM,
			EncryptedKey: []byte("encrypted-server-key-data-32-byt"),
			Nonce:        []byte("nonce-123456"),
			Tag:          []byte("tag-123456789012"),
		},
		Purpose:        keyvaultDomain.PurposeAttachment,
		ConversationID: keyvaultDomain.StringPtr("conv-1"),
		IsActive:       true,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		ExpiresAt:      expiresAt,
	}
}

func TestSQLiteServerKeyRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewSQLiteServerKeyRepository(db)
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	key := newServerKey("master-key-1", &expiresAt)
	key.UserID = keyvaultDomain.StringPtr("user-1")

	require.NoError(t, repo.Create(ctx, key))

	got, err := repo.Get(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	assert.Equal(t, key.Wrapped, got.Wrapped)
	assert.Equal(t, keyvaultDomain.PurposeAttachment, got.Purpose)
	require.NotNil(t, got.ConversationID)
	assert.Equal(t, "conv-1", *got.ConversationID)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "user-1", *got.UserID)
	assert.True(t, got.IsActive)
	assert.WithinDuration(t, key.CreatedAt, got.CreatedAt, time.Millisecond)
	assert.Nil(t, got.LastAccessedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, expiresAt, *got.ExpiresAt, time.Millisecond)
}

func TestSQLiteServerKeyRepository_GetNotFound(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewSQLiteServerKeyRepository(db)

	got, err := repo.Get(context.Background(), uuid.Must(uuid.NewV7()))
	assert.Nil(t, got)
	assert.ErrorIs(t, err, keyvaultDomain.ErrServerKeyNotFound)
}

func TestSQLiteServerKeyRepository_UpdateLastAccessedAt(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewSQLiteServerKeyRepository(db)
	ctx := context.Background()

	key := newServerKey("master-key-1", nil)
	require.NoError(t, repo.Create(ctx, key))

	accessedAt := time.Now().UTC()
	require.NoError(t, repo.UpdateLastAccessedAt(ctx, key.ID, accessedAt))

	got, err := repo.Get(ctx, key.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastAccessedAt)
	assert.WithinDuration(t, accessedAt, *got.LastAccessedAt, time.Millisecond)
}

func TestSQLiteServerKeyRepository_SoftDelete(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewSQLiteServerKeyRepository(db)
	ctx := context.Background()

	key := newServerKey("master-key-1", nil)
	require.NoError(t, repo.Create(ctx, key))

	t.Run("deactivates active key", func(t *testing.T) {
		require.NoError(t, repo.SoftDelete(ctx, key.ID))

		got, err := repo.Get(ctx, key.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})

	t.Run("second delete reports not found", func(t *testing.T) {
		err := repo.SoftDelete(ctx, key.ID)
		assert.ErrorIs(t, err, keyvaultDomain.ErrServerKeyNotFound)
	})

	t.Run("unknown key reports not found", func(t *testing.T) {
		err := repo.SoftDelete(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, keyvaultDomain.ErrServerKeyNotFound)
	})
}

func TestSQLiteServerKeyRepository_DeactivateExpired(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewSQLiteServerKeyRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	expired := newServerKey("master-key-1", &past)
	live := newServerKey("master-key-1", &future)
	forever := newServerKey("master-key-1", nil)
	for _, key := range []*keyvaultDomain.ServerKey{expired, live, forever} {
		require.NoError(t, repo.Create(ctx, key))
	}

	count, err := repo.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := repo.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	got, err = repo.Get(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	got, err = repo.Get(ctx, forever.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	count, err = repo.DeactivateExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "already inactive keys are not counted again")
}

func TestSQLiteServerKeyRepository_ListActiveNotMasterKeyID(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewSQLiteServerKeyRepository(db)
	ctx := context.Background()

	old1 := newServerKey("master-old", nil)
	old2 := newServerKey("master-old", nil)
	current := newServerKey("master-new", nil)
	deleted := newServerKey("master-old", nil)
	deleted.IsActive = false
	for _, key := range []*keyvaultDomain.ServerKey{old1, old2, current, deleted} {
		require.NoError(t, repo.Create(ctx, key))
	}

	t.Run("returns active keys under other master keys", func(t *testing.T) {
		keys, err := repo.ListActiveNotMasterKeyID(ctx, "master-new", uuid.Nil, 10)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, old1.ID, keys[0].ID)
		assert.Equal(t, old2.ID, keys[1].ID)
	})

	t.Run("respects limit", func(t *testing.T) {
		keys, err := repo.ListActiveNotMasterKeyID(ctx, "master-new", uuid.Nil, 1)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("resumes after cursor", func(t *testing.T) {
		keys, err := repo.ListActiveNotMasterKeyID(ctx, "master-new", old1.ID, 10)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, old2.ID, keys[0].ID)

		keys, err = repo.ListActiveNotMasterKeyID(ctx, "master-new", old2.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("only keys under other master keys", func(t *testing.T) {
		keys, err := repo.ListActiveNotMasterKeyID(ctx, "master-old", uuid.Nil, 10)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, current.ID, keys[0].ID)
	})
}

func TestSQLiteServerKeyRepository_UpdateWrapping(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewSQLiteServerKeyRepository(db)
	txManager := database.NewTxManager(db)
	ctx := context.Background()

	key := newServerKey("master-old", nil)
	require.NoError(t, repo.Create(ctx, key))

	key.Wrapped = cryptoDomain.WrappedKey{
		MasterKeyID:  "master-new",
		Algorithm:    cryptoDomain.ChaCha20,
		EncryptedKey: []byte("rewrapped-server-key-data-32-byt"),
		Nonce:        []byte("nonce-654321"),
		Tag:          []byte("tag-210987654321"),
	}

	err := txManager.WithTx(ctx, func(ctx context.Context) error {
		return repo.UpdateWrapping(ctx, key)
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, key.Wrapped, got.Wrapped)
}
