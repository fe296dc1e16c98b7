package mysql

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

var serverKeyRowColumns = []string{
	"id", "encrypted_key", "nonce", "tag", "algorithm", "master_key_id", "purpose",
	"conversation_id", "user_id", "is_active", "created_at", "last_accessed_at", "expires_at",
}

func newMockRepository(t *testing.T) (*MySQLServerKeyRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewMySQLServerKeyRepository(db), mock
}

func binaryID(t *testing.T, id uuid.UUID) []byte {
	t.Helper()

	b, err := id.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestMySQLServerKeyRepository_Create(t *testing.T) {
	repo, mock := newMockRepository(t)

	key := &keyvaultDomain.ServerKey{
		ID: uuid.Must(uuid.NewV7()),
		Wrapped: cryptoDomain.WrappedKey{
			MasterKeyID:  "master-key-1",
			Algorithm:    cryptoDomain.ChaCha20,
			EncryptedKey: []byte("encrypted"),
			Nonce:        []byte("nonce"),
			Tag:          []byte("tag"),
		},
		Purpose:   keyvaultDomain.PurposeAttachment,
		UserID:    keyvaultDomain.StringPtr("user-1"),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO server_encryption_keys")).
		WithArgs(
			binaryID(t, key.ID), key.Wrapped.EncryptedKey, key.Wrapped.Nonce, key.Wrapped.Tag,
			"chacha20-poly1305", "master-key-1", "attachment", nil, "user-1", true,
			key.CreatedAt, nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLServerKeyRepository_Get(t *testing.T) {
	repo, mock := newMockRepository(t)
	keyID := uuid.Must(uuid.NewV7())
	createdAt := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(serverKeyRowColumns).AddRow(
			binaryID(t, keyID), []byte("encrypted"), []byte("nonce"), []byte("tag"),
			"aes-256-gcm", "master-key-1", "attachment", "conv-1", "user-1", true,
			createdAt, createdAt, nil,
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM server_encryption_keys WHERE id = ?")).
			WithArgs(binaryID(t, keyID)).
			WillReturnRows(rows)

		got, err := repo.Get(context.Background(), keyID)
		require.NoError(t, err)
		assert.Equal(t, keyID, got.ID)
		assert.Equal(t, "user-1", *got.UserID)
		require.NotNil(t, got.LastAccessedAt)
		assert.Equal(t, createdAt, *got.LastAccessedAt)
		assert.Nil(t, got.ExpiresAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM server_encryption_keys WHERE id = ?")).
			WithArgs(binaryID(t, keyID)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), keyID)
		assert.ErrorIs(t, err, keyvaultDomain.ErrServerKeyNotFound)
	})

	t.Run("InvalidStoredID", func(t *testing.T) {
		rows := sqlmock.NewRows(serverKeyRowColumns).AddRow(
			[]byte("short"), []byte("encrypted"), []byte("nonce"), []byte("tag"),
			"aes-256-gcm", "master-key-1", "attachment", nil, nil, true,
			createdAt, nil, nil,
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM server_encryption_keys WHERE id = ?")).
			WithArgs(binaryID(t, keyID)).
			WillReturnRows(rows)

		_, err := repo.Get(context.Background(), keyID)
		assert.ErrorContains(t, err, "failed to unmarshal server key id")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLServerKeyRepository_SoftDelete(t *testing.T) {
	repo, mock := newMockRepository(t)
	keyID := uuid.Must(uuid.NewV7())

	mock.ExpectExec(regexp.QuoteMeta("SET is_active = FALSE WHERE id = ? AND is_active = TRUE")).
		WithArgs(binaryID(t, keyID)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), keyID)
	assert.ErrorIs(t, err, keyvaultDomain.ErrServerKeyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLServerKeyRepository_DeactivateExpired(t *testing.T) {
	repo, mock := newMockRepository(t)
	before := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("expires_at <= ?")).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.DeactivateExpired(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLServerKeyRepository_ListActiveNotMasterKeyID(t *testing.T) {
	repo, mock := newMockRepository(t)
	keyID := uuid.Must(uuid.NewV7())

	rows := sqlmock.NewRows(serverKeyRowColumns).AddRow(
		binaryID(t, keyID), []byte("encrypted"), []byte("nonce"), []byte("tag"),
		"aes-256-gcm", "master-old", "attachment", nil, nil, true,
		time.Now().UTC(), nil, nil,
	)
	mock.ExpectQuery(regexp.QuoteMeta("master_key_id <> ?")).
		WithArgs("master-new", binaryID(t, uuid.Nil), 10).
		WillReturnRows(rows)

	keys, err := repo.ListActiveNotMasterKeyID(context.Background(), "master-new", uuid.Nil, 10)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, keyID, keys[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLServerKeyRepository_ListActiveNotMasterKeyID_AfterCursor(t *testing.T) {
	repo, mock := newMockRepository(t)
	cursor := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(regexp.QuoteMeta("id > ?")).
		WithArgs("master-new", binaryID(t, cursor), 10).
		WillReturnRows(sqlmock.NewRows(serverKeyRowColumns))

	keys, err := repo.ListActiveNotMasterKeyID(context.Background(), "master-new", cursor, 10)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLServerKeyRepository_UpdateWrapping(t *testing.T) {
	repo, mock := newMockRepository(t)
	key := &keyvaultDomain.ServerKey{
		ID: uuid.Must(uuid.NewV7()),
		Wrapped: cryptoDomain.WrappedKey{
			MasterKeyID:  "master-new",
			Algorithm:    cryptoDomain.AESGCM,
			EncryptedKey: []byte("encrypted"),
			Nonce:        []byte("nonce"),
			Tag:          []byte("tag"),
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE server_encryption_keys")).
		WithArgs([]byte("encrypted"), []byte("nonce"), []byte("tag"), "aes-256-gcm", "master-new", binaryID(t, key.ID)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateWrapping(context.Background(), key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLServerKeyRepository_UpdateLastAccessedAt(t *testing.T) {
	repo, mock := newMockRepository(t)
	keyID := uuid.Must(uuid.NewV7())
	accessedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET last_accessed_at = ? WHERE id = ?")).
		WithArgs(accessedAt, binaryID(t, keyID)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLastAccessedAt(context.Background(), keyID, accessedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
