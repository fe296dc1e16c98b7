package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	attachmentDomain "github.com/allisson/attachments/internal/attachment/domain"
	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	cryptoService "github.com/allisson/attachments/internal/crypto/service"
	apperrors "github.com/allisson/attachments/internal/errors"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
)

// Config holds the tunables of the attachment service.
type Config struct {
	// MaxFileSize rejects larger attachments. Zero or values above MaxFileSize use MaxFileSize.
	MaxFileSize int64
}

type attachmentUseCase struct {
	primitives       cryptoService.Primitives
	keyVault         ServerKeyProvider
	conversationKeys ConversationKeyRepository
	cfg              Config
	logger           *slog.Logger
}

// NewAttachmentUseCase creates the attachment encryption service.
func NewAttachmentUseCase(
	primitives cryptoService.Primitives,
	keyVault ServerKeyProvider,
	conversationKeys ConversationKeyRepository,
	cfg Config,
	logger *slog.Logger,
) AttachmentUseCase {
	if cfg.MaxFileSize <= 0 || cfg.MaxFileSize > attachmentDomain.MaxFileSize {
		cfg.MaxFileSize = attachmentDomain.MaxFileSize
	}
	return &attachmentUseCase{
		primitives:       primitives,
		keyVault:         keyVault,
		conversationKeys: conversationKeys,
		cfg:              cfg,
		logger:           logger,
	}
}

// Encrypt seals an attachment for the requested mode and returns the client and server envelopes.
func (a *attachmentUseCase) Encrypt(
	ctx context.Context,
	input *attachmentDomain.EncryptInput,
) (*attachmentDomain.EncryptResult, error) {
	if err := a.validateEncryptInput(input); err != nil {
		return nil, err
	}

	result := &attachmentDomain.EncryptResult{}

	// The primary output and the server copy share only the read-only plaintext.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.encryptPrimary(input, result)
	})
	if input.Mode.RequiresServerKey() {
		g.Go(func() error {
			serverCopy, err := a.encryptServerCopy(gctx, input.ConversationID, input.File)
			if err != nil {
				return err
			}
			result.ServerCopy = serverCopy
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debug("attachment encrypted",
		slog.String("mode", string(input.Mode)),
		slog.Int64("size", result.Metadata.OriginalSize),
		slog.Bool("thumbnail", result.Thumbnail != nil),
		slog.String("conversation_id", input.ConversationID),
	)
	return result, nil
}

func (a *attachmentUseCase) validateEncryptInput(input *attachmentDomain.EncryptInput) error {
	if input == nil || len(input.File) == 0 {
		return attachmentDomain.ErrEmptyFile
	}
	if int64(len(input.File)) > a.cfg.MaxFileSize {
		return attachmentDomain.ErrFileTooLarge
	}
	if _, err := attachmentDomain.ParseMode(string(input.Mode)); err != nil {
		return err
	}
	if input.Mode.RequiresServerKey() && input.ConversationID == "" {
		return attachmentDomain.ErrConversationIDRequired
	}
	return nil
}

// encryptPrimary seals the file and the optional thumbnail under a fresh per-attachment key.
func (a *attachmentUseCase) encryptPrimary(
	input *attachmentDomain.EncryptInput,
	result *attachmentDomain.EncryptResult,
) error {
	key, err := a.primitives.GenerateKey()
	if err != nil {
		return apperrors.Wrap(err, "failed to generate attachment key")
	}
	defer cryptoDomain.Zero(key)

	nonce, err := a.primitives.GenerateNonce()
	if err != nil {
		return apperrors.Wrap(err, "failed to generate attachment nonce")
	}

	originalHash := a.primitives.SHA256(input.File)

	ciphertext, tag, err := a.primitives.Encrypt(key, nonce, input.File)
	if err != nil {
		return apperrors.Wrap(err, "failed to encrypt attachment")
	}

	hmacKey := a.primitives.DeriveHMACKey(key)
	mac := a.primitives.HMACSHA256(hmacKey, ciphertext)
	cryptoDomain.Zero(hmacKey)

	result.EncryptedBuffer = ciphertext
	result.Metadata = attachmentDomain.Metadata{
		Mode:          input.Mode,
		Algorithm:     cryptoDomain.AESGCM,
		EncryptionKey: encode(key),
		IV:            encode(nonce),
		AuthTag:       encode(tag),
		HMAC:          encode(mac),
		OriginalSize:  int64(len(input.File)),
		EncryptedSize: int64(len(ciphertext) + len(tag)),
		MimeType:      input.MimeType,
		OriginalHash:  originalHash,
		EncryptedHash: a.primitives.SHA256(ciphertext),
	}

	if len(input.Thumbnail) == 0 {
		return nil
	}

	thumbNonce, err := a.primitives.GenerateNonce()
	if err != nil {
		return apperrors.Wrap(err, "failed to generate thumbnail nonce")
	}
	thumbCiphertext, thumbTag, err := a.primitives.Encrypt(key, thumbNonce, input.Thumbnail)
	if err != nil {
		return apperrors.Wrap(err, "failed to encrypt thumbnail")
	}
	result.Thumbnail = &attachmentDomain.EncryptedThumbnail{
		EncryptedBuffer: thumbCiphertext,
		IV:              encode(thumbNonce),
		AuthTag:         encode(thumbTag),
	}
	return nil
}

func (a *attachmentUseCase) encryptServerCopy(
	ctx context.Context,
	conversationID string,
	file []byte,
) (*attachmentDomain.ServerCopy, error) {
	keyID, key, err := a.resolveConversationKey(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	nonce, err := a.primitives.GenerateNonce()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate server copy nonce")
	}

	ciphertext, tag, err := a.primitives.Encrypt(key, nonce, file)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt server copy")
	}

	return &attachmentDomain.ServerCopy{
		EncryptedBuffer: ciphertext,
		KeyID:           keyID.String(),
		IV:              encode(nonce),
		AuthTag:         encode(tag),
	}, nil
}

// resolveConversationKey returns the conversation's server key, generating and associating a
// new one when none is associated or the associated key is no longer available. Concurrent
// first encryptions for one conversation may each generate a key; the last association wins
// and earlier server copies stay decryptable through the key ID they carry.
func (a *attachmentUseCase) resolveConversationKey(
	ctx context.Context,
	conversationID string,
) (uuid.UUID, []byte, error) {
	keyID, err := a.conversationKeys.GetKeyID(ctx, conversationID)
	switch {
	case err == nil:
		key, err := a.keyVault.GetKey(ctx, keyID)
		if err == nil {
			return keyID, key, nil
		}
		a.logger.Info("conversation key not available, generating a new one",
			slog.String("conversation_id", conversationID),
			slog.String("key_id", keyID.String()),
		)
	case apperrors.Is(err, attachmentDomain.ErrConversationKeyNotFound):
	default:
		a.logger.Warn("failed to look up conversation key",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err),
		)
	}

	generated, err := a.keyVault.GenerateKey(ctx, keyvaultDomain.Scope{ConversationID: conversationID})
	if err != nil {
		return uuid.Nil, nil, apperrors.Wrap(err, "failed to generate conversation key")
	}

	if err := a.conversationKeys.SetKeyID(ctx, conversationID, generated.ID); err != nil {
		a.logger.Warn("failed to associate conversation key",
			slog.String("conversation_id", conversationID),
			slog.String("key_id", generated.ID.String()),
			slog.Any("error", err),
		)
	}

	return generated.ID, generated.Key, nil
}

// Decrypt opens a client-held envelope and reports whether the plaintext matches ExpectedHash.
func (a *attachmentUseCase) Decrypt(
	ctx context.Context,
	input *attachmentDomain.DecryptInput,
) (*attachmentDomain.DecryptResult, error) {
	if input == nil || len(input.EncryptedBuffer) == 0 {
		return nil, attachmentDomain.ErrEmptyFile
	}

	key, err := decodeField("encryption_key", input.EncryptionKey, cryptoDomain.KeySize)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	nonce, err := decodeField("iv", input.IV, cryptoDomain.NonceSize)
	if err != nil {
		return nil, err
	}
	tag, err := decodeField("auth_tag", input.AuthTag, cryptoDomain.TagSize)
	if err != nil {
		return nil, err
	}

	plaintext, err := a.primitives.Decrypt(key, nonce, input.EncryptedBuffer, tag)
	if err != nil {
		return nil, err
	}

	computed := a.primitives.SHA256(plaintext)
	return &attachmentDomain.DecryptResult{
		DecryptedBuffer: plaintext,
		HashVerified:    input.ExpectedHash != "" && strings.EqualFold(computed, input.ExpectedHash),
		ComputedHash:    computed,
	}, nil
}

// DecryptServer opens a server copy using the server key named by KeyID.
func (a *attachmentUseCase) DecryptServer(
	ctx context.Context,
	input *attachmentDomain.ServerDecryptInput,
) ([]byte, error) {
	if input == nil || len(input.EncryptedBuffer) == 0 {
		return nil, attachmentDomain.ErrEmptyFile
	}

	keyID, err := uuid.Parse(input.KeyID)
	if err != nil {
		return nil, keyvaultDomain.ErrInvalidKeyID
	}
	nonce, err := decodeField("iv", input.IV, cryptoDomain.NonceSize)
	if err != nil {
		return nil, err
	}
	tag, err := decodeField("auth_tag", input.AuthTag, cryptoDomain.TagSize)
	if err != nil {
		return nil, err
	}

	key, err := a.keyVault.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	return a.primitives.Decrypt(key, nonce, input.EncryptedBuffer, tag)
}

// VerifyHMAC checks expectedHMAC against the ciphertext in constant time.
func (a *attachmentUseCase) VerifyHMAC(
	ctx context.Context,
	encryptedBuffer []byte,
	encryptionKey, expectedHMAC string,
) bool {
	key, err := decodeField("encryption_key", encryptionKey, cryptoDomain.KeySize)
	if err != nil {
		return false
	}

	hmacKey := a.primitives.DeriveHMACKey(key)
	defer cryptoDomain.ZeroAll(key, hmacKey)
	computed := a.primitives.HMACSHA256(hmacKey, encryptedBuffer)

	// A malformed expected value is compared as zeros so it costs the same as a wrong one.
	expected, decodeErr := base64.StdEncoding.DecodeString(expectedHMAC)
	if decodeErr != nil {
		expected = make([]byte, len(computed))
	}

	equal := a.primitives.ConstantTimeEquals(computed, expected)
	return equal && decodeErr == nil
}

// EncryptMetadata serializes record to JSON and seals it as a metadata envelope.
func (a *attachmentUseCase) EncryptMetadata(
	ctx context.Context,
	record any,
	encryptionKey string,
) (string, error) {
	key, err := decodeField("encryption_key", encryptionKey, cryptoDomain.KeySize)
	if err != nil {
		return "", err
	}
	defer cryptoDomain.Zero(key)

	plaintext, err := json.Marshal(record)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "metadata is not serializable")
	}

	nonce, err := a.primitives.GenerateNonce()
	if err != nil {
		return "", apperrors.Wrap(err, "failed to generate metadata nonce")
	}

	ciphertext, tag, err := a.primitives.Encrypt(key, nonce, plaintext)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encrypt metadata")
	}

	return attachmentDomain.MetadataEnvelope{IV: nonce, AuthTag: tag, Ciphertext: ciphertext}.String(), nil
}

// DecryptMetadata opens a metadata envelope and returns the JSON plaintext.
func (a *attachmentUseCase) DecryptMetadata(
	ctx context.Context,
	envelope, encryptionKey string,
) ([]byte, error) {
	key, err := decodeField("encryption_key", encryptionKey, cryptoDomain.KeySize)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	env, err := attachmentDomain.ParseMetadataEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	return a.primitives.Decrypt(key, env.IV, env.Ciphertext, env.AuthTag)
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// decodeField decodes a standard base64 value and requires exactly size bytes.
func decodeField(name, value string, size int) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, apperrors.Wrapf(attachmentDomain.ErrInvalidEncoding, "%s", name)
	}
	if len(b) != size {
		return nil, apperrors.Wrapf(
			attachmentDomain.ErrInvalidFieldLength,
			"%s must be %d bytes, got %d", name, size, len(b),
		)
	}
	return b, nil
}
