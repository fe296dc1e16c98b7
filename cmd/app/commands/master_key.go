package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	cryptoService "github.com/allisson/attachments/internal/crypto/service"
)

var errKMSParamsTogether = errors.New("--kms-provider and --kms-key-uri must be set together")

// RunCreateMasterKey generates a 32-byte master key and prints the environment variables
// that load it. The master key wraps every server key stored in the database.
//
// With kmsProvider and kmsKeyURI set, the key is encrypted by the KMS keeper and the
// ciphertext is printed. Without them the raw key is printed base64-encoded, which is only
// suitable for local development. If keyID is empty it defaults to "master-key-YYYY-MM-DD".
func RunCreateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI string,
) error {
	if (kmsProvider == "") != (kmsKeyURI == "") {
		return errKMSParamsTogether
	}

	if keyID == "" {
		keyID = defaultMasterKeyID()
	}

	masterKey, err := generateMasterKey()
	if err != nil {
		return err
	}
	defer cryptoDomain.Zero(masterKey)

	encodedKey, err := encodeMasterKey(ctx, kmsService, logger, kmsKeyURI, masterKey)
	if err != nil {
		return err
	}

	logger.Info("master key created",
		slog.String("master_key_id", keyID),
		slog.Bool("kms", kmsKeyURI != ""),
	)

	_, _ = fmt.Fprintln(writer, "# Master Key Configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	if kmsKeyURI != "" {
		_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=\"%s\"\n", kmsProvider)
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	} else {
		_, _ = fmt.Fprintln(writer, "# WARNING: plaintext master key, use a KMS provider in production")
	}
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s:%s\"\n", keyID, encodedKey)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)

	return nil
}

func defaultMasterKeyID() string {
	return fmt.Sprintf("master-key-%s", time.Now().UTC().Format("2006-01-02"))
}

// encodeMasterKey returns the MASTER_KEYS value for masterKey: KMS ciphertext when kmsKeyURI
// is set, the raw key otherwise. Both are base64-encoded.
func encodeMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	kmsKeyURI string,
	masterKey []byte,
) (string, error) {
	if kmsKeyURI == "" {
		return base64.StdEncoding.EncodeToString(masterKey), nil
	}

	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return "", fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
		}
	}()

	ciphertext, err := cryptoService.EncryptMasterKey(ctx, keeper, masterKey)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
