package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
	cryptoService "github.com/allisson/attachments/internal/crypto/service"
)

// RunRotateMasterKey generates a new master key, appends it to the existing MASTER_KEYS and
// makes it active. Server keys keep working under the old master key until
// rewrap-server-keys moves them to the new one.
func RunRotateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	writer io.Writer,
	keyID, kmsProvider, kmsKeyURI, existingMasterKeys, existingActiveKeyID string,
) error {
	if (kmsProvider == "") != (kmsKeyURI == "") {
		return errKMSParamsTogether
	}

	if existingMasterKeys == "" {
		return errors.New("MASTER_KEYS is not set - cannot rotate without existing keys")
	}
	if existingActiveKeyID == "" {
		return errors.New("ACTIVE_MASTER_KEY_ID is not set")
	}

	if keyID == "" {
		keyID = defaultMasterKeyID()
	}
	if keyID == existingActiveKeyID || hasMasterKeyID(existingMasterKeys, keyID) {
		return fmt.Errorf("master key id %q is already in MASTER_KEYS", keyID)
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

	// New key last, it becomes the active one
	newMasterKeys := fmt.Sprintf("%s,%s:%s", existingMasterKeys, keyID, encodedKey)

	logger.Info("master key rotated",
		slog.String("previous_master_key_id", existingActiveKeyID),
		slog.String("master_key_id", keyID),
	)

	_, _ = fmt.Fprintln(writer, "# Master Key Rotation")
	_, _ = fmt.Fprintln(writer, "# Update these environment variables in your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	if kmsKeyURI != "" {
		_, _ = fmt.Fprintf(writer, "KMS_PROVIDER=\"%s\"\n", kmsProvider)
		_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	}
	_, _ = fmt.Fprintf(writer, "MASTER_KEYS=\"%s\"\n", newMasterKeys)
	_, _ = fmt.Fprintf(writer, "ACTIVE_MASTER_KEY_ID=\"%s\"\n", keyID)
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintln(writer, "# Rotation Workflow:")
	_, _ = fmt.Fprintln(writer, "# 1. Update the above environment variables")
	_, _ = fmt.Fprintln(writer, "# 2. Restart the application")
	_, _ = fmt.Fprintln(writer, "# 3. Re-wrap server keys: app rewrap-server-keys")
	_, _ = fmt.Fprintf(writer,
		"# 4. After all server keys are re-wrapped, remove old master keys: MASTER_KEYS=\"%s:%s\"\n",
		keyID,
		encodedKey,
	)

	return nil
}

func hasMasterKeyID(masterKeys, keyID string) bool {
	for part := range strings.SplitSeq(masterKeys, ",") {
		id, _, _ := strings.Cut(strings.TrimSpace(part), ":")
		if id == keyID {
			return true
		}
	}
	return false
}
