package domain

import (
	"github.com/allisson/attachments/internal/errors"
)

var (
	// ErrServerKeyNotFound indicates no record exists for the key ID.
	ErrServerKeyNotFound = errors.Wrap(errors.ErrNotFound, "server key not found")

	// ErrKeyNotAvailable indicates the key cannot be handed out: it is missing, inactive,
	// expired, wrapped under an unknown master key, or the store could not be read.
	ErrKeyNotAvailable = errors.Wrap(errors.ErrNotFound, "server key not available")

	// ErrPersistenceDegraded marks a generated key that could not be stored. The key is
	// still usable in this process but will not survive a restart.
	ErrPersistenceDegraded = errors.New("server key persistence degraded")

	// ErrInvalidKeyID indicates the key ID is not a valid UUID.
	ErrInvalidKeyID = errors.Wrap(errors.ErrInvalidInput, "invalid server key id")
)
