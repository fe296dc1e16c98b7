// Package http provides HTTP handlers for server key management.
package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/attachments/internal/httputil"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
	"github.com/allisson/attachments/internal/keyvault/http/dto"
	keyvaultUseCase "github.com/allisson/attachments/internal/keyvault/usecase"
	customValidation "github.com/allisson/attachments/internal/validation"
)

// ServerKeyHandler handles HTTP requests for server key lifecycle operations.
type ServerKeyHandler struct {
	keyVault keyvaultUseCase.KeyVaultUseCase
	logger   *slog.Logger
}

// NewServerKeyHandler creates a new server key handler with required dependencies.
func NewServerKeyHandler(keyVault keyvaultUseCase.KeyVaultUseCase, logger *slog.Logger) *ServerKeyHandler {
	return &ServerKeyHandler{
		keyVault: keyVault,
		logger:   logger,
	}
}

// CreateHandler generates a new server key for the optional scope.
// POST /v1/server-keys - Returns 201 Created with the key ID.
func (h *ServerKeyHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateServerKeyRequest

	// An empty body means an unscoped key.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	generated, err := h.keyVault.GenerateKey(c.Request.Context(), req.Scope())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	// The plaintext key stays in the vault cache; the API only hands out the ID.
	clear(generated.Key)

	c.JSON(http.StatusCreated, dto.ServerKeyResponse{
		ID:        generated.ID.String(),
		Available: true,
	})
}

// GetHandler reports whether a server key is available.
// GET /v1/server-keys/:id - Returns 200 OK, or 404 when the key is missing, revoked or expired.
func (h *ServerKeyHandler) GetHandler(c *gin.Context) {
	keyID, ok := h.parseKeyID(c)
	if !ok {
		return
	}

	if !h.keyVault.HasKey(c.Request.Context(), keyID) {
		httputil.HandleErrorGin(c, keyvaultDomain.ErrKeyNotAvailable, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ServerKeyResponse{
		ID:        keyID.String(),
		Available: true,
	})
}

// DeleteHandler revokes a server key.
// DELETE /v1/server-keys/:id - Returns 204 No Content, or 404 when nothing was revoked.
func (h *ServerKeyHandler) DeleteHandler(c *gin.Context) {
	keyID, ok := h.parseKeyID(c)
	if !ok {
		return
	}

	if !h.keyVault.DeleteKey(c.Request.Context(), keyID) {
		httputil.HandleErrorGin(c, keyvaultDomain.ErrServerKeyNotFound, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// CleanupHandler deactivates every expired server key.
// POST /v1/server-keys/cleanup - Returns 200 OK with the number of deactivated keys.
func (h *ServerKeyHandler) CleanupHandler(c *gin.Context) {
	count, err := h.keyVault.CleanupExpiredKeys(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CleanupResponse{Deactivated: count})
}

// StatsHandler reports key cache occupancy.
// GET /v1/server-keys/stats - Returns 200 OK.
func (h *ServerKeyHandler) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.MapStatsToResponse(h.keyVault.Stats()))
}

func (h *ServerKeyHandler) parseKeyID(c *gin.Context) (uuid.UUID, bool) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, keyvaultDomain.ErrInvalidKeyID, h.logger)
		return uuid.Nil, false
	}
	return keyID, true
}
