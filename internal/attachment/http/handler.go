// Package http provides HTTP handlers for attachment encryption.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/attachments/internal/attachment/http/dto"
	attachmentUseCase "github.com/allisson/attachments/internal/attachment/usecase"
	apperrors "github.com/allisson/attachments/internal/errors"
	"github.com/allisson/attachments/internal/httputil"
	customValidation "github.com/allisson/attachments/internal/validation"
)

var errMetadataNotJSON = apperrors.Wrap(apperrors.ErrInvalidInput, "decrypted metadata is not a JSON document")

// validatable is implemented by every request DTO.
type validatable interface {
	Validate() error
}

// AttachmentHandler handles HTTP requests for attachment encryption operations.
type AttachmentHandler struct {
	attachments attachmentUseCase.AttachmentUseCase
	logger      *slog.Logger
}

// NewAttachmentHandler creates a new attachment handler with required dependencies.
func NewAttachmentHandler(attachments attachmentUseCase.AttachmentUseCase, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments: attachments,
		logger:      logger,
	}
}

// EncryptHandler encrypts an attachment under the requested mode.
// POST /v1/attachments/encrypt - Returns 200 OK with buffers, metadata and the optional
// thumbnail and server copy.
func (h *AttachmentHandler) EncryptHandler(c *gin.Context) {
	var req dto.EncryptRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.attachments.Encrypt(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEncryptResultToResponse(result))
}

// DecryptHandler decrypts an attachment with caller-supplied key material.
// POST /v1/attachments/decrypt - Returns 200 OK, or 422 with integrity_check_failed on tampering.
func (h *AttachmentHandler) DecryptHandler(c *gin.Context) {
	var req dto.DecryptRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.attachments.Decrypt(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDecryptResultToResponse(result))
}

// ServerDecryptHandler decrypts a server copy with a vault-held key.
// POST /v1/attachments/server-decrypt - Returns 200 OK, or 404 when the key is not available.
func (h *AttachmentHandler) ServerDecryptHandler(c *gin.Context) {
	var req dto.ServerDecryptRequest
	if !h.bind(c, &req) {
		return
	}

	plaintext, err := h.attachments.DecryptServer(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ServerDecryptResponse{DecryptedBuffer: plaintext})
}

// VerifyHMACHandler checks the HMAC of a ciphertext.
// POST /v1/attachments/verify-hmac - Returns 200 OK with valid set to the outcome.
func (h *AttachmentHandler) VerifyHMACHandler(c *gin.Context) {
	var req dto.VerifyHMACRequest
	if !h.bind(c, &req) {
		return
	}

	valid := h.attachments.VerifyHMAC(c.Request.Context(), req.EncryptedBuffer, req.EncryptionKey, req.HMAC)

	c.JSON(http.StatusOK, dto.VerifyHMACResponse{Valid: valid})
}

// EncryptMetadataHandler seals a JSON document under an attachment key.
// POST /v1/attachments/metadata/encrypt - Returns 200 OK with the envelope.
func (h *AttachmentHandler) EncryptMetadataHandler(c *gin.Context) {
	var req dto.EncryptMetadataRequest
	if !h.bind(c, &req) {
		return
	}

	envelope, err := h.attachments.EncryptMetadata(c.Request.Context(), req.Metadata, req.EncryptionKey)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.EncryptMetadataResponse{Envelope: envelope})
}

// DecryptMetadataHandler opens a metadata envelope.
// POST /v1/attachments/metadata/decrypt - Returns 200 OK with the JSON document.
func (h *AttachmentHandler) DecryptMetadataHandler(c *gin.Context) {
	var req dto.DecryptMetadataRequest
	if !h.bind(c, &req) {
		return
	}

	plaintext, err := h.attachments.DecryptMetadata(c.Request.Context(), req.Envelope, req.EncryptionKey)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	if !json.Valid(plaintext) {
		httputil.HandleErrorGin(c, errMetadataNotJSON, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.DecryptMetadataResponse{Metadata: plaintext})
}

// bind decodes and validates the request body, writing the error response on failure.
func (h *AttachmentHandler) bind(c *gin.Context, req validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return false
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return false
	}
	return true
}
