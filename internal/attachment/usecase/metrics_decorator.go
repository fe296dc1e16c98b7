package usecase

import (
	"context"
	"time"

	attachmentDomain "github.com/allisson/attachments/internal/attachment/domain"
	"github.com/allisson/attachments/internal/metrics"
)

const metricsDomain = "attachments"

// attachmentUseCaseWithMetrics decorates AttachmentUseCase with metrics instrumentation.
type attachmentUseCaseWithMetrics struct {
	next    AttachmentUseCase
	metrics metrics.BusinessMetrics
}

// NewAttachmentUseCaseWithMetrics wraps an AttachmentUseCase with metrics recording.
func NewAttachmentUseCaseWithMetrics(useCase AttachmentUseCase, m metrics.BusinessMetrics) AttachmentUseCase {
	return &attachmentUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (a *attachmentUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, ok bool) {
	status := metrics.StatusSuccess
	if !ok {
		status = metrics.StatusError
	}
	a.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	a.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// Encrypt records metrics per mode, plus the plaintext size on success.
func (a *attachmentUseCaseWithMetrics) Encrypt(
	ctx context.Context,
	input *attachmentDomain.EncryptInput,
) (*attachmentDomain.EncryptResult, error) {
	start := time.Now()
	result, err := a.next.Encrypt(ctx, input)
	operation := "attachment_encrypt"
	if input != nil && input.Mode != "" {
		operation += "_" + string(input.Mode)
	}
	a.record(ctx, operation, start, err == nil)
	if err == nil && input != nil {
		a.metrics.RecordPayloadSize(ctx, metricsDomain, operation, int64(len(input.File)))
	}
	return result, err
}

// Decrypt records metrics for attachment decryption.
func (a *attachmentUseCaseWithMetrics) Decrypt(
	ctx context.Context,
	input *attachmentDomain.DecryptInput,
) (*attachmentDomain.DecryptResult, error) {
	start := time.Now()
	result, err := a.next.Decrypt(ctx, input)
	a.record(ctx, "attachment_decrypt", start, err == nil)
	if err == nil && result != nil {
		a.metrics.RecordPayloadSize(ctx, metricsDomain, "attachment_decrypt", int64(len(result.DecryptedBuffer)))
	}
	return result, err
}

// DecryptServer records metrics for server copy decryption.
func (a *attachmentUseCaseWithMetrics) DecryptServer(
	ctx context.Context,
	input *attachmentDomain.ServerDecryptInput,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := a.next.DecryptServer(ctx, input)
	a.record(ctx, "attachment_server_decrypt", start, err == nil)
	if err == nil {
		a.metrics.RecordPayloadSize(ctx, metricsDomain, "attachment_server_decrypt", int64(len(plaintext)))
	}
	return plaintext, err
}

// VerifyHMAC records metrics for HMAC verification. A mismatch is recorded as an error.
func (a *attachmentUseCaseWithMetrics) VerifyHMAC(
	ctx context.Context,
	encryptedBuffer []byte,
	encryptionKey, expectedHMAC string,
) bool {
	start := time.Now()
	valid := a.next.VerifyHMAC(ctx, encryptedBuffer, encryptionKey, expectedHMAC)
	a.record(ctx, "attachment_verify_hmac", start, valid)
	return valid
}

// EncryptMetadata records metrics for metadata envelope encryption.
func (a *attachmentUseCaseWithMetrics) EncryptMetadata(
	ctx context.Context,
	record any,
	encryptionKey string,
) (string, error) {
	start := time.Now()
	envelope, err := a.next.EncryptMetadata(ctx, record, encryptionKey)
	a.record(ctx, "metadata_encrypt", start, err == nil)
	return envelope, err
}

// DecryptMetadata records metrics for metadata envelope decryption.
func (a *attachmentUseCaseWithMetrics) DecryptMetadata(
	ctx context.Context,
	envelope, encryptionKey string,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := a.next.DecryptMetadata(ctx, envelope, encryptionKey)
	a.record(ctx, "metadata_decrypt", start, err == nil)
	return plaintext, err
}
