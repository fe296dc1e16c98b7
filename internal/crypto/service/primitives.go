package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	cryptoDomain "github.com/allisson/attachments/internal/crypto/domain"
)

// PrimitivesService implements Primitives with AES-256-GCM.
type PrimitivesService struct {
	aeadManager AEADManager
}

// NewPrimitives creates a new PrimitivesService.
func NewPrimitives(aeadManager AEADManager) *PrimitivesService {
	return &PrimitivesService{aeadManager: aeadManager}
}

// GenerateKey returns a random 32-byte key.
func (p *PrimitivesService) GenerateKey() ([]byte, error) {
	return randomBytes(cryptoDomain.KeySize)
}

// GenerateNonce returns a random 12-byte nonce.
func (p *PrimitivesService) GenerateNonce() ([]byte, error) {
	return randomBytes(cryptoDomain.NonceSize)
}

// Encrypt seals plaintext with AES-256-GCM and returns the ciphertext and the detached tag.
func (p *PrimitivesService) Encrypt(key, nonce, plaintext []byte) ([]byte, []byte, error) {
	aead, err := p.aeadManager.CreateCipher(key, cryptoDomain.AESGCM)
	if err != nil {
		return nil, nil, err
	}
	return aead.Seal(nonce, plaintext, nil)
}

// Decrypt opens an AES-256-GCM ciphertext with its detached tag.
func (p *PrimitivesService) Decrypt(key, nonce, ciphertext, tag []byte) ([]byte, error) {
	aead, err := p.aeadManager.CreateCipher(key, cryptoDomain.AESGCM)
	if err != nil {
		return nil, err
	}
	return aead.Open(nonce, ciphertext, tag, nil)
}

// SHA256 returns the lowercase hex digest of data.
func (p *PrimitivesService) SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DeriveHMACKey returns SHA-256(key), the MAC key paired with an attachment key.
func (p *PrimitivesService) DeriveHMACKey(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

// HMACSHA256 returns the raw HMAC-SHA256 of data under key.
func (p *PrimitivesService) HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// ConstantTimeEquals never short-circuits on a length mismatch: both inputs are copied
// into zero-filled buffers of the longer length and compared in full, then the result
// is forced to false.
func (p *PrimitivesService) ConstantTimeEquals(a, b []byte) bool {
	n := max(len(a), len(b))
	left := make([]byte, n)
	right := make([]byte, n)
	copy(left, a)
	copy(right, b)

	equal := subtle.ConstantTimeCompare(left, right)
	sameLength := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	return equal&sameLength == 1
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}
