package domain

// Algorithm represents the cryptographic algorithm used for encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated Data (AEAD),
// ensuring both confidentiality and authenticity of encrypted data. AEAD prevents both
// unauthorized reading and tampering with encrypted data.
//
// Attachment content is always sealed with AESGCM. ChaCha20 is only offered as the
// wrapping algorithm for server keys under the master key (KEY_WRAP_ALGORITHM).
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	//   - Hardware acceleration on modern CPUs
	AESGCM Algorithm = "aes-256-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	//
	// Same key, nonce and tag sizes as AESGCM, with constant-time software performance
	// on platforms without AES-NI.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// KeySize is the length in bytes of every symmetric key (master, server and attachment keys).
	KeySize = 32

	// NonceSize is the length in bytes of the AEAD nonce.
	NonceSize = 12

	// TagSize is the length in bytes of the AEAD authentication tag.
	TagSize = 16
)

// ParseAlgorithm converts a configuration string into a supported Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM:
		return AESGCM, nil
	case ChaCha20:
		return ChaCha20, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}
