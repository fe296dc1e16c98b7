// Package domain defines the attachment encryption model: modes, the metadata produced per
// encryption, and the inputs and results of encrypt and decrypt operations.
//
// Binary values that travel with metadata (keys, nonces, tags, HMACs) are standard base64
// text so the structure is JSON-serializable. Ciphertext and plaintext buffers are raw bytes.
package domain
