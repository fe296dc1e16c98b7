package domain

// WrappedKey is a server key encrypted under a master key.
//
// Only this form is ever persisted. MasterKeyID records which master key produced it so
// keys wrapped before a master key rotation remain readable.
type WrappedKey struct {
	MasterKeyID  string
	Algorithm    Algorithm
	EncryptedKey []byte
	Nonce        []byte
	Tag          []byte
}
