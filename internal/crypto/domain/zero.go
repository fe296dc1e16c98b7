package domain

// Zero overwrites key material (server keys, derived HMAC keys, unsealed master keys) in place.
// A nil slice is a no-op.
func Zero(b []byte) {
	clear(b)
}

// ZeroAll wipes every buffer, e.g. an attachment key together with the HMAC key derived from it.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
}
