package domain

// Mode selects which encrypted representations an attachment gets.
type Mode string

const (
	// ModeE2EE produces one blob whose key only travels out-of-band.
	ModeE2EE Mode = "e2ee"

	// ModeServer produces the primary blob plus a server copy under the conversation key.
	ModeServer Mode = "server"

	// ModeHybrid is ModeServer with the primary key delivered end-to-end.
	ModeHybrid Mode = "hybrid"
)

// ParseMode converts s into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeE2EE, ModeServer, ModeHybrid:
		return Mode(s), nil
	default:
		return "", ErrInvalidMode
	}
}

// RequiresServerKey reports whether the mode produces a server-decryptable copy.
func (m Mode) RequiresServerKey() bool {
	return m == ModeServer || m == ModeHybrid
}
