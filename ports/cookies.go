package ports

import "github.com/walletgate/walletgate/core"

// CookieCodec converts between domain objects and signed cookie values
type CookieCodec interface {
	// Nonce cookie operations
	NonceToValue(nonce *core.Nonce) (string, error)
	ValueToNonce(value string) (*core.Nonce, error)

	// Session cookie operations
	SessionToValue(session *core.Session) (string, error)
	ValueToSession(value string) (*core.Session, error)
}
