package core

import "time"

// Nonce is a single-use challenge token round-tripped through a signed cookie
type Nonce struct {
	Value     string    // Random token the wallet must embed in the signed message
	IssuedAt  time.Time // When the nonce was minted
	ExpiresAt time.Time // When the carrying cookie expires
}

// Session represents an authenticated user session
type Session struct {
	ID        string    // Unique session identifier
	Address   string    // Verified Ethereum address of the user
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // Zero when the session is scoped to the browser lifetime
}

// Remembered reports whether the session carries an explicit expiry
func (s *Session) Remembered() bool {
	return !s.ExpiresAt.IsZero()
}

// User is the profile record bound to an address
type User struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}
