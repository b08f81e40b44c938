package cookies

import "github.com/golang-jwt/jwt/v5"

// NonceClaims combines standard claims with the challenge nonce
type NonceClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

// SessionClaims are the standard claims; the subject carries the address
type SessionClaims struct {
	jwt.RegisteredClaims
}
