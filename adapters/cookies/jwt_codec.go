package cookies

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/walletgate/walletgate/core"
	"github.com/walletgate/walletgate/ports"
)

const AudienceNonce = "cookie:nonce"
const AudienceSession = "cookie:session"

// JWTCodec implements the CookieCodec interface using HMAC-signed JWTs,
// so both the nonce and the session cookie are tamper-resistant while
// all durable state stays client-held.
type JWTCodec struct {
	secret []byte
}

// NewJWTCodec creates a new JWT cookie codec
func NewJWTCodec(secret []byte) ports.CookieCodec {
	return &JWTCodec{secret: secret}
}

// NonceToValue converts a Nonce to a signed cookie value
func (c *JWTCodec) NonceToValue(nonce *core.Nonce) (string, error) {
	claims := NonceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(nonce.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(nonce.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceNonce},
		},
		Nonce: nonce.Value,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedValue, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce cookie: %w", err)
	}

	return signedValue, nil
}

// ValueToNonce converts a signed cookie value back to a Nonce
func (c *JWTCodec) ValueToNonce(value string) (*core.Nonce, error) {
	token, err := jwt.ParseWithClaims(value, &NonceClaims{}, c.keyFunc, jwt.WithAudience(AudienceNonce))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nonce cookie: %w", err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*NonceClaims)
	if !ok || claims.Nonce == "" {
		return nil, core.ErrInvalidToken
	}

	return &core.Nonce{
		Value:     claims.Nonce,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SessionToValue converts a Session to a signed cookie value
func (c *JWTCodec) SessionToValue(session *core.Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  session.Address,
			ID:       session.ID,
			IssuedAt: jwt.NewNumericDate(session.IssuedAt),
			Audience: jwt.ClaimStrings{AudienceSession},
		},
	}

	// Browser-scoped sessions carry no exp claim; the cookie itself has
	// no Max-Age either, so the browser drops it on exit.
	if session.Remembered() {
		claims.ExpiresAt = jwt.NewNumericDate(session.ExpiresAt)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedValue, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}

	return signedValue, nil
}

// ValueToSession converts a signed cookie value back to a Session
func (c *JWTCodec) ValueToSession(value string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(value, &SessionClaims{}, c.keyFunc, jwt.WithAudience(AudienceSession))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session cookie: %w", err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.Subject == "" {
		return nil, core.ErrInvalidToken
	}

	session := &core.Session{
		ID:      claims.ID,
		Address: claims.Subject,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	return session, nil
}

func (c *JWTCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	// Validate the signing method
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.secret, nil
}
