package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/walletgate/walletgate/core"
	"github.com/walletgate/walletgate/ports"
)

// AuthService handles the sign-in flow: nonce issuance, challenge
// verification and session lifecycle
type AuthService struct {
	cookies ports.CookieCodec
	users   ports.UserStore
	events  ports.EventPublisher

	nonceTTL    time.Duration
	rememberTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	cookies ports.CookieCodec,
	users ports.UserStore,
	events ports.EventPublisher,
) *AuthService {
	return &AuthService{
		cookies:     cookies,
		users:       users,
		events:      events,
		nonceTTL:    7 * 24 * time.Hour,
		rememberTTL: 3 * 24 * time.Hour,
	}
}

// NonceTTL is the lifetime of the nonce cookie
func (s *AuthService) NonceTTL() time.Duration {
	return s.nonceTTL
}

// RememberTTL is the lifetime of a remembered session
func (s *AuthService) RememberTTL() time.Duration {
	return s.rememberTTL
}

// IssueNonce returns the nonce carried by a valid existing cookie value
// unchanged, or mints a fresh one. setValue is non-empty only when a new
// cookie must be set.
func (s *AuthService) IssueNonce(existingValue string) (nonce string, setValue string, err error) {
	if existingValue != "" {
		if existing, err := s.cookies.ValueToNonce(existingValue); err == nil {
			return existing.Value, "", nil
		}
		// A tampered or expired cookie counts as absent
	}

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	minted := &core.Nonce{
		Value:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.nonceTTL),
	}

	setValue, err = s.cookies.NonceToValue(minted)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode nonce cookie: %w", err)
	}

	return minted.Value, setValue, nil
}

// VerifyLogin verifies a submitted challenge against the nonce cookie and
// returns the verified address. Failures carry one of the core sentinel
// errors; nothing is mutated on failure.
func (s *AuthService) VerifyLogin(message, signature, account, nonceValue string) (string, error) {
	var storedNonce string
	if nonceValue != "" {
		if nonce, err := s.cookies.ValueToNonce(nonceValue); err == nil {
			storedNonce = nonce.Value
		}
	}

	verified, err := core.VerifyChallenge(message, signature, account, storedNonce, time.Now())
	if err != nil {
		return "", err
	}

	return verified.Hex(), nil
}

// CreateSession mints a session bound to a verified address and returns
// the signed cookie value. remember gives the session a fixed expiry;
// otherwise it is scoped to the browser lifetime.
func (s *AuthService) CreateSession(ctx context.Context, address string, remember bool) (string, *core.Session, error) {
	now := time.Now()
	session := &core.Session{
		ID:       uuid.New().String(),
		Address:  address,
		IssuedAt: now,
	}
	if remember {
		session.ExpiresAt = now.Add(s.rememberTTL)
	}

	value, err := s.cookies.SessionToValue(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode session cookie: %w", err)
	}

	if err := s.events.PublishLogin(ctx, session.Address, session.ID); err != nil {
		// The session is already minted; event delivery is best effort
		log.Printf("warning: failed to publish login event: %v", err)
	}

	return value, session, nil
}

// SessionAddress extracts the bound address from a session cookie value.
// An absent or invalid session is not an error.
func (s *AuthService) SessionAddress(value string) (string, bool) {
	if value == "" {
		return "", false
	}

	session, err := s.cookies.ValueToSession(value)
	if err != nil {
		return "", false
	}

	return session.Address, true
}

// LookupUser resolves the user record for a verified address. A nil user
// with nil error means no record exists.
func (s *AuthService) LookupUser(ctx context.Context, address string) (*core.User, error) {
	return s.users.LookupByAddress(ctx, address)
}

// CreateUser creates the user record for a verified address
func (s *AuthService) CreateUser(ctx context.Context, address string) (*core.User, error) {
	return s.users.CreateUser(ctx, address)
}

// AuthCheck is the result of a required-authentication check. Exactly one
// of User and RedirectTo is set; callers must handle both arms.
type AuthCheck struct {
	User        *core.User
	RedirectTo  string
	ClearCookie bool
}

// CheckRequest enforces authentication for a request. No valid session
// redirects to the login surface with the current path preserved. A
// session bound to an address that no longer resolves is torn down and
// redirected home (self-healing), never surfaced as an error.
func (s *AuthService) CheckRequest(ctx context.Context, sessionValue, currentPath string) (AuthCheck, error) {
	address, ok := s.SessionAddress(sessionValue)
	if !ok {
		return AuthCheck{RedirectTo: LoginRedirect(currentPath)}, nil
	}

	user, err := s.users.LookupByAddress(ctx, address)
	if err != nil {
		return AuthCheck{}, fmt.Errorf("failed to resolve session user: %w", err)
	}
	if user == nil {
		s.Logout(ctx, sessionValue)
		return AuthCheck{RedirectTo: "/", ClearCookie: true}, nil
	}

	return AuthCheck{User: user}, nil
}

// Logout publishes the logout event for a session cookie value. Clearing
// the client-held cookie is the transport's side of the destruction.
func (s *AuthService) Logout(ctx context.Context, sessionValue string) {
	session, err := s.cookies.ValueToSession(sessionValue)
	if err != nil {
		return
	}

	if err := s.events.PublishLogout(ctx, session.Address, session.ID); err != nil {
		log.Printf("warning: failed to publish logout event: %v", err)
	}
}

// LoginRedirect builds the login location preserving the originally
// requested path
func LoginRedirect(currentPath string) string {
	params := url.Values{"redirectTo": {currentPath}}
	return "/login?" + params.Encode()
}

// SafeRedirect validates a caller-supplied redirect target. Anything that
// is not a same-origin relative path is replaced with the fallback.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return fallback
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
