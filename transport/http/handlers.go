package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walletgate/walletgate/core"
	"github.com/walletgate/walletgate/service"
)

// NonceCookieName is the cookie carrying the signed challenge nonce
const NonceCookieName = "nonce"

// SessionCookieName is the cookie carrying the signed session
const SessionCookieName = "__session"

// JoinPath is where verified addresses without a user record are sent
const JoinPath = "/join"

// AuthHandlers contains HTTP handlers for the sign-in flow
type AuthHandlers struct {
	auth   *service.AuthService
	secure bool
}

// NewAuthHandlers creates new auth handlers. secure controls the Secure
// attribute on every cookie and should be true in production.
func NewAuthHandlers(auth *service.AuthService, secure bool) *AuthHandlers {
	return &AuthHandlers{
		auth:   auth,
		secure: secure,
	}
}

// challengeErrors is the field-addressable error payload of the challenge
// submission endpoints. Exactly one field is non-null in a response.
type challengeErrors struct {
	Nonce     *string `json:"nonce"`
	Account   *string `json:"account"`
	Message   *string `json:"message"`
	Signature *string `json:"signature"`
	Expired   *string `json:"expired"`
	Valid     *string `json:"valid"`
}

// Index reports whether the request carries a valid session
func (h *AuthHandlers) Index(c *gin.Context) {
	value, _ := c.Cookie(SessionCookieName)
	_, loggedIn := h.auth.SessionAddress(value)

	c.JSON(http.StatusOK, gin.H{"logged_in": loggedIn})
}

// LoginNonce handles the login page loader: it returns the challenge
// nonce, minting one and setting its cookie when the request carries none
func (h *AuthHandlers) LoginNonce(c *gin.Context) {
	existing, _ := c.Cookie(NonceCookieName)

	nonce, setValue, err := h.auth.IssueNonce(existing)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}

	if setValue != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(NonceCookieName, setValue, int(h.auth.NonceTTL().Seconds()), "/", "", h.secure, true)
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Login handles the signed challenge submission for existing users
func (h *AuthHandlers) Login(c *gin.Context) {
	h.handleChallenge(c, false)
}

// Join handles the signed challenge submission for first-time users,
// creating the user record before the session
func (h *AuthHandlers) Join(c *gin.Context) {
	h.handleChallenge(c, true)
}

func (h *AuthHandlers) handleChallenge(c *gin.Context, createUser bool) {
	redirectTo := service.SafeRedirect(c.Query("redirectTo"), "/")

	// Each of the three form fields fails independently so the client can
	// report which one is missing
	message, ok := c.GetPostForm("message")
	if !ok || message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": challengeErrors{Message: strPtr("Message is required")}})
		return
	}

	account, ok := c.GetPostForm("account")
	if !ok || account == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": challengeErrors{Account: strPtr("A connected account is required")}})
		return
	}

	signature, ok := c.GetPostForm("signature")
	if !ok || signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"errors": challengeErrors{Signature: strPtr("Signature is required")}})
		return
	}

	nonceValue, _ := c.Cookie(NonceCookieName)

	address, err := h.auth.VerifyLogin(message, signature, account, nonceValue)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMalformedMessage):
			c.JSON(http.StatusBadRequest, gin.H{"errors": challengeErrors{Message: strPtr("Message is malformed")}})
		case errors.Is(err, core.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, gin.H{"errors": challengeErrors{Valid: strPtr("Your signature is invalid")}})
		case errors.Is(err, core.ErrExpiredChallenge):
			c.JSON(http.StatusBadRequest, gin.H{"errors": challengeErrors{Expired: strPtr("Your session has expired")}})
		case errors.Is(err, core.ErrNonceMismatch):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": challengeErrors{Nonce: strPtr("Invalid nonce")}})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		}
		return
	}

	ctx := c.Request.Context()

	user, err := h.auth.LookupUser(ctx, address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve user"})
		return
	}

	if user == nil {
		if !createUser {
			// Verified but unknown: registration first, no session yet
			c.Redirect(http.StatusFound, JoinPath)
			return
		}
		if _, err := h.auth.CreateUser(ctx, address); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
			return
		}
	}

	value, session, err := h.auth.CreateSession(ctx, address, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	maxAge := 0
	if session.Remembered() {
		maxAge = int(h.auth.RememberTTL().Seconds())
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, value, maxAge, "/", "", h.secure, true)
	c.Redirect(http.StatusFound, redirectTo)
}

// Logout destroys the session and redirects home
func (h *AuthHandlers) Logout(c *gin.Context) {
	if value, err := c.Cookie(SessionCookieName); err == nil {
		h.auth.Logout(c.Request.Context(), value)
	}

	clearSessionCookie(c, h.secure)
	c.Redirect(http.StatusFound, "/")
}

// LogoutRedirect handles a bare GET to the logout path: home, no side
// effects
func (h *AuthHandlers) LogoutRedirect(c *gin.Context) {
	c.Redirect(http.StatusFound, "/")
}

// User returns the authenticated user record
func (h *AuthHandlers) User(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func clearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", secure, true)
}

func strPtr(s string) *string {
	return &s
}
