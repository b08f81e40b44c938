package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/walletgate/walletgate/service"
)

// RequireAuth creates middleware that guards routes needing an
// authenticated user. Requests without a valid session are redirected to
// the login surface; sessions bound to an address that no longer resolves
// are torn down and sent home.
func RequireAuth(auth *service.AuthService, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, _ := c.Cookie(SessionCookieName)

		check, err := auth.CheckRequest(c.Request.Context(), value, c.Request.URL.Path)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check session"})
			return
		}

		if check.ClearCookie {
			clearSessionCookie(c, secure)
		}

		if check.RedirectTo != "" {
			c.Redirect(http.StatusFound, check.RedirectTo)
			c.Abort()
			return
		}

		// Make the resolved user available to handlers
		c.Set("user", check.User)
		c.Set("userAddress", check.User.Address)

		c.Next()
	}
}
