package http

import (
	"github.com/gin-gonic/gin"
	"github.com/walletgate/walletgate/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(auth *service.AuthService, secure bool) *gin.Engine {
	router := gin.Default()

	// Create handlers
	handlers := NewAuthHandlers(auth, secure)

	// Public surface
	router.GET("/", handlers.Index)
	router.GET("/login", handlers.LoginNonce)
	router.POST("/login", handlers.Login)
	router.POST("/join", handlers.Join)
	router.GET("/logout", handlers.LogoutRedirect)
	router.POST("/logout", handlers.Logout)

	// Authenticated surface
	authed := router.Group("/")
	authed.Use(RequireAuth(auth, secure))
	{
		authed.GET("/user", handlers.User)
	}

	return router
}
