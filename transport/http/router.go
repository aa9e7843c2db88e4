package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/bazaar/service"
)

// SetupRouter sets up the Gin router. metrics, when non-nil, is served on /metrics.
func SetupRouter(authService *service.AuthService, corsOrigins []string, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), CORS(corsOrigins))

	handlers := NewAuthHandlers(authService)
	requireSession := AuthMiddleware(authService)

	router.GET("/healthz", Health)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", handlers.Signup)
		auth.POST("/login", handlers.Login)
		auth.GET("/nonce/:address", handlers.Nonce)
		auth.POST("/verify-wallet", handlers.VerifyWallet)
		auth.POST("/signup-wallet", handlers.SignupWallet)
		auth.POST("/logout", requireSession, handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(requireSession)
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
