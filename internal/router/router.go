package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pulse/internal/common"
	"pulse/internal/config"
	"pulse/internal/domain/notification"
	"pulse/internal/infra/auth"
	"pulse/internal/middleware"
)

// New creates and configures the Gin router with all middleware and routes.
func New(
	cfg *config.Config,
	jwtProvider *auth.Provider,
	notificationHandler *notification.Handler,
) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Global middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
	)
	r.Use(rateLimiter.Middleware())

	r.Use(gin.Logger())

	// Public routes
	r.GET("/health", healthCheck)

	// Protected API routes (bearer token required)
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(jwtProvider))
	{
		notificationHandler.RegisterRoutes(api)
	}

	return r
}

// healthCheck handles GET /health
func healthCheck(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "pulse",
	})
}
