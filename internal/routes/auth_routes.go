package routes

import (
	"tern/internal/api/middleware"
	"tern/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// RegisterPublicAuthRoutes registers the unauthenticated auth endpoints.
func RegisterPublicAuthRoutes(e *echo.Echo, h *handlers.AuthHandler, rateLimit echo.MiddlewareFunc) {
	auth := e.Group("/api/v1/auth", rateLimit)

	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.RefreshToken)
}

// RegisterProtectedAuthRoutes registers the session, user and team
// management endpoints behind the auth middleware.
func RegisterProtectedAuthRoutes(api *echo.Group, h *handlers.AuthHandler, db *gorm.DB) {
	api.GET("/auth/me", h.GetMe)

	// Team membership management is admin-only
	users := api.Group("/users")
	users.Use(middleware.RequireAdmin())
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("/:id", h.DeleteUser)

	api.GET("/teams/me", h.GetMyTeam)
	api.PUT("/teams/me", h.UpdateMyTeam, middleware.RequireAdmin())
}
