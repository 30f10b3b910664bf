package router

import (
	"github.com/labstack/echo/v4"

	"chatkit/internal/adapter/api/handler"
	"chatkit/internal/adapter/api/middleware"
)

// SetupUserRouter initializes user routes
func SetupUserRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	userHandler := handler.GetUserHandler()

	users := e.Group("/v1/users")
	users.Use(authMiddleware.Authenticate)

	users.GET("/search", userHandler.SearchUsers) // GET /v1/users/search?q=... - Find chat partners
	users.PATCH("/me", userHandler.UpdateProfile) // PATCH /v1/users/me - Update own profile
}
