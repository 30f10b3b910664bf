package router

import (
	"github.com/labstack/echo/v4"

	"chatkit/internal/adapter/api/handler"
)

// SetupHealthRouter initializes health check routes
func SetupHealthRouter(e *echo.Echo) {
	healthHandler := handler.GetHealthHandler()

	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/health/firebase", healthHandler.CheckFirebaseHealth)
}
