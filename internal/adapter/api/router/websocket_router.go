package router

import (
	"github.com/labstack/echo/v4"

	"chatkit/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up WebSocket routes
func SetupWebSocketRouter(e *echo.Echo) {
	// Auth happens inside the handler; the token travels as a query param
	e.GET("/ws", handler.GetWebSocketHandler().HandleWebSocket)
}
