package router

import (
	"github.com/labstack/echo/v4"

	"chatkit/internal/adapter/api/handler"
	"chatkit/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	chatHandler := handler.GetChatHandler()

	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(authMiddleware.Authenticate)

	// Room management
	chatGroup.POST("", chatHandler.CreateRoom)            // POST /v1/chats - Find or create room with recipient
	chatGroup.GET("", chatHandler.GetUserRooms)           // GET /v1/chats - Rooms with unread counts
	chatGroup.GET("/:id", chatHandler.GetRoomByID)        // GET /v1/chats/:id - One room
	chatGroup.PUT("/:id/read", chatHandler.MarkRoomAsRead) // PUT /v1/chats/:id/read - Mark room read

	// Message management
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)    // POST /v1/chats/:id/messages - Send text message
	chatGroup.POST("/:id/images", chatHandler.SendImage)        // POST /v1/chats/:id/images - Send image (multipart)
	chatGroup.GET("/:id/messages", chatHandler.GetRoomMessages) // GET /v1/chats/:id/messages - Paginated messages
}
