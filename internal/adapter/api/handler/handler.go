package handler

import (
	"chatkit/internal/adapter/api/middleware"
	"chatkit/internal/infrastructure/firebase"
	"chatkit/internal/infrastructure/websocket"
	"chatkit/internal/usecase"
)

var (
	authHandler      *AuthHandler
	userHandler      *UserHandler
	chatHandler      *ChatHandler
	websocketHandler *WebSocketHandler
	healthHandler    *HealthHandler
)

func Setup(
	authUseCase *usecase.AuthUseCase,
	userUseCase *usecase.UserUseCase,
	chatUseCase *usecase.ChatUseCase,
	wsManager *websocket.Manager,
	authMiddleware *middleware.AuthMiddleware,
	firebaseAuth *firebase.FirebaseAuthClient,
) {
	authHandler = NewAuthHandler(authUseCase)
	userHandler = NewUserHandler(userUseCase)
	chatHandler = NewChatHandler(chatUseCase)
	websocketHandler = NewWebSocketHandler(wsManager, chatUseCase, authMiddleware)
	healthHandler = NewHealthHandler(firebaseAuth)
}

func GetAuthHandler() *AuthHandler {
	return authHandler
}

func GetUserHandler() *UserHandler {
	return userHandler
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return websocketHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}
