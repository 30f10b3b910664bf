package handler

import (
	"encoding/json"
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"chatkit/internal/adapter/api/middleware"
	"chatkit/internal/domain/entity"
	"chatkit/internal/domain/repository"
	ws "chatkit/internal/infrastructure/websocket"
	"chatkit/pkg/errors"
	"chatkit/pkg/logger"
	"chatkit/pkg/response"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	chatUseCase    chatStreamUseCase
	authMiddleware *middleware.AuthMiddleware
}

// chatStreamUseCase narrows ChatUseCase to what the socket needs; keeps the
// handler testable without Firestore.
type chatStreamUseCase interface {
	SubscribeToRooms(userID string, onUpdate repository.RoomsHandler)
	SubscribeToMessages(subscriberID, roomID string, onUpdate repository.MessagesHandler)
	UnsubscribeMessages(subscriberID, roomID string)
	UnsubscribeAllFor(userID string)
	MarkMessagesReadAsync(roomID, viewerID string)
	SendTextMessageAsync(roomID, senderID, text string)
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Restrict this in production deployments
	},
}

// Inbound client commands.
type wsCommand struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id,omitempty"`
	Content string `json:"content,omitempty"`
}

// Outbound frames.
type wsFrame struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"room_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Message string      `json:"message,omitempty"`
}

func NewWebSocketHandler(wsManager *ws.Manager, chatUseCase chatStreamUseCase, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		chatUseCase:    chatUseCase,
		authMiddleware: authMiddleware,
	}
}

// HandleWebSocket upgrades the connection and opens the user's live room-list
// subscription. Message subscriptions are opened per room on watch_room
// commands. Closing the socket tears down everything the user subscribed to.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication token required", nil))
	}

	userID, err := h.authMiddleware.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
	client.OnFrame = h.handleFrame
	client.OnClose = func(c *ws.Client) {
		h.chatUseCase.UnsubscribeAllFor(c.UserID)
	}

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	// Every room-list snapshot is pushed to the client for the lifetime of
	// the connection.
	h.chatUseCase.SubscribeToRooms(userID, func(rooms []*entity.ChatRoom, err error) {
		if err != nil {
			h.sendFrame(userID, wsFrame{Type: "error", Message: "Room subscription failed"})
			logger.Error("Room subscription for %s failed: %v", userID, err)
			return
		}
		h.sendFrame(userID, wsFrame{Type: "rooms", Payload: rooms})
	})

	return nil
}

func (h *WebSocketHandler) handleFrame(client *ws.Client, frame []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(frame, &cmd); err != nil {
		h.sendFrame(client.UserID, wsFrame{Type: "error", Message: "Malformed command"})
		return
	}

	switch cmd.Type {
	case "watch_room":
		if cmd.RoomID == "" {
			h.sendFrame(client.UserID, wsFrame{Type: "error", Message: "room_id is required"})
			return
		}
		roomID := cmd.RoomID
		userID := client.UserID
		h.chatUseCase.SubscribeToMessages(userID, roomID, func(messages []*entity.Message, err error) {
			if err != nil {
				h.sendFrame(userID, wsFrame{Type: "error", RoomID: roomID, Message: "Message subscription failed"})
				logger.Error("Message subscription for room %s failed: %v", roomID, err)
				return
			}
			h.sendFrame(userID, wsFrame{Type: "messages", RoomID: roomID, Payload: messages})
		})

	case "unwatch_room":
		if cmd.RoomID != "" {
			h.chatUseCase.UnsubscribeMessages(client.UserID, cmd.RoomID)
		}

	case "mark_read":
		if cmd.RoomID != "" {
			h.chatUseCase.MarkMessagesReadAsync(cmd.RoomID, client.UserID)
		}

	case "send_message":
		if cmd.RoomID != "" {
			h.chatUseCase.SendTextMessageAsync(cmd.RoomID, client.UserID, cmd.Content)
		}

	default:
		h.sendFrame(client.UserID, wsFrame{Type: "error", Message: "Unknown command: " + cmd.Type})
	}
}

func (h *WebSocketHandler) sendFrame(userID string, frame wsFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Error("Failed to marshal frame for %s: %v", userID, err)
		return
	}
	h.wsManager.SendToUser(userID, data)
}
