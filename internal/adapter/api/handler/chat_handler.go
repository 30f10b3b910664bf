package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"chatkit/internal/usecase"
	"chatkit/pkg/errors"
	"chatkit/pkg/response"
	"chatkit/pkg/utils"
)

// Multipart uploads above this size are rejected before decoding.
const maxUploadBytes = 10 << 20

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createRoomRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// CreateRoom resolves the room for the authenticated user and the recipient,
// creating it when it does not exist yet.
func (h *ChatHandler) CreateRoom(c echo.Context) error {
	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	room, created, err := h.chatUseCase.FindOrCreateRoom(c.Request().Context(), userID, req.RecipientID)
	if err != nil {
		return response.Error(c, err)
	}

	if created {
		return response.Created(c, room)
	}
	return response.Success(c, room)
}

// GetUserRooms lists the authenticated user's rooms with unread counts, most
// recent activity first.
func (h *ChatHandler) GetUserRooms(c echo.Context) error {
	userID := c.Get("uid").(string)

	rooms, err := h.chatUseCase.ListRoomsForUser(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, rooms)
}

func (h *ChatHandler) GetRoomByID(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	room, err := h.chatUseCase.GetRoom(c.Request().Context(), roomID, userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// SendMessage appends a text message to the room.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendTextMessage(c.Request().Context(), roomID, userID, req.Content)
	if err != nil {
		return response.Error(c, err)
	}
	if message == nil {
		// Whitespace-only content is dropped without a write.
		return c.NoContent(http.StatusNoContent)
	}

	return response.Created(c, message)
}

// SendImage accepts a multipart image with an optional caption and starts the
// upload pipeline. The response carries the message in uploading state.
func (h *ChatHandler) SendImage(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return response.Error(c, errors.BadRequest("An image file is required", err))
	}
	if fileHeader.Size > maxUploadBytes {
		return response.Error(c, errors.BadRequest("Image exceeds the upload size limit", nil))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to open uploaded file", err))
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return response.Error(c, errors.Internal("Failed to read uploaded file", err))
	}
	if len(data) > maxUploadBytes {
		return response.Error(c, errors.BadRequest("Image exceeds the upload size limit", nil))
	}

	caption := c.FormValue("caption")

	message, err := h.chatUseCase.SendImageMessage(c.Request().Context(), roomID, userID, data, caption)
	if err != nil {
		return response.Error(c, err)
	}
	if message == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return response.Created(c, message)
}

// GetRoomMessages returns one page of the room's messages, oldest first.
func (h *ChatHandler) GetRoomMessages(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	params := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.GetMessages(c.Request().Context(), roomID, userID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

// MarkRoomAsRead flips the viewer's unread messages in the room to read.
func (h *ChatHandler) MarkRoomAsRead(c echo.Context) error {
	roomID := c.Param("id")
	userID := c.Get("uid").(string)

	if err := h.chatUseCase.MarkMessagesRead(c.Request().Context(), roomID, userID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}
