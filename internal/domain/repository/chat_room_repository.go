package repository

import (
	"context"
	"time"

	"chatkit/internal/domain/entity"
)

// RoomsHandler receives every snapshot of a user's room list, or the
// subscription error. Errors are forwarded, never swallowed; the registry does
// not retry on behalf of the caller.
type RoomsHandler func(rooms []*entity.ChatRoom, err error)

type ChatRoomRepository interface {
	// Create writes the room only if no document exists under its id yet.
	// Returns false when the room already existed; the stored room is left
	// untouched in that case.
	Create(ctx context.Context, room *entity.ChatRoom) (created bool, err error)
	GetByID(ctx context.Context, id string) (*entity.ChatRoom, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.ChatRoom, error)

	// UpdateLastMessage merges the denormalized summary fields into the room
	// record with lastMessageIsRead=false. Participants are never touched.
	UpdateLastMessage(ctx context.Context, roomID, text string, timestamp time.Time, senderID string) error

	SetLastMessageRead(ctx context.Context, roomID string) error
	Delete(ctx context.Context, id string) error

	// SubscribeByUser opens a live snapshot channel for all rooms containing
	// userID, replacing any previous subscription for the same user.
	SubscribeByUser(userID string, h RoomsHandler)
	UnsubscribeUser(userID string)
}
