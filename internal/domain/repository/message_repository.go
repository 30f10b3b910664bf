package repository

import (
	"context"

	"chatkit/internal/domain/entity"
)

// MessagesHandler receives every full message snapshot for one room ordered by
// timestamp ascending, or the subscription error.
type MessagesHandler func(messages []*entity.Message, err error)

type MessageRepository interface {
	Append(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, roomID, messageID string) (*entity.Message, error)

	// ListByRoom returns all messages of the room ordered by timestamp
	// ascending, ties broken by document order.
	ListByRoom(ctx context.Context, roomID string) ([]*entity.Message, error)

	// MarkRead flips isRead to true for every unread message in the room not
	// sent by viewerID, in one atomic batch. Returns the number of messages
	// flipped; zero with nil error when there was nothing to do.
	MarkRead(ctx context.Context, roomID, viewerID string) (int, error)

	// CountUnread counts unread messages in the room not sent by viewerID.
	// Recomputed on every room-list snapshot, never cached server-side.
	CountUnread(ctx context.Context, roomID, viewerID string) (int, error)

	// UpdateUploadStatus advances the upload lifecycle of an image message.
	// Invalid transitions (e.g. failed back to uploading) are ignored.
	UpdateUploadStatus(ctx context.Context, roomID, messageID string, status entity.UploadStatus, imageURL string) error

	// Subscribe opens a live snapshot channel for the room's messages on
	// behalf of subscriberID, replacing any previous subscription the same
	// subscriber holds for the same room. Different subscribers watching one
	// room hold independent channels.
	Subscribe(subscriberID, roomID string, h MessagesHandler)
	Unsubscribe(subscriberID, roomID string)
}
