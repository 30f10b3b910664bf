package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatkit/internal/domain/entity"
	"chatkit/internal/domain/repository"
	"chatkit/internal/infrastructure/listener"
	"chatkit/pkg/errors"
	"chatkit/pkg/logger"
)

type firestoreChatRoomRepository struct {
	client   *firestore.Client
	registry *listener.Registry
}

func NewFirestoreChatRoomRepository(client *firestore.Client, registry *listener.Registry) repository.ChatRoomRepository {
	return &firestoreChatRoomRepository{
		client:   client,
		registry: registry,
	}
}

func (r *firestoreChatRoomRepository) Create(ctx context.Context, room *entity.ChatRoom) (bool, error) {
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now

	_, err := r.client.Collection("chats").Doc(room.ID).Create(ctx, room)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, errors.StoreWrite("Failed to create chat room", err)
	}

	return true, nil
}

func (r *firestoreChatRoomRepository) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	doc, err := r.client.Collection("chats").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat room", nil)
		}
		return nil, errors.Internal("Failed to get chat room", err)
	}

	var room entity.ChatRoom
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.Internal("Failed to parse chat room data", err)
	}
	room.ID = doc.Ref.ID

	return &room, nil
}

func (r *firestoreChatRoomRepository) ListByUser(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	query := r.client.Collection("chats").Where("participants", "array-contains", userID)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching rooms for user %s: %v", userID, err)
		return nil, errors.Internal("Failed to fetch chat rooms", err)
	}

	var rooms []*entity.ChatRoom
	for _, doc := range docs {
		var room entity.ChatRoom
		if err := doc.DataTo(&room); err != nil {
			logger.Warn("Skipping malformed room document %s: %v", doc.Ref.ID, err)
			continue
		}
		room.ID = doc.Ref.ID
		rooms = append(rooms, &room)
	}

	return rooms, nil
}

// UpdateLastMessage merges the summary fields only; participants are never
// written here.
func (r *firestoreChatRoomRepository) UpdateLastMessage(ctx context.Context, roomID, text string, timestamp time.Time, senderID string) error {
	_, err := r.client.Collection("chats").Doc(roomID).Set(ctx, map[string]interface{}{
		"lastMessage":         text,
		"lastTimestamp":       timestamp,
		"lastMessageSenderId": senderID,
		"lastMessageIsRead":   false,
		"updatedAt":           time.Now(),
	}, firestore.MergeAll)
	if err != nil {
		return errors.StoreWrite("Failed to update chat room summary", err)
	}

	return nil
}

func (r *firestoreChatRoomRepository) SetLastMessageRead(ctx context.Context, roomID string) error {
	_, err := r.client.Collection("chats").Doc(roomID).Update(ctx, []firestore.Update{
		{Path: "lastMessageIsRead", Value: true},
	})
	if err != nil {
		return errors.StoreWrite("Failed to update chat room read state", err)
	}

	return nil
}

func (r *firestoreChatRoomRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection("chats").Doc(id).Delete(ctx)
	if err != nil {
		return errors.StoreWrite("Failed to delete chat room", err)
	}

	return nil
}

func (r *firestoreChatRoomRepository) SubscribeByUser(userID string, h repository.RoomsHandler) {
	query := r.client.Collection("chats").Where("participants", "array-contains", userID)

	r.registry.Subscribe(listener.RoomsKey(userID), func(ctx context.Context) {
		it := query.Snapshots(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				// Forward and stop; retry policy belongs to the caller.
				h(nil, errors.Internal("Room subscription failed", err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				h(nil, errors.Internal("Failed to read room snapshot", err))
				return
			}

			rooms := make([]*entity.ChatRoom, 0, len(docs))
			for _, doc := range docs {
				var room entity.ChatRoom
				if err := doc.DataTo(&room); err != nil {
					logger.Warn("Skipping malformed room document %s: %v", doc.Ref.ID, err)
					continue
				}
				room.ID = doc.Ref.ID
				rooms = append(rooms, &room)
			}

			h(rooms, nil)
		}
	})
}

func (r *firestoreChatRoomRepository) UnsubscribeUser(userID string) {
	r.registry.Unsubscribe(listener.RoomsKey(userID))
}
