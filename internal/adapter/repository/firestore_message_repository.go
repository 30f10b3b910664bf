package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatkit/internal/domain/entity"
	"chatkit/internal/domain/repository"
	"chatkit/internal/infrastructure/listener"
	"chatkit/pkg/errors"
	"chatkit/pkg/logger"
)

type firestoreMessageRepository struct {
	client   *firestore.Client
	registry *listener.Registry
}

func NewFirestoreMessageRepository(client *firestore.Client, registry *listener.Registry) repository.MessageRepository {
	return &firestoreMessageRepository{
		client:   client,
		registry: registry,
	}
}

func (r *firestoreMessageRepository) messages(roomID string) *firestore.CollectionRef {
	return r.client.Collection("chats").Doc(roomID).Collection("messages")
}

func (r *firestoreMessageRepository) Append(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	_, err := r.messages(message.ChatID).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.StoreWrite("Failed to append message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, roomID, messageID string) (*entity.Message, error) {
	doc, err := r.messages(roomID).Doc(messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	message.ID = doc.Ref.ID

	return &message, nil
}

func (r *firestoreMessageRepository) ListByRoom(ctx context.Context, roomID string) ([]*entity.Message, error) {
	iter := r.messages(roomID).OrderBy("timestamp", firestore.Asc).Documents(ctx)

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for room %s: %v", roomID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping malformed message document %s: %v", doc.Ref.ID, err)
			continue
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, roomID, viewerID string) (int, error) {
	// isRead is a plain equality filter; the sender check is client-side so
	// no composite index is needed.
	docs, err := r.messages(roomID).Where("isRead", "==", false).Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to query unread messages", err)
	}

	batch := r.client.Batch()
	flipped := 0
	for _, doc := range docs {
		if senderID, err := doc.DataAt("senderId"); err == nil && senderID != viewerID {
			batch.Update(doc.Ref, []firestore.Update{
				{Path: "isRead", Value: true},
			})
			flipped++
		}
	}

	if flipped == 0 {
		return 0, nil
	}

	if _, err := batch.Commit(ctx); err != nil {
		return 0, errors.StoreWrite("Failed to mark messages as read", err)
	}

	return flipped, nil
}

func (r *firestoreMessageRepository) CountUnread(ctx context.Context, roomID, viewerID string) (int, error) {
	docs, err := r.messages(roomID).Where("isRead", "==", false).Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to count unread messages", err)
	}

	count := 0
	for _, doc := range docs {
		if senderID, err := doc.DataAt("senderId"); err == nil && senderID != viewerID {
			count++
		}
	}

	return count, nil
}

func (r *firestoreMessageRepository) UpdateUploadStatus(ctx context.Context, roomID, messageID string, uploadStatus entity.UploadStatus, imageURL string) error {
	current, err := r.GetByID(ctx, roomID, messageID)
	if err != nil {
		return err
	}

	if !current.UploadStatus.CanTransition(uploadStatus) {
		logger.Warn("Ignoring invalid upload status transition %s -> %s for message %s",
			current.UploadStatus, uploadStatus, messageID)
		return nil
	}

	updates := []firestore.Update{
		{Path: "uploadStatus", Value: uploadStatus},
	}
	if imageURL != "" {
		updates = append(updates, firestore.Update{Path: "imageUrl", Value: imageURL})
	}

	if _, err := r.messages(roomID).Doc(messageID).Update(ctx, updates); err != nil {
		return errors.StoreWrite("Failed to update message upload status", err)
	}

	return nil
}

func (r *firestoreMessageRepository) Subscribe(subscriberID, roomID string, h repository.MessagesHandler) {
	query := r.messages(roomID).OrderBy("timestamp", firestore.Asc)

	r.registry.Subscribe(listener.MessagesKey(subscriberID, roomID), func(ctx context.Context) {
		it := query.Snapshots(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				h(nil, errors.Internal("Message subscription failed", err))
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				h(nil, errors.Internal("Failed to read message snapshot", err))
				return
			}

			messages := make([]*entity.Message, 0, len(docs))
			for _, doc := range docs {
				var message entity.Message
				if err := doc.DataTo(&message); err != nil {
					logger.Warn("Skipping malformed message document %s: %v", doc.Ref.ID, err)
					continue
				}
				message.ID = doc.Ref.ID
				messages = append(messages, &message)
			}

			h(messages, nil)
		}
	})
}

func (r *firestoreMessageRepository) Unsubscribe(subscriberID, roomID string) {
	r.registry.Unsubscribe(listener.MessagesKey(subscriberID, roomID))
}
