package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chatkit/internal/domain/entity"
	"chatkit/internal/domain/repository"
	"chatkit/internal/domain/service"
	"chatkit/internal/infrastructure/imaging"
	"chatkit/internal/infrastructure/listener"
	"chatkit/internal/infrastructure/ratelimit"
	"chatkit/pkg/errors"
	"chatkit/pkg/logger"
)

const imagePlaceholderGlyph = "\U0001F4F7" // 📷

type ChatUseCase struct {
	roomRepo    repository.ChatRoomRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	uploader    service.ImageUploader
	cache       *imaging.Cache
	registry    *listener.Registry
	rateLimiter *ratelimit.RateLimiter

	imageMaxBytes int
	uploadTimeout time.Duration
	queryTimeout  time.Duration
}

type ChatUseCaseConfig struct {
	ImageMaxBytes int
	UploadTimeout time.Duration
	QueryTimeout  time.Duration
}

func NewChatUseCase(
	roomRepo repository.ChatRoomRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	uploader service.ImageUploader,
	cache *imaging.Cache,
	registry *listener.Registry,
	cfg ChatUseCaseConfig,
) *ChatUseCase {
	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	if cfg.ImageMaxBytes <= 0 {
		cfg.ImageMaxBytes = imaging.DefaultMaxSize
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}

	return &ChatUseCase{
		roomRepo:      roomRepo,
		messageRepo:   messageRepo,
		userRepo:      userRepo,
		uploader:      uploader,
		cache:         cache,
		registry:      registry,
		rateLimiter:   rateLimiter,
		imageMaxBytes: cfg.ImageMaxBytes,
		uploadTimeout: cfg.UploadTimeout,
		queryTimeout:  cfg.QueryTimeout,
	}
}

// FindOrCreateRoom resolves the single room for the participant pair. The room
// id is derived from the sorted pair, so concurrent calls from both sides
// converge on the same document and create-if-absent settles the race.
func (uc *ChatUseCase) FindOrCreateRoom(ctx context.Context, userID, recipientID string) (*entity.ChatRoom, bool, error) {
	if userID == recipientID {
		return nil, false, errors.BadRequest("You cannot start a chat with yourself", nil)
	}

	allowed, waitTime := uc.rateLimiter.Allow(userID, "create_room")
	if !allowed {
		logger.Warn("FindOrCreateRoom rate limited: user %s must wait %v", userID, waitTime)
		return nil, false, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another chat", waitTime)
	}

	if _, err := uc.userRepo.GetByID(ctx, recipientID); err != nil {
		return nil, false, errors.NotFound("Recipient", err)
	}

	room := &entity.ChatRoom{
		ID:           entity.RoomIDForPair(userID, recipientID),
		Participants: entity.SortedPair(userID, recipientID),
	}

	created, err := uc.roomRepo.Create(ctx, room)
	if err != nil {
		return nil, false, err
	}
	if created {
		return room, true, nil
	}

	existing, err := uc.roomRepo.GetByID(ctx, room.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetRoom returns one room after checking membership.
func (uc *ChatUseCase) GetRoom(ctx context.Context, roomID, userID string) (*entity.ChatRoom, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant of this chat", nil)
	}

	unread, err := uc.messageRepo.CountUnread(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	room.UnreadCount = unread

	return room, nil
}

// ListRoomsForUser is the one-shot variant of the room-list subscription:
// same enrichment, same ordering.
func (uc *ChatUseCase) ListRoomsForUser(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	rooms, err := uc.roomRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := uc.enrichUnreadCounts(ctx, rooms, userID); err != nil {
		return nil, err
	}
	sortRoomsByRecency(rooms)
	return rooms, nil
}

// SubscribeToRooms opens the live room-list channel for the user. Every
// snapshot is enriched with per-room unread counts before delivery; a snapshot
// is never published with partial counts.
func (uc *ChatUseCase) SubscribeToRooms(userID string, onUpdate repository.RoomsHandler) {
	uc.roomRepo.SubscribeByUser(userID, func(rooms []*entity.ChatRoom, err error) {
		if err != nil {
			onUpdate(nil, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), uc.queryTimeout)
		defer cancel()

		if err := uc.enrichUnreadCounts(ctx, rooms, userID); err != nil {
			onUpdate(nil, err)
			return
		}

		sortRoomsByRecency(rooms)
		onUpdate(rooms, nil)
	})
}

func (uc *ChatUseCase) enrichUnreadCounts(ctx context.Context, rooms []*entity.ChatRoom, viewerID string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, room := range rooms {
		room := room
		g.Go(func() error {
			count, err := uc.messageRepo.CountUnread(ctx, room.ID, viewerID)
			if err != nil {
				return err
			}
			room.UnreadCount = count
			return nil
		})
	}
	return g.Wait()
}

// Most recent activity first; rooms that never had a message sort last.
func sortRoomsByRecency(rooms []*entity.ChatRoom) {
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].LastTimestamp.After(rooms[j].LastTimestamp)
	})
}

// SubscribeToMessages seeds the handler with one synchronous fetch, then opens
// the live channel for subscriberID. The seed keeps first paint fast; each
// full snapshot from the channel replaces the seeded state. Subscriptions are
// held per subscriber, so both participants of a room can watch it at once.
func (uc *ChatUseCase) SubscribeToMessages(subscriberID, roomID string, onUpdate repository.MessagesHandler) {
	ctx, cancel := context.WithTimeout(context.Background(), uc.queryTimeout)
	defer cancel()

	seed, err := uc.messageRepo.ListByRoom(ctx, roomID)
	if err != nil {
		logger.Warn("Failed to seed messages for room %s: %v", roomID, err)
	} else {
		onUpdate(seed, nil)
	}

	uc.messageRepo.Subscribe(subscriberID, roomID, onUpdate)
}

func (uc *ChatUseCase) UnsubscribeRooms(userID string) {
	uc.roomRepo.UnsubscribeUser(userID)
}

func (uc *ChatUseCase) UnsubscribeMessages(subscriberID, roomID string) {
	uc.messageRepo.Unsubscribe(subscriberID, roomID)
}

// UnsubscribeAllFor tears down every subscription belonging to the user when
// their session ends.
func (uc *ChatUseCase) UnsubscribeAllFor(userID string) {
	uc.registry.UnsubscribeAllForUser(userID)
}

// SendTextMessage appends a text message and refreshes the room summary.
// Empty text and missing sender are silently dropped; nothing is written.
func (uc *ChatUseCase) SendTextMessage(ctx context.Context, roomID, senderID, text string) (*entity.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || senderID == "" {
		logger.Debug("Dropping empty or unauthenticated message for room %s", roomID)
		return nil, nil
	}

	allowed, waitTime := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		return nil, errors.TooManyRequests("Rate limit exceeded. Please slow down", waitTime)
	}

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(senderID) {
		return nil, errors.Forbidden("You are not a participant of this chat", nil)
	}

	now := time.Now()
	message := &entity.Message{
		ID:           uuid.New().String(),
		ChatID:       roomID,
		SenderID:     senderID,
		Content:      text,
		Timestamp:    now,
		IsRead:       false,
		Type:         entity.MessageTypeText,
		UploadStatus: entity.UploadStatusNone,
	}

	if err := uc.messageRepo.Append(ctx, message); err != nil {
		return nil, err
	}

	if err := uc.roomRepo.UpdateLastMessage(ctx, roomID, text, now, senderID); err != nil {
		// The message is already stored; the next summary write heals this.
		logger.Error("Failed to update room summary for %s: %v", roomID, err)
	}

	return message, nil
}

// SendImageMessage runs the image pipeline: compress, cache locally, append
// the message in uploading state, then upload in the background and resolve
// the status to completed or failed. Failed is terminal; resending creates a
// new message.
func (uc *ChatUseCase) SendImageMessage(ctx context.Context, roomID, senderID string, imageData []byte, caption string) (*entity.Message, error) {
	if senderID == "" {
		logger.Debug("Dropping unauthenticated image message for room %s", roomID)
		return nil, nil
	}

	allowed, waitTime := uc.rateLimiter.Allow(senderID, "upload_image")
	if !allowed {
		return nil, errors.TooManyRequests("Rate limit exceeded. Please slow down", waitTime)
	}

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(senderID) {
		return nil, errors.Forbidden("You are not a participant of this chat", nil)
	}

	compressed, size, err := imaging.Compress(imageData, uc.imageMaxBytes)
	if err != nil {
		return nil, err
	}

	caption = strings.TrimSpace(caption)
	messageID := uuid.New().String()
	now := time.Now()

	localPath, err := uc.cache.Save(messageID, compressed)
	if err != nil {
		// Cache failure only costs the local copy; the message still goes out.
		logger.LogUploadError(messageID, "cache", err)
		localPath = ""
	}

	messageType := entity.MessageTypeImage
	if caption != "" {
		messageType = entity.MessageTypeImageWithText
	}

	message := &entity.Message{
		ID:             messageID,
		ChatID:         roomID,
		SenderID:       senderID,
		Content:        caption,
		Timestamp:      now,
		IsRead:         false,
		Type:           messageType,
		ImageLocalPath: localPath,
		ImageSize:      &size,
		UploadStatus:   entity.UploadStatusUploading,
	}

	if err := uc.messageRepo.Append(ctx, message); err != nil {
		return nil, err
	}

	if err := uc.roomRepo.UpdateLastMessage(ctx, roomID, imagePlaceholder(caption), now, senderID); err != nil {
		logger.Error("Failed to update room summary for %s: %v", roomID, err)
	}

	go uc.uploadImage(roomID, messageID, compressed)

	return message, nil
}

func imagePlaceholder(caption string) string {
	if caption == "" {
		return imagePlaceholderGlyph + " Photo"
	}
	return imagePlaceholderGlyph + " " + caption
}

func (uc *ChatUseCase) uploadImage(roomID, messageID string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), uc.uploadTimeout)
	defer cancel()

	fileName := roomID + "_" + messageID
	url, err := uc.uploader.UploadImage(ctx, data, fileName, "chat_images")

	// A fresh context for the status write: the upload deadline may already
	// have expired.
	statusCtx, cancelStatus := context.WithTimeout(context.Background(), uc.queryTimeout)
	defer cancelStatus()

	if err != nil {
		logger.LogUploadError(messageID, "upload", err)
		if statusErr := uc.messageRepo.UpdateUploadStatus(statusCtx, roomID, messageID, entity.UploadStatusFailed, ""); statusErr != nil {
			logger.LogUploadError(messageID, "status", statusErr)
		}
		return
	}

	if err := uc.messageRepo.UpdateUploadStatus(statusCtx, roomID, messageID, entity.UploadStatusCompleted, url); err != nil {
		logger.LogUploadError(messageID, "status", err)
	}
}

// SendTextMessageAsync is the fire-and-forget variant used by the socket
// path. Failures are logged; the client learns the outcome from the next
// message snapshot.
func (uc *ChatUseCase) SendTextMessageAsync(roomID, senderID, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), uc.queryTimeout)
		defer cancel()

		if _, err := uc.SendTextMessage(ctx, roomID, senderID, text); err != nil {
			logger.Error("Async send to room %s failed: %v", roomID, err)
		}
	}()
}

// MarkMessagesReadAsync is the fire-and-forget variant used by the socket path.
func (uc *ChatUseCase) MarkMessagesReadAsync(roomID, viewerID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), uc.queryTimeout)
		defer cancel()

		if err := uc.MarkMessagesRead(ctx, roomID, viewerID); err != nil {
			logger.Error("Async mark-read for room %s failed: %v", roomID, err)
		}
	}()
}

// MarkMessagesRead flips every unread message from the other participant to
// read, then reconciles the room summary flag. The flag only moves when the
// last message was not the viewer's own. Idempotent; a no-op when nothing is
// unread.
func (uc *ChatUseCase) MarkMessagesRead(ctx context.Context, roomID, viewerID string) error {
	flipped, err := uc.messageRepo.MarkRead(ctx, roomID, viewerID)
	if err != nil {
		return err
	}
	if flipped == 0 {
		return nil
	}

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}

	if room.LastMessageSenderID != "" && room.LastMessageSenderID != viewerID && !room.LastMessageIsRead {
		if err := uc.roomRepo.SetLastMessageRead(ctx, roomID); err != nil {
			return err
		}
	}

	return nil
}

// GetMessages returns one page of the room's messages in ascending timestamp
// order, after a membership check.
func (uc *ChatUseCase) GetMessages(ctx context.Context, roomID, userID string, limit, offset int) ([]*entity.Message, int64, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}
	if !room.HasParticipant(userID) {
		return nil, 0, errors.Forbidden("You are not a participant of this chat", nil)
	}

	messages, err := uc.messageRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}

	total := int64(len(messages))

	start := offset
	if start > len(messages) {
		start = len(messages)
	}
	end := len(messages)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return messages[start:end], total, nil
}
