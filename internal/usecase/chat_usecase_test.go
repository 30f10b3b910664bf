package usecase

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatkit/internal/domain/entity"
	"chatkit/internal/domain/repository"
	"chatkit/internal/infrastructure/imaging"
	"chatkit/internal/infrastructure/listener"
	"chatkit/pkg/errors"
)

type MockChatRoomRepository struct {
	mock.Mock
}

func (m *MockChatRoomRepository) Create(ctx context.Context, room *entity.ChatRoom) (bool, error) {
	args := m.Called(ctx, room)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatRoomRepository) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ChatRoom), args.Error(1)
}

func (m *MockChatRoomRepository) ListByUser(ctx context.Context, userID string) ([]*entity.ChatRoom, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.ChatRoom), args.Error(1)
}

func (m *MockChatRoomRepository) UpdateLastMessage(ctx context.Context, roomID, text string, timestamp time.Time, senderID string) error {
	args := m.Called(ctx, roomID, text, timestamp, senderID)
	return args.Error(0)
}

func (m *MockChatRoomRepository) SetLastMessageRead(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockChatRoomRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockChatRoomRepository) SubscribeByUser(userID string, h repository.RoomsHandler) {
	m.Called(userID, h)
}

func (m *MockChatRoomRepository) UnsubscribeUser(userID string) {
	m.Called(userID)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, message *entity.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, roomID, messageID string) (*entity.Message, error) {
	args := m.Called(ctx, roomID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByRoom(ctx context.Context, roomID string) ([]*entity.Message, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, roomID, viewerID string) (int, error) {
	args := m.Called(ctx, roomID, viewerID)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageRepository) CountUnread(ctx context.Context, roomID, viewerID string) (int, error) {
	args := m.Called(ctx, roomID, viewerID)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageRepository) UpdateUploadStatus(ctx context.Context, roomID, messageID string, status entity.UploadStatus, imageURL string) error {
	args := m.Called(ctx, roomID, messageID, status, imageURL)
	return args.Error(0)
}

func (m *MockMessageRepository) Subscribe(subscriberID, roomID string, h repository.MessagesHandler) {
	m.Called(subscriberID, roomID, h)
}

func (m *MockMessageRepository) Unsubscribe(subscriberID, roomID string) {
	m.Called(subscriberID, roomID)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *entity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *entity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit int) ([]*entity.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.User), args.Error(1)
}

// stubUploader signals through done so tests can wait for the async upload.
type stubUploader struct {
	url  string
	err  error
	done chan struct{}
}

func (u *stubUploader) UploadImage(ctx context.Context, data []byte, fileName, folder string) (string, error) {
	defer close(u.done)
	return u.url, u.err
}

func newTestChatUseCase(t *testing.T, rooms *MockChatRoomRepository, messages *MockMessageRepository, users *MockUserRepository, uploader *stubUploader) *ChatUseCase {
	t.Helper()
	if uploader == nil {
		uploader = &stubUploader{done: make(chan struct{})}
	}
	cache := imaging.NewCache(t.TempDir(), time.Hour)
	return NewChatUseCase(rooms, messages, users, uploader, cache, listener.NewRegistry(), ChatUseCaseConfig{
		UploadTimeout: 2 * time.Second,
		QueryTimeout:  2 * time.Second,
	})
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestFindOrCreateRoom_CreatesWhenAbsent(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	users.On("GetByID", mock.Anything, "user-b").Return(&entity.User{ID: "user-b"}, nil)
	rooms.On("Create", mock.Anything, mock.MatchedBy(func(room *entity.ChatRoom) bool {
		return room.ID == entity.RoomIDForPair("user-a", "user-b") &&
			len(room.Participants) == 2
	})).Return(true, nil)

	room, created, err := uc.FindOrCreateRoom(context.Background(), "user-a", "user-b")

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entity.RoomIDForPair("user-b", "user-a"), room.ID)
	rooms.AssertExpectations(t)
}

func TestFindOrCreateRoom_ReturnsExisting(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	roomID := entity.RoomIDForPair("user-a", "user-b")
	existing := &entity.ChatRoom{ID: roomID, Participants: entity.SortedPair("user-a", "user-b")}

	users.On("GetByID", mock.Anything, "user-b").Return(&entity.User{ID: "user-b"}, nil)
	rooms.On("Create", mock.Anything, mock.Anything).Return(false, nil)
	rooms.On("GetByID", mock.Anything, roomID).Return(existing, nil)

	room, created, err := uc.FindOrCreateRoom(context.Background(), "user-a", "user-b")

	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, existing, room)
}

func TestFindOrCreateRoom_RejectsSelfChat(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	_, _, err := uc.FindOrCreateRoom(context.Background(), "user-a", "user-a")

	require.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
	rooms.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendTextMessage_AppendsAndUpdatesSummary(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	room := &entity.ChatRoom{ID: "room-1", Participants: []string{"user-a", "user-b"}}
	rooms.On("GetByID", mock.Anything, "room-1").Return(room, nil)
	messages.On("Append", mock.Anything, mock.MatchedBy(func(msg *entity.Message) bool {
		return msg.Content == "hello" &&
			msg.SenderID == "user-a" &&
			msg.Type == entity.MessageTypeText &&
			msg.UploadStatus == entity.UploadStatusNone &&
			!msg.IsRead
	})).Return(nil)
	rooms.On("UpdateLastMessage", mock.Anything, "room-1", "hello", mock.Anything, "user-a").Return(nil)

	msg, err := uc.SendTextMessage(context.Background(), "room-1", "user-a", "  hello  ")

	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "hello", msg.Content)
	messages.AssertExpectations(t)
	rooms.AssertExpectations(t)
}

func TestSendTextMessage_DropsEmptyText(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	msg, err := uc.SendTextMessage(context.Background(), "room-1", "user-a", "   \n\t ")

	require.NoError(t, err)
	assert.Nil(t, msg)
	messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	rooms.AssertNotCalled(t, "UpdateLastMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendTextMessage_DropsUnauthenticatedSender(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	msg, err := uc.SendTextMessage(context.Background(), "room-1", "", "hello")

	require.NoError(t, err)
	assert.Nil(t, msg)
	messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSendTextMessage_RejectsNonParticipant(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	room := &entity.ChatRoom{ID: "room-1", Participants: []string{"user-a", "user-b"}}
	rooms.On("GetByID", mock.Anything, "room-1").Return(room, nil)

	_, err := uc.SendTextMessage(context.Background(), "room-1", "intruder", "hello")

	require.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestMarkMessagesRead_FlipsSummaryFlag(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	room := &entity.ChatRoom{
		ID:                  "room-1",
		Participants:        []string{"user-a", "user-b"},
		LastMessageSenderID: "user-b",
		LastMessageIsRead:   false,
	}
	messages.On("MarkRead", mock.Anything, "room-1", "user-a").Return(3, nil)
	rooms.On("GetByID", mock.Anything, "room-1").Return(room, nil)
	rooms.On("SetLastMessageRead", mock.Anything, "room-1").Return(nil)

	err := uc.MarkMessagesRead(context.Background(), "room-1", "user-a")

	require.NoError(t, err)
	rooms.AssertCalled(t, "SetLastMessageRead", mock.Anything, "room-1")
}

func TestMarkMessagesRead_NoopWhenNothingUnread(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	messages.On("MarkRead", mock.Anything, "room-1", "user-a").Return(0, nil)

	err := uc.MarkMessagesRead(context.Background(), "room-1", "user-a")

	require.NoError(t, err)
	rooms.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	rooms.AssertNotCalled(t, "SetLastMessageRead", mock.Anything, mock.Anything)
}

func TestMarkMessagesRead_SkipsFlagForOwnLastMessage(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	room := &entity.ChatRoom{
		ID:                  "room-1",
		Participants:        []string{"user-a", "user-b"},
		LastMessageSenderID: "user-a",
		LastMessageIsRead:   false,
	}
	messages.On("MarkRead", mock.Anything, "room-1", "user-a").Return(2, nil)
	rooms.On("GetByID", mock.Anything, "room-1").Return(room, nil)

	err := uc.MarkMessagesRead(context.Background(), "room-1", "user-a")

	require.NoError(t, err)
	rooms.AssertNotCalled(t, "SetLastMessageRead", mock.Anything, mock.Anything)
}

func TestSendImageMessage_CompletesUpload(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uploader := &stubUploader{url: "https://cdn.example.com/img.jpg", done: make(chan struct{})}
	uc := newTestChatUseCase(t, rooms, messages, users, uploader)

	room := &entity.ChatRoom{ID: "room-1", Participants: []string{"user-a", "user-b"}}
	rooms.On("GetByID", mock.Anything, "room-1").Return(room, nil)
	messages.On("Append", mock.Anything, mock.MatchedBy(func(msg *entity.Message) bool {
		return msg.Type == entity.MessageTypeImageWithText &&
			msg.Content == "look at this" &&
			msg.UploadStatus == entity.UploadStatusUploading &&
			msg.ImageSize != nil &&
			msg.ImageLocalPath != ""
	})).Return(nil)
	rooms.On("UpdateLastMessage", mock.Anything, "room-1", "\U0001F4F7 look at this", mock.Anything, "user-a").Return(nil)

	statusWritten := make(chan struct{})
	messages.On("UpdateUploadStatus", mock.Anything, "room-1", mock.Anything, entity.UploadStatusCompleted, "https://cdn.example.com/img.jpg").
		Run(func(mock.Arguments) { close(statusWritten) }).
		Return(nil)

	msg, err := uc.SendImageMessage(context.Background(), "room-1", "user-a", testJPEG(t, 200, 100), "look at this")

	require.NoError(t, err)
	require.NotNil(t, msg)

	select {
	case <-statusWritten:
	case <-time.After(3 * time.Second):
		t.Fatal("upload status was never resolved")
	}
	messages.AssertExpectations(t)
}

func TestSendImageMessage_FailureKeepsLocalCopy(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uploader := &stubUploader{err: errors.Network("upload failed", nil), done: make(chan struct{})}
	uc := newTestChatUseCase(t, rooms, messages, users, uploader)

	room := &entity.ChatRoom{ID: "room-1", Participants: []string{"user-a", "user-b"}}
	rooms.On("GetByID", mock.Anything, "room-1").Return(room, nil)
	messages.On("Append", mock.Anything, mock.Anything).Return(nil)
	rooms.On("UpdateLastMessage", mock.Anything, "room-1", "\U0001F4F7 Photo", mock.Anything, "user-a").Return(nil)

	statusWritten := make(chan struct{})
	messages.On("UpdateUploadStatus", mock.Anything, "room-1", mock.Anything, entity.UploadStatusFailed, "").
		Run(func(mock.Arguments) { close(statusWritten) }).
		Return(nil)

	msg, err := uc.SendImageMessage(context.Background(), "room-1", "user-a", testJPEG(t, 120, 120), "")

	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, entity.MessageTypeImage, msg.Type)

	select {
	case <-statusWritten:
	case <-time.After(3 * time.Second):
		t.Fatal("upload status was never resolved")
	}

	// The cached copy survives the failed upload for a later resend.
	_, statErr := os.Stat(msg.ImageLocalPath)
	assert.NoError(t, statErr)
}

func TestSendImageMessage_RejectsGarbageData(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	room := &entity.ChatRoom{ID: "room-1", Participants: []string{"user-a", "user-b"}}
	rooms.On("GetByID", mock.Anything, "room-1").Return(room, nil)

	_, err := uc.SendImageMessage(context.Background(), "room-1", "user-a", []byte("not an image"), "")

	require.Error(t, err)
	messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestListRoomsForUser_EnrichesAndSorts(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	now := time.Now()
	stale := &entity.ChatRoom{ID: "room-stale", Participants: []string{"user-a", "user-b"}, LastTimestamp: now.Add(-time.Hour)}
	fresh := &entity.ChatRoom{ID: "room-fresh", Participants: []string{"user-a", "user-c"}, LastTimestamp: now}
	empty := &entity.ChatRoom{ID: "room-empty", Participants: []string{"user-a", "user-d"}}

	rooms.On("ListByUser", mock.Anything, "user-a").Return([]*entity.ChatRoom{stale, empty, fresh}, nil)
	messages.On("CountUnread", mock.Anything, "room-stale", "user-a").Return(2, nil)
	messages.On("CountUnread", mock.Anything, "room-fresh", "user-a").Return(0, nil)
	messages.On("CountUnread", mock.Anything, "room-empty", "user-a").Return(0, nil)

	result, err := uc.ListRoomsForUser(context.Background(), "user-a")

	require.NoError(t, err)
	require.Len(t, result, 3)
	assert.Equal(t, "room-fresh", result[0].ID)
	assert.Equal(t, "room-stale", result[1].ID)
	assert.Equal(t, "room-empty", result[2].ID)
	assert.Equal(t, 2, result[1].UnreadCount)
}

func TestSubscribeToMessages_SeedsBeforeLiveChannel(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	seed := []*entity.Message{{ID: "m1", ChatID: "room-1", Content: "hi"}}
	messages.On("ListByRoom", mock.Anything, "room-1").Return(seed, nil)
	messages.On("Subscribe", "user-a", "room-1", mock.Anything).Return()

	var delivered [][]*entity.Message
	uc.SubscribeToMessages("user-a", "room-1", func(msgs []*entity.Message, err error) {
		require.NoError(t, err)
		delivered = append(delivered, msgs)
	})

	require.Len(t, delivered, 1)
	assert.Equal(t, "m1", delivered[0][0].ID)
	messages.AssertCalled(t, "Subscribe", "user-a", "room-1", mock.Anything)
}

func TestSubscribeToMessages_PerSubscriberChannels(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	seed := []*entity.Message{{ID: "m1", ChatID: "room-1"}}
	messages.On("ListByRoom", mock.Anything, "room-1").Return(seed, nil)
	messages.On("Subscribe", mock.Anything, "room-1", mock.Anything).Return()
	messages.On("Unsubscribe", "user-a", "room-1").Return()

	noop := func([]*entity.Message, error) {}
	uc.SubscribeToMessages("user-a", "room-1", noop)
	uc.SubscribeToMessages("user-b", "room-1", noop)

	// Both participants hold their own channel on the same room.
	messages.AssertCalled(t, "Subscribe", "user-a", "room-1", mock.Anything)
	messages.AssertCalled(t, "Subscribe", "user-b", "room-1", mock.Anything)

	// One leaving does not touch the other's channel.
	uc.UnsubscribeMessages("user-a", "room-1")
	messages.AssertCalled(t, "Unsubscribe", "user-a", "room-1")
	messages.AssertNotCalled(t, "Unsubscribe", "user-b", "room-1")
}

func TestGetMessages_Paginates(t *testing.T) {
	rooms := new(MockChatRoomRepository)
	messages := new(MockMessageRepository)
	users := new(MockUserRepository)
	uc := newTestChatUseCase(t, rooms, messages, users, nil)

	room := &entity.ChatRoom{ID: "room-1", Participants: []string{"user-a", "user-b"}}
	rooms.On("GetByID", mock.Anything, "room-1").Return(room, nil)

	all := []*entity.Message{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}, {ID: "m4"}}
	messages.On("ListByRoom", mock.Anything, "room-1").Return(all, nil)

	page, total, err := uc.GetMessages(context.Background(), "room-1", "user-a", 2, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 2)
	assert.Equal(t, "m2", page[0].ID)
	assert.Equal(t, "m3", page[1].ID)
}
