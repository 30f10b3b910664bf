package entity

import (
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText          MessageType = "text"
	MessageTypeImage         MessageType = "image"
	MessageTypeImageWithText MessageType = "image_with_text"
)

type UploadStatus string

const (
	UploadStatusNone      UploadStatus = "none"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

// CanTransition reports whether the upload status may move to next. The
// lifecycle is none -> uploading -> {completed|failed}; failed is terminal,
// a resend creates a new message.
func (s UploadStatus) CanTransition(next UploadStatus) bool {
	switch s {
	case UploadStatusNone:
		return next == UploadStatusUploading
	case UploadStatusUploading:
		return next == UploadStatusCompleted || next == UploadStatusFailed
	default:
		return false
	}
}

type ImageSize struct {
	Width  float64 `json:"width" firestore:"width"`
	Height float64 `json:"height" firestore:"height"`
}

// ScaledSize fits the size into maxWidth x maxHeight preserving aspect ratio.
// Used as a bubble layout hint for clients.
func (s ImageSize) ScaledSize(maxWidth, maxHeight float64) ImageSize {
	if s.Width <= maxWidth && s.Height <= maxHeight {
		return s
	}

	aspectRatio := s.Width / s.Height
	byWidth := ImageSize{Width: maxWidth, Height: maxWidth / aspectRatio}
	if byWidth.Height <= maxHeight {
		return byWidth
	}
	return ImageSize{Width: maxHeight * aspectRatio, Height: maxHeight}
}

// Message belongs to exactly one room. IsRead transitions false -> true only
// and never reverts. ImageLocalPath is a client-local cache path and is never
// meaningful on another device.
type Message struct {
	ID             string       `json:"id" firestore:"id"`
	ChatID         string       `json:"chat_id" firestore:"chatId"`
	SenderID       string       `json:"sender_id" firestore:"senderId"`
	Content        string       `json:"content" firestore:"content"`
	Timestamp      time.Time    `json:"timestamp" firestore:"timestamp"`
	IsRead         bool         `json:"is_read" firestore:"isRead"`
	Type           MessageType  `json:"message_type" firestore:"messageType"`
	ImageURL       string       `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	ImageLocalPath string       `json:"image_local_path,omitempty" firestore:"imageLocalPath,omitempty"`
	ImageSize      *ImageSize   `json:"image_size,omitempty" firestore:"imageSize,omitempty"`
	UploadStatus   UploadStatus `json:"upload_status" firestore:"uploadStatus"`
}

func (m *Message) IsImageMessage() bool {
	return m.Type == MessageTypeImage || m.Type == MessageTypeImageWithText
}

func (m *Message) HasTextContent() bool {
	return strings.TrimSpace(m.Content) != ""
}
