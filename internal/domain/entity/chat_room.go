package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// ChatRoom is a two-party conversation. Participants are stored sorted and
// never change after creation. The last* fields are a denormalized summary of
// the most recent message; LastMessageIsRead reflects only that message's read
// state relative to the other participant.
type ChatRoom struct {
	ID                  string    `json:"id" firestore:"id"`
	Participants        []string  `json:"participants" firestore:"participants"`
	LastMessage         string    `json:"last_message,omitempty" firestore:"lastMessage,omitempty"`
	LastTimestamp       time.Time `json:"last_timestamp,omitempty" firestore:"lastTimestamp,omitempty"`
	LastMessageSenderID string    `json:"last_message_sender_id,omitempty" firestore:"lastMessageSenderId,omitempty"`
	LastMessageIsRead   bool      `json:"last_message_is_read" firestore:"lastMessageIsRead"`
	CreatedAt           time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt           time.Time `json:"updated_at" firestore:"updatedAt"`

	// UnreadCount is derived per viewer on every snapshot. It is never
	// persisted and must not be trusted as global truth.
	UnreadCount int `json:"unread_count" firestore:"-"`
}

// RoomIDForPair derives the room id from the unordered participant pair, so
// both sides resolve to the same document and create-if-absent eliminates the
// duplicate-room race.
func RoomIDForPair(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	sum := sha256.Sum256([]byte(pair[0] + "|" + pair[1]))
	return hex.EncodeToString(sum[:16])
}

// SortedPair returns the participant pair in storage order.
func SortedPair(userA, userB string) []string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return pair
}

func (r *ChatRoom) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the peer of userID, or "" if userID is not a member.
func (r *ChatRoom) OtherParticipant(userID string) string {
	for _, p := range r.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}
