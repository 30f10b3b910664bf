package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomIDForPair(t *testing.T) {
	t.Run("order independent", func(t *testing.T) {
		assert.Equal(t, RoomIDForPair("alice", "bob"), RoomIDForPair("bob", "alice"))
	})

	t.Run("distinct pairs get distinct ids", func(t *testing.T) {
		assert.NotEqual(t, RoomIDForPair("alice", "bob"), RoomIDForPair("alice", "carol"))
	})

	t.Run("similar ids do not collide", func(t *testing.T) {
		// The separator prevents "ab"+"c" from matching "a"+"bc".
		assert.NotEqual(t, RoomIDForPair("ab", "c"), RoomIDForPair("a", "bc"))
	})
}

func TestSortedPair(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob"}, SortedPair("bob", "alice"))
	assert.Equal(t, []string{"alice", "bob"}, SortedPair("alice", "bob"))
}

func TestHasParticipant(t *testing.T) {
	room := &ChatRoom{Participants: []string{"alice", "bob"}}

	assert.True(t, room.HasParticipant("alice"))
	assert.False(t, room.HasParticipant("carol"))
}

func TestOtherParticipant(t *testing.T) {
	room := &ChatRoom{Participants: []string{"alice", "bob"}}

	assert.Equal(t, "bob", room.OtherParticipant("alice"))
	assert.Equal(t, "alice", room.OtherParticipant("bob"))
}
