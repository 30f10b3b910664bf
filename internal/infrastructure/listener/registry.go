package listener

import (
	"context"
	"strings"
	"sync"

	"chatkit/pkg/logger"
)

// Key builders for the two subscription purposes. One active subscription per
// key; subscribing again under the same key replaces the old channel. Message
// keys carry the subscriber id: the registry is shared by every connected
// user, so two participants watching the same room must hold separate
// subscriptions.
func RoomsKey(userID string) string { return "rooms:" + userID }

func MessagesKey(userID, roomID string) string {
	return "messages:" + userID + ":" + roomID
}

type stream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns every live store subscription, keyed by logical purpose. A
// subscription is a pump function run on its own goroutine until its context
// is cancelled. The registry forwards nothing itself; pumps call their own
// handlers. After Unsubscribe returns, the pump has fully drained and no
// further callback can fire.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*stream
}

func NewRegistry() *Registry {
	return &Registry{
		streams: make(map[string]*stream),
	}
}

// Subscribe starts run under key. An existing subscription for the same key is
// torn down first (replace semantics, not stack). The map swap happens in one
// critical section, so concurrent calls for the same key chain: each call sees
// exactly one predecessor and drains it before starting its own pump. A stream
// is never orphaned outside the map without a successor responsible for it.
func (r *Registry) Subscribe(key string, run func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &stream{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	old := r.streams[key]
	r.streams[key] = s
	r.mu.Unlock()

	if old != nil {
		logger.Debug("Replacing listener for key %s", key)
		old.cancel()
		<-old.done
	}

	go func() {
		defer close(s.done)
		run(ctx)
	}()
}

// Unsubscribe tears down the subscription for key and waits for its pump to
// stop. No-op for unknown keys.
func (r *Registry) Unsubscribe(key string) {
	r.mu.Lock()
	s := r.streams[key]
	delete(r.streams, key)
	r.mu.Unlock()

	if s != nil {
		s.cancel()
		<-s.done
	}
}

// UnsubscribeAll closes every channel. Subsequent pushes are impossible.
func (r *Registry) UnsubscribeAll() {
	r.unsubscribeWhere(func(string) bool { return true })
}

// UnsubscribeAllMatching closes every channel whose key satisfies match.
func (r *Registry) UnsubscribeAllMatching(match func(key string) bool) {
	r.unsubscribeWhere(match)
}

// UnsubscribeAllForUser removes the user's room-list subscription and every
// message subscription the user holds. Matching is exact on the key structure;
// a user id that happens to be a substring of another id or a room id never
// matches.
func (r *Registry) UnsubscribeAllForUser(userID string) {
	messagesPrefix := "messages:" + userID + ":"
	r.unsubscribeWhere(func(key string) bool {
		return key == RoomsKey(userID) || strings.HasPrefix(key, messagesPrefix)
	})
}

func (r *Registry) unsubscribeWhere(match func(key string) bool) {
	r.mu.Lock()
	var victims []*stream
	for key, s := range r.streams {
		if match(key) {
			victims = append(victims, s)
			delete(r.streams, key)
		}
	}
	r.mu.Unlock()

	for _, s := range victims {
		s.cancel()
		<-s.done
	}
}

// ActiveKeys returns the keys with a live subscription.
func (r *Registry) ActiveKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.streams))
	for key := range r.streams {
		keys = append(keys, key)
	}
	return keys
}
