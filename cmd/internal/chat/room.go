package chat

import (
	"slices"
	"sync"
)

const defaultRoomCapacity = 500

// Room is the local view of the chat: messages ordered by arrival and the
// online user list. Safe for concurrent use.
type Room struct {
	mu       sync.Mutex
	capacity int
	msgs     []Message
	seen     map[int64]struct{}
	online   []string
}

// NewRoom returns an empty Room keeping at most capacity messages.
func NewRoom(capacity int) *Room {
	if capacity <= 0 {
		capacity = defaultRoomCapacity
	}
	return &Room{
		capacity: capacity,
		msgs:     make([]Message, 0, 64),
		seen:     make(map[int64]struct{}),
	}
}

// Replace swaps in a fetched history.
func (r *Room) Replace(msgs []Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = r.msgs[:0]
	clear(r.seen)
	for _, m := range msgs {
		r.appendLocked(m)
	}
}

// Append adds m unless a message with the same id is already present.
// Messages without an id are always appended.
func (r *Room) Append(m Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(m)
}

func (r *Room) appendLocked(m Message) bool {
	if m.ID != 0 {
		if _, dup := r.seen[m.ID]; dup {
			return false
		}
		r.seen[m.ID] = struct{}{}
	}
	r.msgs = append(r.msgs, m)

	if over := len(r.msgs) - r.capacity; over > 0 {
		for _, old := range r.msgs[:over] {
			delete(r.seen, old.ID)
		}
		r.msgs = slices.Delete(r.msgs, 0, over)
	}
	return true
}

// Clear empties the message list.
func (r *Room) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = r.msgs[:0]
	clear(r.seen)
}

// Messages returns a copy of the message list.
func (r *Room) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.msgs)
}

// SetOnline replaces the online user list.
func (r *Room) SetOnline(users []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online = slices.Clone(users)
}

// Online returns a copy of the online user list.
func (r *Room) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.online)
}
