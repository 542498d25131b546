package chat

import (
	"sync"
	"testing"

	v1 "github.com/mladen081/u-m/shared/contracts/realtime/v1"
	"github.com/stretchr/testify/require"
)

func TestRoom_AppendDedupesByID(t *testing.T) {
	r := NewRoom(10)
	require.True(t, r.Append(Message{ID: 1, Message: "a"}))
	require.False(t, r.Append(Message{ID: 1, Message: "a again"}))
	require.True(t, r.Append(Message{Message: "no id"}))
	require.True(t, r.Append(Message{Message: "no id"}))
	require.Len(t, r.Messages(), 3)
}

func TestRoom_CapacityEvictsOldest(t *testing.T) {
	r := NewRoom(3)
	for i := int64(1); i <= 5; i++ {
		r.Append(Message{ID: i})
	}
	msgs := r.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, int64(3), msgs[0].ID)
	require.Equal(t, int64(5), msgs[2].ID)

	// Evicted ids may come back.
	require.True(t, r.Append(Message{ID: 1}))
}

func TestRoom_ReplaceAndClear(t *testing.T) {
	r := NewRoom(0)
	r.Append(Message{ID: 99})
	r.Replace([]Message{{ID: 1}, {ID: 2}, {ID: 2}})
	require.Len(t, r.Messages(), 2)
	require.True(t, r.Append(Message{ID: 99}))

	r.Clear()
	require.Empty(t, r.Messages())
	require.True(t, r.Append(Message{ID: 1}))
}

func TestRoom_OnlineIsCopied(t *testing.T) {
	r := NewRoom(0)
	users := []string{"alice", "bob"}
	r.SetOnline(users)
	users[0] = "mallory"
	require.Equal(t, []string{"alice", "bob"}, r.Online())
}

func TestRoom_ConcurrentAppend(t *testing.T) {
	r := NewRoom(1000)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				r.Append(Message{ID: int64(i*1000 + j)})
			}
		}()
	}
	wg.Wait()
	require.Len(t, r.Messages(), 400)
}

func TestFromFrame(t *testing.T) {
	m := FromFrame(v1.NewMessage{
		Action:    v1.ActionNewMessage,
		Message:   "hello",
		Username:  "alice",
		UserID:    7,
		Timestamp: "2026-03-01T08:00:00+00:00",
		MessageID: 41,
	})
	require.Equal(t, Message{ID: 41, Message: "hello", Username: "alice", UserID: 7, Timestamp: "2026-03-01T08:00:00+00:00"}, m)
}
