package chat

import (
	"time"

	v1 "github.com/mladen081/u-m/shared/contracts/realtime/v1"
)

// Message is one stored chat message.
type Message struct {
	ID        int64  `json:"id"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	UserID    int64  `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

// Time parses Timestamp, returning the zero time when it is not RFC 3339.
func (m Message) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FromFrame converts a realtime new_message frame.
func FromFrame(f v1.NewMessage) Message {
	return Message{
		ID:        f.MessageID,
		Message:   f.Message,
		Username:  f.Username,
		UserID:    f.UserID,
		Timestamp: f.Timestamp,
	}
}
