// Package v1 defines the chat realtime wire contract: the frames the server pushes
// over /ws/chat/ and the single frame a client sends back.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Inbound actions.
const (
	ActionNewMessage     = "new_message"
	ActionClearAll       = "clear_all"
	ActionUserListUpdate = "user_list_update"
)

// MaxMessageChars is the longest message the server accepts (after trimming).
const MaxMessageChars = 1000

var (
	ErrMissingAction  = errors.New("missing action")
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
)

// Frame is the discriminator every inbound frame carries.
type Frame struct {
	Action string `json:"action"`
}

// NewMessage is pushed to every connected client when a message is stored.
type NewMessage struct {
	Action    string `json:"action"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	UserID    int64  `json:"user_id"`
	Timestamp string `json:"timestamp"`
	MessageID int64  `json:"message_id"`
}

// Time parses Timestamp. The zero time is returned when the server sent something unparsable.
func (m NewMessage) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ClearAll tells clients that the history was wiped by an admin.
type ClearAll struct {
	Action string `json:"action"`
}

// UserListUpdate carries the full presence list.
type UserListUpdate struct {
	Action string   `json:"action"`
	Users  []string `json:"users"`
}

// Outbound is the only client-to-server frame.
type Outbound struct {
	Message string `json:"message"`
}

// Validate mirrors the server's acceptance rule so callers can fail early.
func (o Outbound) Validate() error {
	s := strings.TrimSpace(o.Message)
	if s == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(s) > MaxMessageChars {
		return ErrMessageTooLong
	}
	return nil
}

// DecodeAction extracts the discriminator from a raw frame.
func DecodeAction(raw []byte) (string, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}
	if strings.TrimSpace(f.Action) == "" {
		return "", ErrMissingAction
	}
	return f.Action, nil
}
