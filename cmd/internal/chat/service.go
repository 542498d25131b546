package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mladen081/u-m/cmd/internal/auth/session"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// Requester sends one API call. *session.Client implements it.
type Requester interface {
	Do(ctx context.Context, req *session.Request) (*session.Response, error)
}

// Service calls the chat REST endpoints.
type Service struct {
	http Requester
	log  *slog.Logger

	messagesPath  string
	deleteAllPath string
	onlinePath    string
}

// NewService returns a Service. A nil logger uses slog.Default.
func NewService(requester Requester, log *slog.Logger) (*Service, error) {
	if requester == nil {
		return nil, errors.New("chat: requester is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		http:          requester,
		log:           log.With("component", "chat"),
		messagesPath:  "/chat/messages/",
		deleteAllPath: "/chat/messages/delete-all/",
		onlinePath:    "/chat/online-users/",
	}, nil
}

// ClampLimit applies the server's history window: default 50, at most 100.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

// Messages returns the most recent messages, oldest first.
func (s *Service) Messages(ctx context.Context, limit int) ([]Message, error) {
	limit = ClampLimit(limit)
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var out []Message
	if err := s.call(ctx, &session.Request{Method: http.MethodGet, Path: s.messagesPath, Query: q}, &out); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	s.log.Debug("chat.messages.fetched", "count", len(out), "limit", limit)
	return out, nil
}

// DeleteAll wipes the history. The server only allows admins; the result is
// the server's confirmation message.
func (s *Service) DeleteAll(ctx context.Context) (string, error) {
	resp, err := s.http.Do(ctx, &session.Request{Method: http.MethodDelete, Path: s.deleteAllPath})
	if err != nil {
		return "", fmt.Errorf("delete messages: %w", err)
	}
	if err := resp.Err(); err != nil {
		return "", fmt.Errorf("delete messages: %w", err)
	}
	s.log.Info("chat.messages.deleted", "request_id", resp.RequestID)
	return resp.Message(), nil
}

// OnlineUsers returns the usernames currently connected to the realtime channel.
func (s *Service) OnlineUsers(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.call(ctx, &session.Request{Method: http.MethodGet, Path: s.onlinePath}, &out); err != nil {
		return nil, fmt.Errorf("fetch online users: %w", err)
	}
	return out, nil
}

func (s *Service) call(ctx context.Context, req *session.Request, out any) error {
	resp, err := s.http.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(out)
}
