package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	v1 "github.com/mladen081/u-m/shared/contracts/realtime/v1"
	"github.com/stretchr/testify/require"
)

func TestWSURLFromBase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "http://localhost:8000/api", want: "ws://localhost:8000/ws/chat/"},
		{in: "https://chat.example.com/api/", want: "wss://chat.example.com/ws/chat/"},
		{in: "http://10.0.0.2:8000/api?x=1", want: "ws://10.0.0.2:8000/ws/chat/"},
	}
	for _, tc := range tests {
		got, err := WSURLFromBase(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}

	_, err := WSURLFromBase("ftp://example.com")
	require.Error(t, err)
	_, err = WSURLFromBase("http:///api")
	require.Error(t, err)
}

// chatServer accepts one websocket per request, checks the token, pushes a
// greeting frame and echoes every outbound message back as new_message.
type chatServer struct {
	mu      sync.Mutex
	cookies []string
	seq     int64
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/ws/chat/" || r.URL.Query().Get("token") != "a1" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	c, _ := r.Cookie("access_token")
	s.mu.Lock()
	if c != nil {
		s.cookies = append(s.cookies, c.Value)
	}
	s.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	ctx := r.Context()
	_ = conn.Write(ctx, websocket.MessageText, []byte(`{"action":"user_list_update","users":["alice"]}`))

	for {
		_, b, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var out v1.Outbound
		if err := json.Unmarshal(b, &out); err != nil {
			return
		}
		if out.Message == "quit" {
			_ = conn.Close(websocket.StatusGoingAway, "server restart")
			return
		}
		s.mu.Lock()
		s.seq++
		id := s.seq
		s.mu.Unlock()
		frame, _ := json.Marshal(v1.NewMessage{
			Action:    v1.ActionNewMessage,
			Message:   out.Message,
			Username:  "alice",
			UserID:    7,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			MessageID: id,
		})
		if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
			return
		}
	}
}

func (s *chatServer) seenCookies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cookies...)
}

func TestManager_EndToEndOverWebsocket(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs)
	t.Cleanup(srv.Close)

	wsURL, err := WSURLFromBase(srv.URL + "/api")
	require.NoError(t, err)

	clock := newFakeClock()
	router := NewRouter(nil, nil)

	users := make(chan []string, 4)
	msgs := make(chan v1.NewMessage, 4)
	router.OnUserListUpdate(func(u []string) { users <- u })
	router.OnNewMessage(func(m v1.NewMessage) { msgs <- m })

	m := NewManager(&WSDialer{URL: wsURL}, &staticTokens{token: "a1"}, router, WithClock(clock))
	t.Cleanup(func() {
		m.Disconnect()
		m.Wait()
	})

	require.NoError(t, m.Connect())
	require.Eventually(t, func() bool { return m.State() == StateOpen }, waitFor, tick)

	select {
	case u := <-users:
		require.Equal(t, []string{"alice"}, u)
	case <-time.After(waitFor):
		t.Fatal("no presence frame")
	}

	require.NoError(t, m.SendMessage(context.Background(), "hello there"))
	select {
	case got := <-msgs:
		require.Equal(t, "hello there", got.Message)
		require.Equal(t, int64(1), got.MessageID)
		require.Equal(t, int64(7), got.UserID)
	case <-time.After(waitFor):
		t.Fatal("no echo")
	}

	// Server-side close schedules the first retry.
	require.NoError(t, m.SendMessage(context.Background(), "quit"))
	require.Eventually(t, func() bool {
		p := clock.pending()
		return m.State() == StateIdle && len(p) == 1 && p[0] == time.Second
	}, waitFor, tick)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return m.State() == StateOpen }, waitFor, tick)
	require.Zero(t, m.Attempt())
	require.Equal(t, []string{"a1", "a1"}, cs.seenCookies())
}

func TestWSDialer_RejectedHandshakeHidesToken(t *testing.T) {
	srv := httptest.NewServer(&chatServer{})
	t.Cleanup(srv.Close)

	wsURL, err := WSURLFromBase(srv.URL)
	require.NoError(t, err)

	_, err = (&WSDialer{URL: wsURL}).Dial(context.Background(), "super-secret-token")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "super-secret-token")
}

func TestWSDialer_RequiresToken(t *testing.T) {
	_, err := (&WSDialer{URL: "ws://localhost:1/ws/chat/"}).Dial(context.Background(), "")
	require.ErrorIs(t, err, ErrNoAccessToken)
}
