package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// Conn is one open realtime transport.
type Conn interface {
	// Read blocks for the next frame.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens a transport authenticated with an access token.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// WSDialer dials the chat websocket endpoint.
type WSDialer struct {
	// URL is the endpoint without the token, e.g. ws://localhost:8000/ws/chat/.
	URL string

	HTTPClient *http.Client
	ReadLimit  int64
}

// WSURLFromBase derives the websocket endpoint from the REST base URL:
// http://host:8000/api becomes ws://host:8000/ws/chat/.
func WSURLFromBase(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(apiBase))
	if err != nil {
		return "", fmt.Errorf("parse api base: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("api base %q: unsupported scheme %q", apiBase, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api base %q: missing host", apiBase)
	}
	u.Path = "/ws/chat/"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Dial connects with the token in the query string and in the access_token
// cookie, the two places the server looks.
func (d *WSDialer) Dial(ctx context.Context, token string) (Conn, error) {
	if token == "" {
		return nil, ErrNoAccessToken
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse ws url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	h := http.Header{}
	h.Set("Cookie", (&http.Cookie{Name: "access_token", Value: token}).String())

	c, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: h,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial %s: status %d: %w", u.Host, resp.StatusCode, redactURL(err))
		}
		return nil, fmt.Errorf("ws dial %s: %w", u.Host, redactURL(err))
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = maxFrameBytes
	}
	c.SetReadLimit(limit)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

// redactURL drops the request URL (which carries the token) from dial errors.
func redactURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, b, err := w.c.Read(ctx)
	return b, err
}

func (w *wsConn) Write(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w *wsConn) Close() error {
	err := w.c.Close(websocket.StatusNormalClosure, "bye")
	if errors.Is(err, net.ErrClosed) || websocket.CloseStatus(err) != -1 {
		return nil
	}
	return err
}
