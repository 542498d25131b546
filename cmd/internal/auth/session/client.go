package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mladen081/u-m/cmd/identity/ids"
	"github.com/mladen081/u-m/cmd/internal/auth/refresh"
	"github.com/mladen081/u-m/cmd/internal/metrics"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Store is the read side of the credential store.
type Store interface {
	AccessToken() (string, bool)
	RefreshToken() (string, bool)
}

// Client is the authenticated request client.
type Client struct {
	cfg     Config
	http    *http.Client
	store   Store
	coord   *refresh.Coordinator
	log     *slog.Logger
	metrics *metrics.Collector
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	transport http.RoundTripper
	log       *slog.Logger
	metrics   *metrics.Collector
}

// WithTransport sets the underlying round tripper (default http.DefaultTransport).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *clientOptions) { o.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// New constructs a Client.
func New(cfg Config, store Store, coord *refresh.Coordinator, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || coord == nil {
		return nil, fmt.Errorf("session: store and coordinator are required")
	}

	o := clientOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	log := o.log.With("component", "session")

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewLoggingTransport(o.transport, log, o.metrics),
		},
		store:   store,
		coord:   coord,
		log:     log,
		metrics: o.metrics,
	}, nil
}

// Do sends req, refreshing and replaying once on a 401.
//
// The returned error is non-nil only for transport failures, encoding
// failures, and refresh failures (which match ErrSessionTerminated). Any HTTP
// status, including a 401 after the replay, comes back as a Response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	token, _ := c.store.AccessToken()
	resp, err := c.send(ctx, req, body, token)
	if err != nil {
		return nil, err
	}
	// A 401 on an anonymous request is an answer, not an expired session.
	if resp.StatusCode != http.StatusUnauthorized || req.NoRefresh || token == "" {
		return resp, nil
	}

	fresh, err := c.coord.Do(ctx, token, c.refresh)
	if errors.Is(err, refresh.ErrSignedOut) {
		return nil, &RefreshError{Err: err}
	}
	if err != nil {
		return nil, err
	}

	replay, err := c.send(ctx, req, body, fresh)
	if err != nil {
		return nil, err
	}
	replay.Retried = true
	c.metrics.ObserveReplay()
	if replay.StatusCode == http.StatusUnauthorized {
		c.log.Warn("auth.replay.unauthorized", "path", req.Path, "request_id", replay.RequestID)
	}
	return replay, nil
}

// DoJSON sends req and decodes a 2xx body into out (which may be nil).
// Error responses are returned as *APIError.
func (c *Client) DoJSON(ctx context.Context, req *Request, out any) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return resp, err
	}
	if out != nil {
		if err := resp.Decode(out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// Get is a shorthand for a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post is a shorthand for a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Delete is a shorthand for a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) send(ctx context.Context, req *Request, body []byte, token string) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	hreq, err := http.NewRequestWithContext(ctx, method, c.resolve(req.Path, req.Query), rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	rid := ids.RequestID()
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("X-Request-ID", rid)
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}
	if c.cfg.UserAgent != "" {
		hreq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, req.Path, err)
	}

	if echoed := resp.Header.Get("X-Request-ID"); echoed != "" {
		rid = echoed
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		RequestID:  rid,
	}, nil
}

// refresh exchanges the stored refresh token for a new access token. Every
// failure is a *RefreshError.
func (c *Client) refresh(ctx context.Context) (refresh.Result, error) {
	rt, ok := c.store.RefreshToken()
	if !ok {
		return refresh.Result{}, &RefreshError{Err: ErrNoRefreshCredential}
	}

	body, err := json.Marshal(map[string]string{"refresh": rt})
	if err != nil {
		return refresh.Result{}, &RefreshError{Err: err}
	}

	resp, err := c.send(ctx, &Request{Method: http.MethodPost, Path: c.cfg.RefreshPath}, body, "")
	if err != nil {
		return refresh.Result{}, &RefreshError{Err: err}
	}
	if apiErr, ok := resp.Err().(*APIError); ok {
		return refresh.Result{}, &RefreshError{
			Status:  apiErr.Status,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Err:     apiErr,
		}
	}

	var out struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := resp.Decode(&out); err != nil {
		return refresh.Result{}, &RefreshError{Status: resp.StatusCode, Err: err}
	}
	if out.Access == "" {
		return refresh.Result{}, &RefreshError{Status: resp.StatusCode, Err: ErrMalformedRefresh}
	}
	return refresh.Result{Access: out.Access, Refresh: out.Refresh}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func encodeBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return b, nil
}
