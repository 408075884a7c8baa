// Package client is the Go session client of the catalog API.  It keeps
// the auth cookies in a jar and, when a call comes back 401, runs exactly
// one refresh for every caller that hit the 401 meanwhile, then replays
// each of them once.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/product-catalog/internal/logger"
)

// ErrSessionExpired is returned when the refresh token is gone or
// rejected.  The caller must log in again.
var ErrSessionExpired = errors.New("session expired")

const refreshPath = "/api/auth/refresh"

type state int

const (
	stateIdle state = iota
	stateRefreshing
)

// Client wraps *http.Client.  The zero value is not usable; call New.
type Client struct {
	base *url.URL
	hc   *http.Client
	log  *logger.Logger

	onExpired func()

	mu      sync.Mutex
	state   state
	waiters []chan error
}

type Option func(*Client)

// WithHTTPClient replaces the transport client.  Its Jar is replaced by a
// cookie jar when nil.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

func WithLogger(l *logger.Logger) Option { return func(c *Client) { c.log = l } }

// OnSessionExpired registers fn to run once per failed refresh, the
// equivalent of sending the user back to the login page.
func OnSessionExpired(fn func()) Option { return func(c *Client) { c.onExpired = fn } }

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", baseURL)
	}
	c := &Client{base: u, log: logger.Nop()}
	for _, o := range opts {
		o(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 30 * time.Second}
	}
	if c.hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.hc.Jar = jar
	}
	c.log = c.log.Named("client")
	return c, nil
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	return c.base.String() + "/" + strings.TrimLeft(path, "/")
}

// Cookies returns the cookies the jar holds for the API.
func (c *Client) Cookies() []*http.Cookie { return c.hc.Jar.Cookies(c.base) }

// SetCookies seeds the jar, e.g. from a saved session.
func (c *Client) SetCookies(cookies []*http.Cookie) { c.hc.Jar.SetCookies(c.base, cookies) }

// Do sends req.  On 401 it waits for the shared refresh and replays req
// once; a second 401 is returned as is.  Request bodies are buffered so
// they can be replayed.  Login, register, logout and refresh are never
// retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || c.isAuthPath(req.URL.Path) {
		return resp, err
	}
	drain(resp)

	if err := c.refresh(req.Context()); err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return c.hc.Do(retry)
}

// refresh is single-flight: the first caller moves the client to
// stateRefreshing and performs the call; callers arriving meanwhile queue
// and receive the same outcome.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateRefreshing {
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.state = stateRefreshing
	c.mu.Unlock()

	err := c.callRefresh(context.WithoutCancel(ctx))

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.state = stateIdle
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	if err != nil {
		c.log.Warn("session refresh failed", zap.Int("waiters", len(waiters)), zap.Error(err))
		if c.onExpired != nil {
			c.onExpired()
		}
		return err
	}
	c.log.Debug("session refreshed", zap.Int("waiters", len(waiters)))
	return nil
}

func (c *Client) callRefresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(refreshPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return ErrSessionExpired
	}
	return nil
}

// pending reports how many callers wait for the running refresh.
func (c *Client) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// isAuthPath reports endpoints whose 401 means bad credentials rather
// than an expired access token.  p is matched below the base URL's path.
func (c *Client) isAuthPath(p string) bool {
	prefix := strings.TrimRight(c.base.Path, "/")
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	switch strings.TrimPrefix(p, prefix) {
	case refreshPath, "/api/auth/login", "/api/auth/register", "/api/auth/logout":
		return true
	}
	return false
}

func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	b, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(b)), nil }
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
