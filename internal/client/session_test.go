package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts only the "fresh" access cookie.  Refresh blocks on gate
// so tests can pile up concurrent callers.
type fakeAPI struct {
	refreshCalls atomic.Int32
	refreshOK    bool
	gate         chan struct{}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case refreshPath:
		f.refreshCalls.Add(1)
		<-f.gate
		if ck, err := r.Cookie("refreshToken"); !f.refreshOK || err != nil || ck.Value != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "fresh", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r2", Path: "/", HttpOnly: true})
		w.WriteHeader(http.StatusOK)
	case "/api/auth/login":
		http.SetCookie(w, &http.Cookie{Name: "accessToken", Value: "fresh", Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/", HttpOnly: true})
		_, _ = io.WriteString(w, `{"user":{"id":1,"username":"ann","role_id":1,"role":"ADMIN","landing":"/products"}}`)
	default:
		if ck, err := r.Cookie("accessToken"); err != nil || ck.Value != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid token"}`)
			return
		}
		switch {
		case r.URL.Path == "/api/auth/me":
			_, _ = io.WriteString(w, `{"user":{"id":1,"username":"ann","role_id":1,"role":"ADMIN","landing":"/products"}}`)
		case r.URL.Path == "/api/product/all-product":
			q := r.URL.Query()
			_, _ = io.WriteString(w, `{"data":[],"total":0,"totalPages":0,"page":`+q.Get("page")+`,"limit":`+q.Get("limit")+`}`)
		case r.URL.Path == "/api/product/9":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"product 9 not found"}`)
		default:
			body, _ := io.ReadAll(r.Body)
			_, _ = w.Write(body)
		}
	}
}

func newStaleClient(t *testing.T, api *fakeAPI, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	c.SetCookies([]*http.Cookie{
		{Name: "accessToken", Value: "stale"},
		{Name: "refreshToken", Value: "r1"},
	})
	return c
}

func get(t *testing.T, c *Client, path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, c.URL(path), nil)
	require.NoError(t, err)
	return c.Do(req)
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 8
	api := &fakeAPI{refreshOK: true, gate: make(chan struct{})}
	c := newStaleClient(t, api)

	var wg sync.WaitGroup
	codes := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := get(t, c, "/api/product")
			errs[i] = err
			if err == nil {
				codes[i] = resp.StatusCode
				drain(resp)
			}
		}(i)
	}

	require.Eventually(t, func() bool { return c.pending() == n-1 }, 5*time.Second, 5*time.Millisecond)
	close(api.gate)
	wg.Wait()

	assert.Equal(t, int32(1), api.refreshCalls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, http.StatusOK, codes[i])
	}
	assert.Equal(t, 0, c.pending())
}

func TestDo_FailedRefreshRejectsEveryCaller(t *testing.T) {
	const n = 5
	var expired atomic.Int32
	api := &fakeAPI{refreshOK: false, gate: make(chan struct{})}
	c := newStaleClient(t, api, OnSessionExpired(func() { expired.Add(1) }))

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := get(t, c, "/api/product")
			if resp != nil {
				drain(resp)
			}
			errs[i] = err
		}(i)
	}

	require.Eventually(t, func() bool { return c.pending() == n-1 }, 5*time.Second, 5*time.Millisecond)
	close(api.gate)
	wg.Wait()

	assert.Equal(t, int32(1), api.refreshCalls.Load())
	assert.Equal(t, int32(1), expired.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrSessionExpired)
	}
}

func TestDo_ReplaysRequestBody(t *testing.T) {
	api := &fakeAPI{refreshOK: true, gate: make(chan struct{})}
	close(api.gate)
	c := newStaleClient(t, api)

	req, err := http.NewRequest(http.MethodPost, c.URL("/api/echo"), io.NopCloser(strings.NewReader("payload")))
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, int32(1), api.refreshCalls.Load())
}

func TestDo_SequentialRefreshesAfterIdle(t *testing.T) {
	api := &fakeAPI{refreshOK: true, gate: make(chan struct{})}
	close(api.gate)
	c := newStaleClient(t, api)

	resp, err := get(t, c, "/api/product")
	require.NoError(t, err)
	drain(resp)

	c.SetCookies([]*http.Cookie{{Name: "accessToken", Value: "stale"}, {Name: "refreshToken", Value: "r1"}})
	resp, err = get(t, c, "/api/product")
	require.NoError(t, err)
	drain(resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), api.refreshCalls.Load())
}

func TestDo_RefreshPathIsNotRetried(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	close(api.gate)
	c := newStaleClient(t, api)

	req, err := http.NewRequest(http.MethodPost, c.URL(refreshPath), nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	drain(resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), api.refreshCalls.Load(), "only the explicit call")
}

func TestLogin_BadCredentialsUnderPathPrefix(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	close(api.gate)
	mux := http.NewServeMux()
	mux.Handle("/gw/", http.StripPrefix("/gw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/login" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid credentials"}`)
			return
		}
		api.ServeHTTP(w, r)
	})))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL + "/gw")
	require.NoError(t, err)
	_, err = c.Login(context.Background(), "ann", "wrong")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, int32(0), api.refreshCalls.Load())
}

func TestDo_CancelledWaiter(t *testing.T) {
	api := &fakeAPI{refreshOK: true, gate: make(chan struct{})}
	c := newStaleClient(t, api)

	go func() {
		resp, err := get(t, c, "/api/product")
		if err == nil {
			drain(resp)
		}
	}()
	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/api/product"), nil)
		resp, err := c.Do(req)
		if resp != nil {
			drain(resp)
		}
		errc <- err
	}()
	require.Eventually(t, func() bool { return c.pending() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	assert.True(t, errors.Is(<-errc, context.Canceled))
	close(api.gate)
}

func TestLoginAndMe(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	close(api.gate)
	srv := httptest.NewServer(api)
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	u, err := c.Login(context.Background(), "ann", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "/products", u.Landing)

	names := map[string]string{}
	for _, ck := range c.Cookies() {
		names[ck.Name] = ck.Value
	}
	assert.Equal(t, map[string]string{"accessToken": "fresh", "refreshToken": "r1"}, names)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ann", me.Username)
}

func TestListAndDelete(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	close(api.gate)
	srv := httptest.NewServer(api)
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	c.SetCookies([]*http.Cookie{{Name: "accessToken", Value: "fresh"}})

	page, err := c.ListProducts(context.Background(), "lamp", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 5, page.Limit)

	err = c.DeleteProduct(context.Background(), 9)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "product 9 not found", apiErr.Message)
}

func TestListProducts_ExpiredSession(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{})}
	close(api.gate)
	srv := httptest.NewServer(api)
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.ListProducts(context.Background(), "", 1, 10)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
}
