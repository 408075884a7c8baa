package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/iliyamo/product-catalog/internal/model"
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type userEnvelope struct {
	User model.PublicUser `json:"user"`
}

// Login exchanges credentials for the session cookies, which stay in the
// client's jar.
func (c *Client) Login(ctx context.Context, username, password string) (model.PublicUser, error) {
	var out userEnvelope
	err := c.call(ctx, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, &out)
	return out.User, err
}

// Logout revokes the refresh token server side and drops the cookies.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (model.PublicUser, error) {
	var out userEnvelope
	err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	return out.User, err
}

// ListProducts returns one page of the catalog.  A non-empty search uses
// the name filter endpoint.
func (c *Client) ListProducts(ctx context.Context, search string, page, limit int) (model.Page, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/product"
	if search != "" {
		path = "/api/product/all-product"
		q.Set("search", search)
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out model.Page
	err := c.call(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id uint64) error {
	return c.call(ctx, http.MethodDelete, "/api/product/"+strconv.FormatUint(id, 10), nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
