// Package client talks to the gallery JSON API on behalf of the terminal
// client.
package client

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
	"sync"
	"time"

	"github.com/vitrina/vitrina/internal/gallery"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore

	// refreshMu serializes token rotation; the server revokes a refresh
	// token on first use.
	refreshMu sync.Mutex
}

func New(baseURL string, tokens TokenStore) *Client {
	if tokens == nil {
		tokens = &MemoryStore{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

// Login signs in and persists the session tokens.
func (c *Client) Login(ctx context.Context, email, password string) (Tokens, error) {
	var t Tokens
	if err := c.send(ctx, http.MethodPost, "/api/auth/login", "", credentials{Email: email, Password: password}, &t); err != nil {
		return Tokens{}, err
	}
	if err := c.tokens.Save(t); err != nil {
		return Tokens{}, fmt.Errorf("save session: %w", err)
	}
	slog.Debug("signed in", "user_id", t.UserID)
	return t, nil
}

// Logout revokes the refresh token on the server and forgets the local
// session. The local session is cleared even when the server is unreachable.
func (c *Client) Logout(ctx context.Context) error {
	t, err := c.tokens.Load()
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	remoteErr := c.send(ctx, http.MethodPost, "/api/auth/logout", "", refreshBody{RefreshToken: t.RefreshToken}, nil)
	if err := c.tokens.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if remoteErr != nil {
		slog.Warn("server logout failed", "error", remoteErr)
	}
	return nil
}

func (c *Client) Me(ctx context.Context) (gallery.User, error) {
	var u gallery.User
	err := c.authorized(ctx, "/api/me", &u)
	return u, err
}

func (c *Client) Videos(ctx context.Context, query string) (gallery.Feed[gallery.Video], error) {
	var feed gallery.Feed[gallery.Video]
	err := c.authorized(ctx, withQuery("/api/videos", query), &feed)
	return feed, err
}

func (c *Client) Posts(ctx context.Context, query string) (gallery.Feed[gallery.Post], error) {
	var feed gallery.Feed[gallery.Post]
	err := c.authorized(ctx, withQuery("/api/posts", query), &feed)
	return feed, err
}

func withQuery(path, q string) string {
	if q == "" {
		return path
	}
	return path + "?" + url.Values{"q": {q}}.Encode()
}

// authorized GETs path with the stored access token, rotating the tokens
// once if the server rejects it.
func (c *Client) authorized(ctx context.Context, path string, out any) error {
	t, err := c.tokens.Load()
	if err != nil {
		return err
	}
	err = c.send(ctx, http.MethodGet, path, t.AccessToken, nil, out)
	if !IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	t, err = c.refresh(ctx, t)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodGet, path, t.AccessToken, nil, out)
}

func (c *Client) refresh(ctx context.Context, stale Tokens) (Tokens, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current, err := c.tokens.Load()
	if err != nil {
		return Tokens{}, err
	}
	if current.AccessToken != stale.AccessToken {
		return current, nil
	}

	var fresh Tokens
	if err := c.send(ctx, http.MethodPost, "/api/auth/refresh", "", refreshBody{RefreshToken: current.RefreshToken}, &fresh); err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			_ = c.tokens.Clear()
			return Tokens{}, ErrNoSession
		}
		return Tokens{}, err
	}
	if err := c.tokens.Save(fresh); err != nil {
		return Tokens{}, fmt.Errorf("save session: %w", err)
	}
	return fresh, nil
}

func (c *Client) send(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
