// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

// Package client is a Go client for the Doorman HTTP API. A Client keeps
// the session cookie in its own jar, so one Client is one signed-in user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// User is the public view of an account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats is the admin stats payload.
type Stats struct {
	Message        string `json:"message"`
	Users          int64  `json:"users"`
	Admins         int64  `json:"admins"`
	ActiveSessions int64  `json:"activeSessions"`
}

type message struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("doorman: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("doorman: %d %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client talks to one Doorman server.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its Jar must be non-nil
// for sessions to persist.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.Code("CLIENT_INVALID_URL").With("base_url", baseURL).Errorf("base URL must be absolute")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, oops.Code("CLIENT_INIT_FAILED").Wrap(err)
	}
	c := &Client{
		base: base,
		http: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Register creates an account and signs in. password may be empty.
func (c *Client) Register(ctx context.Context, username, email, password string) (*User, error) {
	var u User
	body := map[string]string{"username": username, "email": email}
	if password != "" {
		body["password"] = password
	}
	if err := c.do(ctx, http.MethodPost, "/api/register", nil, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login signs in with a password.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPost, "/api/login", nil, map[string]string{"username": username, "password": password}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RequestMagicLink asks the server to email a login link.
func (c *Client) RequestMagicLink(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/magic-link", nil, map[string]string{"email": email}, nil)
}

// VerifyMagicLink redeems a magic-link token and signs in.
func (c *Client) VerifyMagicLink(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/verify", url.Values{"token": {token}}, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ProbeResetToken reports whether a reset token is still valid without
// using it up.
func (c *Client) ProbeResetToken(ctx context.Context, token string) error {
	q := url.Values{"token": {token}, "type": {"reset-password"}}
	return c.do(ctx, http.MethodGet, "/api/verify", q, nil, nil)
}

// ForgotPassword requests a reset email. The answer is the same whether
// or not the address is registered.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/forgot-password", nil, map[string]string{"email": email}, nil)
}

// ResetPassword sets a new password with a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, "/api/reset-password", nil, map[string]string{"token": token, "password": password}, nil)
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil, nil)
}

// CurrentUser returns the signed-in user, or nil when there is no valid
// session.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/api/user", nil, nil, &u)
	if StatusOf(err) == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AdminStats fetches the admin dashboard counters.
func (c *Client) AdminStats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/api/admin/stats", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return oops.Code("CLIENT_ENCODE_FAILED").With("path", path).Wrap(err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return oops.Code("CLIENT_REQUEST_FAILED").With("path", path).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return oops.Code("CLIENT_REQUEST_FAILED").With("path", path).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return oops.Code("CLIENT_READ_FAILED").With("path", path).Wrap(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var m message
		if json.Unmarshal(raw, &m) == nil && m.Message != "" {
			apiErr.Message = m.Message
		}
		return oops.Code("CLIENT_API_ERROR").
			With("path", path).
			With("status", resp.StatusCode).
			Wrap(apiErr)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return oops.Code("CLIENT_DECODE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
