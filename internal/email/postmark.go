// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package email

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// DefaultPostmarkURL is the Postmark API root.
const DefaultPostmarkURL = "https://api.postmarkapp.com"

// PostmarkClient sends mail through the Postmark HTTP API.
type PostmarkClient struct {
	serverToken string
	from        string
	baseURL     string
	httpClient  *http.Client
}

// PostmarkOption configures a PostmarkClient.
type PostmarkOption func(*PostmarkClient)

// WithHTTPClient overrides http.DefaultClient.
func WithHTTPClient(c *http.Client) PostmarkOption {
	return func(pc *PostmarkClient) {
		pc.httpClient = c
	}
}

// WithBaseURL overrides DefaultPostmarkURL.
func WithBaseURL(u string) PostmarkOption {
	return func(pc *PostmarkClient) {
		if u != "" {
			pc.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// NewPostmarkClient creates a client sending as from.
func NewPostmarkClient(serverToken, from string, opts ...PostmarkOption) (*PostmarkClient, error) {
	if serverToken == "" {
		return nil, oops.Code("EMAIL_CONFIG_INVALID").Errorf("postmark server token is required")
	}
	if from == "" {
		return nil, oops.Code("EMAIL_CONFIG_INVALID").Errorf("sender address is required")
	}
	c := &PostmarkClient{
		serverToken: serverToken,
		from:        from,
		baseURL:     DefaultPostmarkURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody,omitempty"`
	TextBody string `json:"TextBody,omitempty"`
}

type postmarkError struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// Send implements Sender.
func (c *PostmarkClient) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(postmarkEmail{
		From:     c.from,
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").With("operation", "marshal email").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").With("operation", "create request").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").With("operation", "post email").Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode >= http.StatusBadRequest {
		var pe postmarkError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort detail
		_ = json.Unmarshal(raw, &pe)                          //nolint:errcheck // body may not be JSON
		return oops.Code("EMAIL_SEND_FAILED").
			With("status", resp.StatusCode).
			With("postmark_code", pe.ErrorCode).
			Errorf("postmark API error: status %d: %s", resp.StatusCode, pe.Message)
	}
	return nil
}
