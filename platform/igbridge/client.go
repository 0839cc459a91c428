// Package igbridge is the HTTP client for the local browser-automation
// sidecar that owns the Instagram session. The sidecar exposes a minimal
// contract: list unanswered DMs, send one DM.
package igbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aurora-ops/dmbridge/platform"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

type sendRequest struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

type sendResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type inboxResponse struct {
	Messages []platform.Message `json:"messages"`
}

func (c *Client) Send(ctx context.Context, recipientID, body string) error {
	payload, err := json.Marshal(sendRequest{RecipientID: recipientID, Body: body})
	if err != nil {
		return err
	}
	raw, status, err := c.do(ctx, http.MethodPost, "/dm/send", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("igbridge send http %d: %s", status, truncate(string(raw), 200))
	}
	var out sendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("igbridge send decode: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("igbridge send rejected: %s", out.Error)
	}
	return nil
}

func (c *Client) Unanswered(ctx context.Context) ([]platform.Message, error) {
	raw, status, err := c.do(ctx, http.MethodGet, "/dm/unanswered", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("igbridge inbox http %d: %s", status, truncate(string(raw), 200))
	}
	var out inboxResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("igbridge inbox decode: %w", err)
	}
	return out.Messages, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
