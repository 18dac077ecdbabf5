// Package apiclient calls the hub's HTTP request/reply API
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"freshershub/pkg/types"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

// Client talks to the HTTP API at BaseURL
type Client struct {
	BaseURL string
	Token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type historyResponse struct {
	RoomID   string              `json:"roomId"`
	Messages []types.ChatMessage `json:"messages"`
}

// History fetches the room's recent chat messages, oldest first
func (c *Client) History(ctx context.Context, roomID string) ([]types.ChatMessage, error) {
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages", c.BaseURL, url.PathEscape(roomID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return body.Messages, nil
}
