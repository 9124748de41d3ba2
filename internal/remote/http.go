package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient implements Client against the remote's REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient creates a client for the given base URL using bearer auth.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchChatPage fetches one page of the remote chat list.
func (c *HTTPClient) FetchChatPage(ctx context.Context, cursor string, dir Direction, limit int) (*ChatPage, error) {
	var page ChatPage
	if err := c.get(ctx, "/v1/chats", pageQuery(cursor, dir, limit), &page); err != nil {
		return nil, fmt.Errorf("fetch chat page: %w", err)
	}
	return &page, nil
}

// FetchMessagePage fetches one page of a chat's messages.
func (c *HTTPClient) FetchMessagePage(ctx context.Context, chatID, cursor string, dir Direction, limit int) (*MessagePage, error) {
	var page MessagePage
	path := "/v1/chats/" + url.PathEscape(chatID) + "/messages"
	if err := c.get(ctx, path, pageQuery(cursor, dir, limit), &page); err != nil {
		return nil, fmt.Errorf("fetch message page for chat %s: %w", chatID, err)
	}
	return &page, nil
}

func pageQuery(cursor string, dir Direction, limit int) url.Values {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	q.Set("direction", string(dir))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
