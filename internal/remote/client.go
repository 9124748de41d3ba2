// Package remote talks to the upstream paginated chat service. The sync
// engine only depends on the Client interface; the HTTP implementation is
// one provider of it.
package remote

import "context"

// Direction selects which side of a boundary cursor a page is fetched from.
type Direction string

const (
	Newer Direction = "newer"
	Older Direction = "older"
)

// Chat is a chat record as the remote reports it.
type Chat struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LastMessageAt int64  `json:"last_message_at"`
	Preview       string `json:"preview"`
}

// Message is a message record as the remote reports it. SortKey is the
// remote's opaque ordering token.
type Message struct {
	ChatID  string `json:"chat_id"`
	MsgID   string `json:"msg_id"`
	Sender  string `json:"sender"`
	Body    string `json:"body"`
	SortKey string `json:"sort_key"`
	SentAt  int64  `json:"sent_at"`
}

// ChatPage is one page of the remote chat list. The boundary cursors are
// opaque tokens delimiting the fetched window; empty when the page was empty.
type ChatPage struct {
	Chats        []Chat `json:"chats"`
	NewestCursor string `json:"newest_cursor"`
	OldestCursor string `json:"oldest_cursor"`
	HasMore      bool   `json:"has_more"`
}

// MessagePage is one page of a chat's messages. Complete reports that the
// page reached the beginning of the chat's history.
type MessagePage struct {
	Messages      []Message `json:"messages"`
	NewestSortKey string    `json:"newest_sort_key"`
	OldestSortKey string    `json:"oldest_sort_key"`
	Complete      bool      `json:"complete"`
}

// Client fetches pages from the remote chat service. An empty cursor means
// "from the edge" (most recent for Newer, least recent for Older).
type Client interface {
	FetchChatPage(ctx context.Context, cursor string, dir Direction, limit int) (*ChatPage, error)
	FetchMessagePage(ctx context.Context, chatID, cursor string, dir Direction, limit int) (*MessagePage, error)
}
