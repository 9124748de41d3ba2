package store

// Chat represents a mirrored chat. The ChatWindow fields ride on the same
// row; see GetChatWindow.
type Chat struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	LastMessageAt      int64  `json:"last_message_at"`
	LastMessagePreview string `json:"last_message_preview"`
}

// Message represents a mirrored message. SortKey is the opaque ordering
// token assigned by the remote service.
type Message struct {
	ID      int64  `json:"id"`
	ChatID  string `json:"chat_id"`
	MsgID   string `json:"msg_id"`
	Sender  string `json:"sender"`
	Body    string `json:"body"`
	SortKey string `json:"sort_key"`
	SentAt  int64  `json:"sent_at"`
}

// ChatListSync is the singleton bookkeeping record for chat-list sync,
// keyed by ChatListSyncKey. Cursor and lock fields are nil when unset.
type ChatListSync struct {
	NewestCursor *string `json:"newest_cursor"`
	OldestCursor *string `json:"oldest_cursor"`
	TotalChats   int     `json:"total_chats"`
	LastSyncedAt int64   `json:"last_synced_at"`
	SyncSource   string  `json:"sync_source"`
	SyncLockID   *string `json:"sync_lock_id"`
	SyncLockAt   *int64  `json:"sync_lock_at"`
}

// ChatWindow is the per-chat message-window bookkeeping embedded in a chat
// row. All fields are nil until the first window merge for that chat.
type ChatWindow struct {
	ChatID               string
	NewestMsgSortKey     *string
	OldestMsgSortKey     *string
	MessageCount         *int
	HasCompleteHistory   *bool
	LastFullSyncAt       *int64
	LastMessagesSyncedAt *int64
}

// ChatListSyncPatch is a partial update to the ChatListSync record.
// Nil fields are left untouched. Lock fields are managed separately by
// synclock; resets go through ResetChatListSync.
type ChatListSyncPatch struct {
	NewestCursor *string
	OldestCursor *string
	TotalChats   *int
	LastSyncedAt *int64
	SyncSource   *string
}

// ChatWindowPatch is a partial update to a chat's window fields.
// Nil fields are left untouched; ClearChatWindow handles resets.
type ChatWindowPatch struct {
	NewestMsgSortKey     *string
	OldestMsgSortKey     *string
	MessageCount         *int
	HasCompleteHistory   *bool
	LastFullSyncAt       *int64
	LastMessagesSyncedAt *int64
}
