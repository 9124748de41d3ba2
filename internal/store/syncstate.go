package store

import (
	"database/sql"
)

// ChatListSyncKey is the key of the singleton chat-list sync row.
const ChatListSyncKey = "global"

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Sync-state accessors take a Querier so the merger and lock manager can run
// their read-modify-write inside a single transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// GetChatListSync returns the chat-list sync record, or nil when no sync has
// ever run. Absence is a normal state, not an error.
func GetChatListSync(q Querier) (*ChatListSync, error) {
	var s ChatListSync
	err := q.QueryRow(`
		SELECT newest_cursor, oldest_cursor, total_chats, last_synced_at, sync_source, sync_lock_id, sync_lock_at
		FROM chat_list_sync WHERE key = ?`, ChatListSyncKey).
		Scan(&s.NewestCursor, &s.OldestCursor, &s.TotalChats, &s.LastSyncedAt, &s.SyncSource, &s.SyncLockID, &s.SyncLockAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// EnsureChatListSync creates the singleton row if it does not exist yet.
func EnsureChatListSync(q Querier) error {
	_, err := q.Exec(`
		INSERT INTO chat_list_sync (key) VALUES (?)
		ON CONFLICT(key) DO NOTHING`, ChatListSyncKey)
	return err
}

// ApplyChatListSyncPatch writes the non-nil fields of the patch to the
// singleton row, creating it first if needed.
func ApplyChatListSyncPatch(q Querier, p *ChatListSyncPatch) error {
	if err := EnsureChatListSync(q); err != nil {
		return err
	}
	_, err := q.Exec(`
		UPDATE chat_list_sync SET
			newest_cursor = COALESCE(?, newest_cursor),
			oldest_cursor = COALESCE(?, oldest_cursor),
			total_chats = COALESCE(?, total_chats),
			last_synced_at = COALESCE(?, last_synced_at),
			sync_source = COALESCE(?, sync_source)
		WHERE key = ?`,
		p.NewestCursor, p.OldestCursor, p.TotalChats, p.LastSyncedAt, p.SyncSource,
		ChatListSyncKey)
	return err
}

// SetSyncLock stamps the lock owner and acquisition time on the singleton
// row, creating it first if needed.
func SetSyncLock(q Querier, ownerID string, at int64) error {
	if err := EnsureChatListSync(q); err != nil {
		return err
	}
	_, err := q.Exec(`
		UPDATE chat_list_sync SET sync_lock_id = ?, sync_lock_at = ?
		WHERE key = ?`, ownerID, at, ChatListSyncKey)
	return err
}

// ClearSyncLock removes the lock fields only when ownerID still holds the
// lock. Returns false when the owner did not match (a no-op).
func ClearSyncLock(q Querier, ownerID string) (bool, error) {
	res, err := q.Exec(`
		UPDATE chat_list_sync SET sync_lock_id = NULL, sync_lock_at = NULL
		WHERE key = ? AND sync_lock_id = ?`, ChatListSyncKey, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResetChatListSync clears both cursors and the chat total, stamping the
// reset provenance. Lock fields are left untouched.
func ResetChatListSync(q Querier, source string, at int64) error {
	if err := EnsureChatListSync(q); err != nil {
		return err
	}
	_, err := q.Exec(`
		UPDATE chat_list_sync SET
			newest_cursor = NULL,
			oldest_cursor = NULL,
			total_chats = 0,
			last_synced_at = ?,
			sync_source = ?
		WHERE key = ?`, at, source, ChatListSyncKey)
	return err
}

// GetChatWindow returns the window bookkeeping for one chat, or nil when the
// chat does not exist.
func GetChatWindow(q Querier, chatID string) (*ChatWindow, error) {
	w := ChatWindow{ChatID: chatID}
	err := q.QueryRow(`
		SELECT newest_msg_sort_key, oldest_msg_sort_key, message_count,
			has_complete_history, last_full_sync_at, last_messages_synced_at
		FROM chats WHERE id = ?`, chatID).
		Scan(&w.NewestMsgSortKey, &w.OldestMsgSortKey, &w.MessageCount,
			&w.HasCompleteHistory, &w.LastFullSyncAt, &w.LastMessagesSyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ApplyChatWindowPatch writes the non-nil fields of the patch to the chat
// row. Returns false when the chat does not exist.
func ApplyChatWindowPatch(q Querier, chatID string, p *ChatWindowPatch) (bool, error) {
	res, err := q.Exec(`
		UPDATE chats SET
			newest_msg_sort_key = COALESCE(?, newest_msg_sort_key),
			oldest_msg_sort_key = COALESCE(?, oldest_msg_sort_key),
			message_count = COALESCE(?, message_count),
			has_complete_history = COALESCE(?, has_complete_history),
			last_full_sync_at = COALESCE(?, last_full_sync_at),
			last_messages_synced_at = COALESCE(?, last_messages_synced_at)
		WHERE id = ?`,
		p.NewestMsgSortKey, p.OldestMsgSortKey, p.MessageCount,
		p.HasCompleteHistory, p.LastFullSyncAt, p.LastMessagesSyncedAt,
		chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearChatWindows nulls every chat's window fields. Returns the number of
// chats touched.
func ClearChatWindows(q Querier) (int, error) {
	res, err := q.Exec(`
		UPDATE chats SET
			newest_msg_sort_key = NULL,
			oldest_msg_sort_key = NULL,
			message_count = NULL,
			has_complete_history = NULL,
			last_full_sync_at = NULL,
			last_messages_synced_at = NULL`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountChatsIn is CountChats usable inside a transaction.
func CountChatsIn(q Querier) (int, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&n)
	return n, err
}

// CountMessagesIn is CountMessages usable inside a transaction.
func CountMessagesIn(q Querier, chatID string) (int, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&n)
	return n, err
}
