package diag

import (
	"fmt"

	"github.com/gfranco93/cmirror/internal/store"
)

// Stats summarizes what the mirror currently holds.
type Stats struct {
	ChatCount            int `json:"chat_count"`
	MessageCount         int `json:"message_count"`
	ChatsWithWindows     int `json:"chats_with_windows"`
	ChatsWithFullHistory int `json:"chats_with_full_history"`
}

// Report is the user-facing sync summary: the chat-list sync record plus
// quick mirror statistics.
type Report struct {
	ChatListSync *store.ChatListSync `json:"chat_list_sync"`
	Stats        Stats               `json:"stats"`
}

// Diagnostics returns the current sync state and mirror statistics. Safe to
// call concurrently with a running sync cycle; it only reads.
func (d *Detector) Diagnostics() (*Report, error) {
	state, err := store.GetChatListSync(d.db)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	var s Stats
	if s.ChatCount, err = d.db.CountChats(); err != nil {
		return nil, fmt.Errorf("count chats: %w", err)
	}
	if s.MessageCount, err = d.db.CountAllMessages(); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	err = d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN newest_msg_sort_key IS NOT NULL THEN 1 END),
			COUNT(CASE WHEN COALESCE(has_complete_history, 0) != 0 THEN 1 END)
		FROM chats`).Scan(&s.ChatsWithWindows, &s.ChatsWithFullHistory)
	if err != nil {
		return nil, fmt.Errorf("window stats: %w", err)
	}

	return &Report{ChatListSync: state, Stats: s}, nil
}
