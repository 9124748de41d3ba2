package cursor

import (
	"fmt"

	"github.com/gfranco93/cmirror/internal/store"
	"go.uber.org/zap"
)

// ResetSource is the provenance stamped on the sync record by a reset.
const ResetSource = "cursor_reset"

// ResetResult reports what a cursor reset touched.
type ResetResult struct {
	Success    bool  `json:"success"`
	ChatsReset int   `json:"chats_reset"`
	Timestamp  int64 `json:"timestamp"`
}

// ResetAllCursors clears the global cursors and every chat's window fields,
// forcing the next sync cycle to behave as a full backfill. This is the only
// operation that intentionally regresses watermarks.
func (m *Merger) ResetAllCursors() (*ResetResult, error) {
	tx, err := m.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := m.now().UnixMilli()
	if err := store.ResetChatListSync(tx, ResetSource, now); err != nil {
		return nil, fmt.Errorf("reset chat list sync: %w", err)
	}
	chats, err := store.ClearChatWindows(tx)
	if err != nil {
		return nil, fmt.Errorf("clear chat windows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reset: %w", err)
	}

	m.logger.Info("all sync cursors reset", zap.Int("chats", chats))
	res := &ResetResult{Success: true, ChatsReset: chats, Timestamp: now}
	m.publish("cursor.reset", *res)
	return res, nil
}
