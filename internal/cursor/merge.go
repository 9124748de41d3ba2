package cursor

import (
	"fmt"
	"time"

	"github.com/gfranco93/cmirror/internal/bus"
	"github.com/gfranco93/cmirror/internal/store"
	"go.uber.org/zap"
)

// Merger applies candidate watermarks to the stored sync state. A stored
// boundary is only ever replaced by a strictly better candidate: newest moves
// forward, oldest moves backward. Worse candidates are dropped silently;
// that is the mechanism's normal self-protection, not a failure.
type Merger struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// WindowCandidate carries the optional inputs of one chat-window merge.
// Nil fields were not supplied by the caller.
type WindowCandidate struct {
	NewestSortKey      *string
	OldestSortKey      *string
	MessageCount       *int
	HasCompleteHistory *bool
}

// GlobalMerged is the bus payload published after a chat-list merge.
type GlobalMerged struct {
	SyncSource     string
	AdvancedNewest bool
	AdvancedOldest bool
	TotalChats     int
}

// WindowMerged is the bus payload published after a chat-window merge.
type WindowMerged struct {
	ChatID         string
	AdvancedNewest bool
	AdvancedOldest bool
	MessageCount   int
}

// NewMerger creates a merger over the given store.
func NewMerger(db *store.DB, b *bus.Bus, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{db: db, bus: b, logger: logger, now: time.Now}
}

// MergeGlobalCursors merges candidate chat-list boundaries into the global
// sync record, creating it on first use. An omitted total is replaced by an
// authoritative recount of stored chats so the persisted count never goes
// stale. last_synced_at and sync_source are stamped unconditionally; they
// record that the call happened, they are not watermarks.
func (m *Merger) MergeGlobalCursors(newest, oldest *string, syncSource string, total *int) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := store.GetChatListSync(tx)
	if err != nil {
		return fmt.Errorf("load chat list sync: %w", err)
	}

	patch := &store.ChatListSyncPatch{}
	advancedNewest := false
	advancedOldest := false

	if newest != nil && (cur == nil || cur.NewestCursor == nil || Compare(*newest, *cur.NewestCursor) > 0) {
		patch.NewestCursor = newest
		advancedNewest = true
	}
	if oldest != nil && (cur == nil || cur.OldestCursor == nil || Compare(*oldest, *cur.OldestCursor) < 0) {
		patch.OldestCursor = oldest
		advancedOldest = true
	}

	if total == nil {
		n, err := store.CountChatsIn(tx)
		if err != nil {
			return fmt.Errorf("recount chats: %w", err)
		}
		total = &n
	}
	patch.TotalChats = total

	now := m.now().UnixMilli()
	patch.LastSyncedAt = &now
	patch.SyncSource = &syncSource

	if err := store.ApplyChatListSyncPatch(tx, patch); err != nil {
		return fmt.Errorf("apply chat list patch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}

	m.publish("cursor.merged_global", GlobalMerged{
		SyncSource:     syncSource,
		AdvancedNewest: advancedNewest,
		AdvancedOldest: advancedOldest,
		TotalChats:     *total,
	})
	return nil
}

// MergeChatWindow merges candidate message-window boundaries for one chat.
// An unknown chatID is a recoverable no-op, logged and swallowed.
//
// Whenever any sync-activity input is present (a sort key or a count), the
// stored message_count is recomputed from the messages actually on disk and
// the caller-supplied count is discarded. A true HasCompleteHistory also
// stamps last_full_sync_at.
func (m *Merger) MergeChatWindow(chatID string, c WindowCandidate) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	w, err := store.GetChatWindow(tx, chatID)
	if err != nil {
		return fmt.Errorf("load chat window: %w", err)
	}
	if w == nil {
		m.logger.Warn("window merge for unknown chat", zap.String("chat_id", chatID))
		return nil
	}

	patch := &store.ChatWindowPatch{}
	advancedNewest := false
	advancedOldest := false

	if c.NewestSortKey != nil && (w.NewestMsgSortKey == nil || Compare(*c.NewestSortKey, *w.NewestMsgSortKey) > 0) {
		patch.NewestMsgSortKey = c.NewestSortKey
		advancedNewest = true
	}
	if c.OldestSortKey != nil && (w.OldestMsgSortKey == nil || Compare(*c.OldestSortKey, *w.OldestMsgSortKey) < 0) {
		patch.OldestMsgSortKey = c.OldestSortKey
		advancedOldest = true
	}

	count := -1
	if c.MessageCount != nil || c.NewestSortKey != nil || c.OldestSortKey != nil {
		n, err := store.CountMessagesIn(tx, chatID)
		if err != nil {
			return fmt.Errorf("recount messages: %w", err)
		}
		count = n
		patch.MessageCount = &n
	}

	now := m.now().UnixMilli()
	if c.HasCompleteHistory != nil {
		patch.HasCompleteHistory = c.HasCompleteHistory
		if *c.HasCompleteHistory {
			patch.LastFullSyncAt = &now
		}
	}
	patch.LastMessagesSyncedAt = &now

	if _, err := store.ApplyChatWindowPatch(tx, chatID, patch); err != nil {
		return fmt.Errorf("apply chat window patch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}

	m.publish("cursor.merged_window", WindowMerged{
		ChatID:         chatID,
		AdvancedNewest: advancedNewest,
		AdvancedOldest: advancedOldest,
		MessageCount:   count,
	})
	return nil
}

func (m *Merger) publish(kind string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{Kind: kind, Timestamp: m.now(), Payload: payload})
}
