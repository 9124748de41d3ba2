// Package diag provides read-only reconciliation over the sync bookkeeping:
// it compares stored watermarks and counters against the rows actually on
// disk and reports suspected gaps. It is advisory tooling and never mutates
// or corrects anything itself.
package diag

import (
	"fmt"

	"github.com/gfranco93/cmirror/internal/store"
	"go.uber.org/zap"
)

// Detector runs gap detection and diagnostics queries against the store.
type Detector struct {
	db     *store.DB
	logger *zap.Logger
}

// GapReport lists suspected inconsistencies between the sync bookkeeping and
// the local data.
type GapReport struct {
	HasIssues         bool                `json:"has_issues"`
	Issues            []string            `json:"issues"`
	SyncState         *store.ChatListSync `json:"sync_state"`
	DatabaseChatCount int                 `json:"database_chat_count"`
}

// NewDetector creates a detector over the given store.
func NewDetector(db *store.DB, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{db: db, logger: logger}
}

// DetectGaps reconciles the stored sync state against actual row counts and
// returns a human-readable issue list for operator consumption.
func (d *Detector) DetectGaps() (*GapReport, error) {
	chatCount, err := d.db.CountChats()
	if err != nil {
		return nil, fmt.Errorf("count chats: %w", err)
	}
	state, err := store.GetChatListSync(d.db)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	var issues []string

	if chatCount > 0 && state == nil {
		issues = append(issues, fmt.Sprintf("have %d chats but no sync state; chat-list sync has never recorded its progress", chatCount))
	}
	if state != nil && chatCount > 0 {
		if state.NewestCursor == nil {
			issues = append(issues, "no newest chat-list cursor stored; new chats may be missed on incremental sync")
		}
		if state.OldestCursor == nil {
			issues = append(issues, "no oldest chat-list cursor stored; older chats may be missed on backfill")
		}
		if state.TotalChats != chatCount {
			issues = append(issues, fmt.Sprintf("stored chat total %d does not match %d chats in the database", state.TotalChats, chatCount))
		}
	}

	untracked, err := d.countUntrackedChats()
	if err != nil {
		return nil, fmt.Errorf("count untracked chats: %w", err)
	}
	if untracked > 0 {
		issues = append(issues, fmt.Sprintf("%d chats have messages but no cursor tracking", untracked))
	}

	report := &GapReport{
		HasIssues:         len(issues) > 0,
		Issues:            issues,
		SyncState:         state,
		DatabaseChatCount: chatCount,
	}
	if report.HasIssues {
		d.logger.Info("gap detection found issues", zap.Int("count", len(issues)))
	}
	return report, nil
}

// countUntrackedChats counts chats that claim messages but carry no newest
// message sort key.
func (d *Detector) countUntrackedChats() (int, error) {
	var n int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM chats
		WHERE COALESCE(message_count, 0) > 0 AND newest_msg_sort_key IS NULL`).Scan(&n)
	return n, err
}
