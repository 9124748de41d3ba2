// Package sync runs the sync cycle: acquire the cycle lock, pull pages from
// the remote, ingest them into the store, merge the resulting watermarks and
// release the lock. The ordering discipline (lock before merges, merges
// before release) lives here, not in the components it calls.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gfranco93/cmirror/internal/bus"
	"github.com/gfranco93/cmirror/internal/config"
	"github.com/gfranco93/cmirror/internal/cursor"
	"github.com/gfranco93/cmirror/internal/remote"
	"github.com/gfranco93/cmirror/internal/status"
	"github.com/gfranco93/cmirror/internal/store"
	"github.com/gfranco93/cmirror/internal/synclock"
	"go.uber.org/zap"
)

// Source tags stamped on the sync record by the two cycle triggers.
const (
	SourceScheduled = "scheduled_sync"
	SourceManual    = "manual_sync"
)

// CycleResult summarizes one completed sync cycle.
type CycleResult struct {
	Chats    int `json:"chats"`
	Messages int `json:"messages"`
}

// Engine drives sync cycles against the remote chat service.
type Engine struct {
	db       *store.DB
	merger   *cursor.Merger
	locks    *synclock.Manager
	remote   remote.Client
	machine  *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
	pageSize int
	cancel   context.CancelFunc
}

// NewEngine creates a sync engine.
func NewEngine(db *store.DB, merger *cursor.Merger, locks *synclock.Manager, rc remote.Client, machine *status.Machine, b *bus.Bus, logger *zap.Logger, cfg config.Sync) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:       db,
		merger:   merger,
		locks:    locks,
		remote:   rc,
		machine:  machine,
		bus:      b,
		logger:   logger,
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		pageSize: cfg.PageSize,
	}
}

// Start launches the background sync loop. The first cycle runs immediately.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		e.runScheduled(ctx)
		for {
			select {
			case <-ticker.C:
				e.runScheduled(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the background sync loop.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) runScheduled(ctx context.Context) {
	if _, err := e.RunCycle(ctx, SourceScheduled); err != nil {
		e.logger.Error("scheduled sync cycle failed", zap.Error(err))
	}
}

// RunCycle runs one end-to-end sync cycle. Lock contention is a routine
// outcome: the cycle is skipped with a nil result and no error. Failures
// abandon the cycle without retrying; the lock expiry is the liveness
// backstop if release never happens.
func (e *Engine) RunCycle(ctx context.Context, source string) (*CycleResult, error) {
	ownerID := uuid.New().String()

	ok, err := e.locks.TryAcquire(ownerID)
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		e.logger.Info("sync cycle skipped, another cycle holds the lock", zap.String("source", source))
		e.publish("sync.skipped", source)
		return nil, nil
	}
	defer func() {
		if err := e.locks.Release(ownerID); err != nil {
			e.logger.Warn("release sync lock", zap.Error(err))
		}
	}()

	e.transition(status.Syncing)
	e.publish("sync.cycle_started", source)

	result, err := e.runLocked(ctx, source)
	if err != nil {
		e.transition(status.Degraded)
		e.publish("sync.cycle_failed", err.Error())
		return nil, err
	}

	e.transition(status.Idle)
	e.publish("sync.cycle_completed", *result)
	e.logger.Info("sync cycle completed",
		zap.String("source", source),
		zap.Int("chats", result.Chats),
		zap.Int("messages", result.Messages))
	return result, nil
}

func (e *Engine) runLocked(ctx context.Context, source string) (*CycleResult, error) {
	result := &CycleResult{}

	chats, err := e.syncChatList(ctx, source)
	if err != nil {
		return nil, err
	}
	result.Chats = len(chats)

	for _, chatID := range chats {
		n, err := e.syncChatMessages(ctx, chatID)
		if err != nil {
			return nil, err
		}
		result.Messages += n
	}
	return result, nil
}

// syncChatList pulls chat-list pages and merges the global cursors. It
// always fetches forward from the stored newest cursor; when no backfill has
// ever happened it also fetches one page backward to seed the oldest cursor.
// Returns the ids of chats seen in this cycle.
func (e *Engine) syncChatList(ctx context.Context, source string) ([]string, error) {
	state, err := store.GetChatListSync(e.db)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}

	var seen []string

	newestCursor := ""
	if state != nil && state.NewestCursor != nil {
		newestCursor = *state.NewestCursor
	}
	ids, err := e.ingestChatPage(ctx, newestCursor, remote.Newer, source)
	if err != nil {
		return nil, err
	}
	seen = append(seen, ids...)

	if state == nil || state.OldestCursor == nil {
		oldestCursor := ""
		if state != nil && state.OldestCursor != nil {
			oldestCursor = *state.OldestCursor
		}
		ids, err := e.ingestChatPage(ctx, oldestCursor, remote.Older, source)
		if err != nil {
			return nil, err
		}
		seen = append(seen, ids...)
	}
	return seen, nil
}

func (e *Engine) ingestChatPage(ctx context.Context, cursorToken string, dir remote.Direction, source string) ([]string, error) {
	page, err := e.remote.FetchChatPage(ctx, cursorToken, dir, e.pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetch chat page: %w", err)
	}

	ids := make([]string, 0, len(page.Chats))
	for _, rc := range page.Chats {
		if err := e.db.UpsertChat(&store.Chat{
			ID:                 rc.ID,
			Name:               rc.Name,
			LastMessageAt:      rc.LastMessageAt,
			LastMessagePreview: rc.Preview,
		}); err != nil {
			return nil, fmt.Errorf("upsert chat %s: %w", rc.ID, err)
		}
		ids = append(ids, rc.ID)
	}

	var newest, oldest *string
	if page.NewestCursor != "" {
		newest = &page.NewestCursor
	}
	if page.OldestCursor != "" {
		oldest = &page.OldestCursor
	}
	if err := e.merger.MergeGlobalCursors(newest, oldest, source, nil); err != nil {
		return nil, fmt.Errorf("merge global cursors: %w", err)
	}
	return ids, nil
}

// syncChatMessages pulls one forward message page for a chat (plus one
// backward page when the chat was never backfilled) and merges its window.
func (e *Engine) syncChatMessages(ctx context.Context, chatID string) (int, error) {
	window, err := store.GetChatWindow(e.db, chatID)
	if err != nil {
		return 0, fmt.Errorf("load chat window: %w", err)
	}
	if window == nil {
		// Chat disappeared between the list pass and now; skip.
		return 0, nil
	}

	total := 0

	cursorToken := ""
	if window.NewestMsgSortKey != nil {
		cursorToken = *window.NewestMsgSortKey
	}
	n, err := e.ingestMessagePage(ctx, chatID, cursorToken, remote.Newer)
	if err != nil {
		return 0, err
	}
	total += n

	if window.OldestMsgSortKey == nil {
		n, err := e.ingestMessagePage(ctx, chatID, "", remote.Older)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (e *Engine) ingestMessagePage(ctx context.Context, chatID, cursorToken string, dir remote.Direction) (int, error) {
	page, err := e.remote.FetchMessagePage(ctx, chatID, cursorToken, dir, e.pageSize)
	if err != nil {
		return 0, fmt.Errorf("fetch message page: %w", err)
	}

	for _, rm := range page.Messages {
		if err := e.db.UpsertMessage(&store.Message{
			ChatID:  chatID,
			MsgID:   rm.MsgID,
			Sender:  rm.Sender,
			Body:    rm.Body,
			SortKey: rm.SortKey,
			SentAt:  rm.SentAt,
		}); err != nil {
			return 0, fmt.Errorf("upsert message %s: %w", rm.MsgID, err)
		}
	}

	candidate := cursor.WindowCandidate{}
	if page.NewestSortKey != "" {
		candidate.NewestSortKey = &page.NewestSortKey
	}
	if page.OldestSortKey != "" {
		candidate.OldestSortKey = &page.OldestSortKey
	}
	if page.Complete {
		complete := true
		candidate.HasCompleteHistory = &complete
	}
	if err := e.merger.MergeChatWindow(chatID, candidate); err != nil {
		return 0, fmt.Errorf("merge chat window: %w", err)
	}
	return len(page.Messages), nil
}

func (e *Engine) transition(to status.State) {
	if e.machine == nil {
		return
	}
	// Transitions out of ERROR are daemon-level; ignore invalid moves here.
	_ = e.machine.Transition(to)
}

func (e *Engine) publish(kind string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
