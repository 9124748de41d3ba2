package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gfranco93/cmirror/internal/bus"
	"github.com/gfranco93/cmirror/internal/config"
	"github.com/gfranco93/cmirror/internal/cursor"
	"github.com/gfranco93/cmirror/internal/remote"
	"github.com/gfranco93/cmirror/internal/store"
	"github.com/gfranco93/cmirror/internal/synclock"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeRemote serves canned pages through function fields.
type fakeRemote struct {
	chatPage func(cursor string, dir remote.Direction) *remote.ChatPage
	msgPage  func(chatID, cursor string, dir remote.Direction) *remote.MessagePage
}

func (f *fakeRemote) FetchChatPage(_ context.Context, cursor string, dir remote.Direction, _ int) (*remote.ChatPage, error) {
	return f.chatPage(cursor, dir), nil
}

func (f *fakeRemote) FetchMessagePage(_ context.Context, chatID, cursor string, dir remote.Direction, _ int) (*remote.MessagePage, error) {
	return f.msgPage(chatID, cursor, dir), nil
}

func emptyRemote() *fakeRemote {
	return &fakeRemote{
		chatPage: func(string, remote.Direction) *remote.ChatPage { return &remote.ChatPage{} },
		msgPage:  func(string, string, remote.Direction) *remote.MessagePage { return &remote.MessagePage{} },
	}
}

func testEngine(t *testing.T, db *store.DB, rc remote.Client, b *bus.Bus) *Engine {
	t.Helper()
	merger := cursor.NewMerger(db, b, nil)
	locks := synclock.NewManager(db, b, nil)
	return NewEngine(db, merger, locks, rc, nil, b, nil, config.Sync{IntervalSeconds: 300, PageSize: 10})
}

func TestRunCycleIngestsAndMerges(t *testing.T) {
	db := testDB(t)

	rc := &fakeRemote{
		chatPage: func(cursorToken string, dir remote.Direction) *remote.ChatPage {
			if dir == remote.Newer {
				return &remote.ChatPage{
					Chats: []remote.Chat{
						{ID: "c1", Name: "Alice", LastMessageAt: 2000, Preview: "hi"},
						{ID: "c2", Name: "Bob", LastMessageAt: 1000, Preview: "yo"},
					},
					NewestCursor: "200",
					OldestCursor: "100",
				}
			}
			return &remote.ChatPage{}
		},
		msgPage: func(chatID, cursorToken string, dir remote.Direction) *remote.MessagePage {
			if dir == remote.Newer {
				return &remote.MessagePage{
					Messages: []remote.Message{
						{ChatID: chatID, MsgID: chatID + "-m1", Body: "hello", SortKey: "50", SentAt: 1000},
						{ChatID: chatID, MsgID: chatID + "-m2", Body: "world", SortKey: "60", SentAt: 2000},
					},
					NewestSortKey: "60",
					OldestSortKey: "50",
				}
			}
			return &remote.MessagePage{Complete: true}
		},
	}
	e := testEngine(t, db, rc, nil)

	result, err := e.RunCycle(context.Background(), SourceManual)
	if err != nil {
		t.Fatal(err)
	}
	if result == nil {
		t.Fatal("cycle was skipped unexpectedly")
	}
	if result.Chats != 2 {
		t.Errorf("chats = %d, want 2", result.Chats)
	}
	if result.Messages != 4 {
		t.Errorf("messages = %d, want 4", result.Messages)
	}

	// Global cursors merged and lock released.
	state, err := store.GetChatListSync(db)
	if err != nil {
		t.Fatal(err)
	}
	if state.NewestCursor == nil || *state.NewestCursor != "200" {
		t.Errorf("newest = %v, want 200", state.NewestCursor)
	}
	if state.OldestCursor == nil || *state.OldestCursor != "100" {
		t.Errorf("oldest = %v, want 100", state.OldestCursor)
	}
	if state.TotalChats != 2 {
		t.Errorf("total = %d, want 2", state.TotalChats)
	}
	if state.SyncSource != SourceManual {
		t.Errorf("sync source = %q, want %q", state.SyncSource, SourceManual)
	}
	if state.SyncLockID != nil {
		t.Errorf("lock still held after cycle: %v", *state.SyncLockID)
	}

	// Per-chat windows merged; count is the authoritative recount.
	w, err := store.GetChatWindow(db, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if w.NewestMsgSortKey == nil || *w.NewestMsgSortKey != "60" {
		t.Errorf("c1 newest key = %v, want 60", w.NewestMsgSortKey)
	}
	if w.MessageCount == nil || *w.MessageCount != 2 {
		t.Errorf("c1 message count = %v, want 2", w.MessageCount)
	}
	if w.HasCompleteHistory == nil || !*w.HasCompleteHistory {
		t.Error("c1 should be marked complete after the backfill page")
	}
}

func TestRunCycleSkippedOnContention(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := testEngine(t, db, emptyRemote(), b)

	// Another cycle holds the lock.
	locks := synclock.NewManager(db, nil, nil)
	if ok, err := locks.TryAcquire("other-cycle"); err != nil || !ok {
		t.Fatalf("pre-acquire failed: ok=%v err=%v", ok, err)
	}

	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	result, err := e.RunCycle(context.Background(), SourceManual)
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Errorf("expected skipped cycle, got result %+v", result)
	}

	select {
	case evt := <-ch:
		if evt.Kind != "sync.skipped" {
			t.Errorf("event kind = %q, want sync.skipped", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sync.skipped event")
	}

	// The foreign lock is untouched.
	state, _ := store.GetChatListSync(db)
	if state.SyncLockID == nil || *state.SyncLockID != "other-cycle" {
		t.Errorf("lock owner = %v, want other-cycle", state.SyncLockID)
	}
}

// Two cycles where the second serves worse boundaries: the stored window
// must keep the best of both.
func TestRunCycleNeverRegressesCursors(t *testing.T) {
	db := testDB(t)

	newest, oldest := "200", "100"
	rc := &fakeRemote{
		chatPage: func(cursorToken string, dir remote.Direction) *remote.ChatPage {
			if dir == remote.Newer {
				return &remote.ChatPage{
					Chats:        []remote.Chat{{ID: "c1", Name: "Alice", LastMessageAt: 1000}},
					NewestCursor: newest,
					OldestCursor: oldest,
				}
			}
			return &remote.ChatPage{}
		},
		msgPage: func(string, string, remote.Direction) *remote.MessagePage {
			return &remote.MessagePage{}
		},
	}
	e := testEngine(t, db, rc, nil)

	if _, err := e.RunCycle(context.Background(), SourceScheduled); err != nil {
		t.Fatal(err)
	}

	// Second cycle reports a regressed window.
	newest, oldest = "150", "50"
	if _, err := e.RunCycle(context.Background(), SourceScheduled); err != nil {
		t.Fatal(err)
	}

	state, err := store.GetChatListSync(db)
	if err != nil {
		t.Fatal(err)
	}
	if *state.NewestCursor != "200" {
		t.Errorf("newest = %q, want 200 (no regression)", *state.NewestCursor)
	}
	if *state.OldestCursor != "50" {
		t.Errorf("oldest = %q, want 50 (backfill advanced)", *state.OldestCursor)
	}
}

func TestStartRunsInitialCycleAndStops(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := testEngine(t, db, emptyRemote(), b)

	ch, unsub := b.Subscribe("sync.cycle_completed", 10)
	defer unsub()

	e.Start(context.Background())
	defer e.Stop()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for initial cycle")
	}
}
