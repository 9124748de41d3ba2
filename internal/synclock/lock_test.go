package synclock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gfranco93/cmirror/internal/store"
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

// testManager returns a manager with a controllable clock starting at base.
func testManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	base := time.UnixMilli(1700000000000)
	now := base
	m := NewManager(testDB(t), nil, nil)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestAcquireOnEmptyStore(t *testing.T) {
	m, _ := testManager(t)

	ok, err := m.TryAcquire("A")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("first acquire should succeed and create the record")
	}

	state, err := store.GetChatListSync(m.db)
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.SyncLockID == nil || *state.SyncLockID != "A" {
		t.Errorf("lock owner = %v, want A", state)
	}
}

func TestMutualExclusion(t *testing.T) {
	m, now := testManager(t)

	if ok, _ := m.TryAcquire("A"); !ok {
		t.Fatal("A should acquire")
	}

	*now = now.Add(time.Millisecond)
	ok, err := m.TryAcquire("B")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("B acquired while A's lock is fresh")
	}
}

func TestExpiredLockIsTakenOver(t *testing.T) {
	m, now := testManager(t)

	if ok, _ := m.TryAcquire("A"); !ok {
		t.Fatal("A should acquire")
	}

	// One millisecond shy of expiry: still held.
	*now = now.Add(Expiry - time.Millisecond)
	if ok, _ := m.TryAcquire("B"); ok {
		t.Fatal("B acquired before expiry")
	}

	// At expiry the lock is stale and ownership transfers.
	*now = now.Add(2 * time.Millisecond)
	ok, err := m.TryAcquire("B")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("B should take over the expired lock")
	}

	state, _ := store.GetChatListSync(m.db)
	if *state.SyncLockID != "B" {
		t.Errorf("lock owner = %q, want B", *state.SyncLockID)
	}
}

// A holder cannot re-acquire its own fresh lock; it must wait out the
// expiry like everyone else.
func TestNoSelfReacquisition(t *testing.T) {
	m, now := testManager(t)

	if ok, _ := m.TryAcquire("A"); !ok {
		t.Fatal("A should acquire")
	}
	*now = now.Add(time.Second)
	if ok, _ := m.TryAcquire("A"); ok {
		t.Error("A re-acquired its own fresh lock")
	}
}

func TestReleaseOwnershipGuard(t *testing.T) {
	m, now := testManager(t)

	if ok, _ := m.TryAcquire("A"); !ok {
		t.Fatal("A should acquire")
	}

	// B releasing A's lock is a silent no-op.
	if err := m.Release("B"); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(time.Millisecond)
	if ok, _ := m.TryAcquire("C"); ok {
		t.Error("C acquired after a foreign release; lock should still be held by A")
	}

	// A's own release works.
	if err := m.Release("A"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := m.TryAcquire("C"); !ok {
		t.Error("C should acquire after A released")
	}
}

func TestReleaseWhenUnlocked(t *testing.T) {
	m, _ := testManager(t)

	// Releasing with no record and no lock must not error.
	if err := m.Release("A"); err != nil {
		t.Fatal(err)
	}
}
