// Package synclock coordinates concurrent sync cycles through a single
// time-boxed lock stored on the chat-list sync record. Contention is a
// routine boolean outcome, never an error; expiry is the liveness backstop
// for crashed or hung holders.
package synclock

import (
	"fmt"
	"time"

	"github.com/gfranco93/cmirror/internal/bus"
	"github.com/gfranco93/cmirror/internal/store"
	"go.uber.org/zap"
)

// Expiry is how long a held lock stays live. A holder that runs past it
// silently loses exclusivity to the next acquirer.
const Expiry = 60 * time.Second

// Manager implements the sync-cycle lock over the shared sync record.
type Manager struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a lock manager over the given store.
func NewManager(db *store.DB, b *bus.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{db: db, bus: b, logger: logger, now: time.Now}
}

// TryAcquire attempts to take the sync lock for ownerID. It succeeds when no
// sync record exists yet (the record is created), when the record is
// unlocked, or when the held lock has aged past Expiry. A fresh lock is
// rejected even for its own holder: a cycle cannot re-enter locking without
// waiting out its own lock.
func (m *Manager) TryAcquire(ownerID string) (bool, error) {
	tx, err := m.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin acquire: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := store.GetChatListSync(tx)
	if err != nil {
		return false, fmt.Errorf("load sync record: %w", err)
	}

	now := m.now()
	if cur != nil && cur.SyncLockID != nil && cur.SyncLockAt != nil {
		age := now.UnixMilli() - *cur.SyncLockAt
		if age < Expiry.Milliseconds() {
			return false, nil
		}
		m.logger.Warn("taking over expired sync lock",
			zap.String("previous_owner", *cur.SyncLockID),
			zap.Int64("age_ms", age))
	}

	if err := store.SetSyncLock(tx, ownerID, now.UnixMilli()); err != nil {
		return false, fmt.Errorf("set sync lock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit acquire: %w", err)
	}

	m.publish("sync.lock_acquired", ownerID)
	return true, nil
}

// Release clears the lock if ownerID still holds it. Releasing a lock that
// has since expired and been taken over is a silent no-op, so a timed-out
// holder cannot evict its successor.
func (m *Manager) Release(ownerID string) error {
	released, err := store.ClearSyncLock(m.db, ownerID)
	if err != nil {
		return fmt.Errorf("clear sync lock: %w", err)
	}
	if !released {
		m.logger.Debug("release of unowned sync lock ignored", zap.String("owner", ownerID))
		return nil
	}
	m.publish("sync.lock_released", ownerID)
	return nil
}

func (m *Manager) publish(kind, ownerID string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{Kind: kind, Timestamp: m.now(), Payload: ownerID})
}
