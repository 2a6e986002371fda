package worker

import "sync"

// chatLockTable is the in-process advisory lock backing the
// at-most-one-worker-per-chat_id policy spec.md §4.6 recommends.
// Grounded on the same guarded-map shape as store.MemoryStore, scoped
// down to presence-tracking only (no values worth storing beyond
// "locked").
type chatLockTable struct {
	mu      sync.Mutex
	locked  map[string]struct{}
	initOne sync.Once
}

func (t *chatLockTable) init() {
	t.initOne.Do(func() { t.locked = make(map[string]struct{}) })
}

// TryLock reports whether chatID was successfully locked.
func (t *chatLockTable) TryLock(chatID string) bool {
	t.init()
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.locked[chatID]; busy {
		return false
	}
	t.locked[chatID] = struct{}{}
	return true
}

// Unlock releases a previously acquired lock. Unlocking an unlocked
// chat ID is a no-op.
func (t *chatLockTable) Unlock(chatID string) {
	t.init()
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locked, chatID)
}
