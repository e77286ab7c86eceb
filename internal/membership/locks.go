package membership

import "sync"

// UserLocks serializes active-profile mutation per user: a profile switch and
// a clear-on-last-revoke racing on the same user must not interleave. One
// instance is shared by the membership service and the profile switcher.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewUserLocks creates an empty lock table
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for a user and returns the unlock function.
// Entries are never reclaimed; one idle mutex per seen user is cheaper than
// a reclaim scheme that could hand out a lock someone still holds.
func (l *UserLocks) Lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
