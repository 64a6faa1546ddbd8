package worker

import "sync"

// CaseLocks provides per-case mutual exclusion: a reply arriving from the
// chat layer and a reminder discovered by the same clock pass must not race
// on one case, while unrelated cases proceed in parallel. Entries are
// refcounted so the map does not grow with the historical case count.
type CaseLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewCaseLocks creates the lock table.
func NewCaseLocks() *CaseLocks {
	return &CaseLocks{locks: make(map[string]*lockEntry)}
}

// Do runs fn while holding the lock for the given case.
func (l *CaseLocks) Do(caseID string, fn func()) {
	l.mu.Lock()
	entry, ok := l.locks[caseID]
	if !ok {
		entry = &lockEntry{}
		l.locks[caseID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, caseID)
		}
		l.mu.Unlock()
	}()

	fn()
}
