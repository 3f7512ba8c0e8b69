package queue

import "sync"

// lockTable hands out one mutex per queue id. Entries are reference counted
// and dropped once nobody holds or waits on them, so idle queues cost nothing.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*queueLock
}

type queueLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*queueLock)}
}

// lock blocks until the caller holds id's mutex and returns its release func.
func (t *lockTable) lock(id string) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &queueLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}

// size returns the number of live entries.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
