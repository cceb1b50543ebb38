package orchestrator

import "sync"

// caseLocks serializes operations per case id within the process.
type caseLocks struct {
	mu    sync.Mutex
	locks map[string]*caseLock
}

type caseLock struct {
	mu   sync.Mutex
	refs int
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: make(map[string]*caseLock)}
}

// lock blocks until the caller owns id and returns the release function.
func (l *caseLocks) lock(id string) func() {
	l.mu.Lock()

	entry, ok := l.locks[id]
	if !ok {
		entry = &caseLock{}
		l.locks[id] = entry
	}

	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--

		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *caseLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
