package service

import "sync"

// tokenLocker serializes mutations per session token. Entries are reference
// counted and removed once the last holder unlocks, so the map stays bounded
// by the number of in-flight requests rather than the number of tokens seen.
type tokenLocker struct {
	mu    sync.Mutex
	locks map[string]*tokenLock
}

type tokenLock struct {
	mu   sync.Mutex
	refs int
}

func newTokenLocker() *tokenLocker {
	return &tokenLocker{locks: make(map[string]*tokenLock)}
}

// Lock acquires the mutex for key and returns its release function.
func (l *tokenLocker) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &tokenLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
