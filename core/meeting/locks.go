package meeting

import "sync"

// keyedMutex serializes roster and schedule mutations per meeting id,
// replacing the old last-writer-wins behavior on concurrent allocate/remove.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release func. Entries are
// reference-counted and evicted once uncontended, so the table never outgrows
// the number of meetings being mutated at the same time.
func (km *keyedMutex) lock(key string) (unlock func()) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = new(lockEntry)
		km.locks[key] = e
	}
	e.refs++
	km.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		km.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
