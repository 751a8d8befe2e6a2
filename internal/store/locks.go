package store

import "sync"

// ResourceLocks serializes adapter calls that touch the same logical resource.
// The adapter only guarantees atomicity per call, so read-modify-write
// sequences (append message + bump conversation metadata, lookup-then-create)
// must hold the resource's lock for their whole duration.
type ResourceLocks struct {
	mu    sync.Mutex
	locks map[string]*resourceLock
}

type resourceLock struct {
	mu   sync.Mutex
	refs int
}

func NewResourceLocks() *ResourceLocks {
	return &ResourceLocks{locks: make(map[string]*resourceLock)}
}

// Lock acquires the lock for key and returns the matching unlock. Entries are
// reference counted so the table does not grow with every key ever seen.
func (l *ResourceLocks) Lock(key string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &resourceLock{}
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
