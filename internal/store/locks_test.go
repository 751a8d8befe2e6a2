package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceLocks_SerializesSameKey(t *testing.T) {
	locks := NewResourceLocks()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("conversation:c1")
			defer unlock()
			counter++ // would race without the lock
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestResourceLocks_IndependentKeys(t *testing.T) {
	locks := NewResourceLocks()

	unlockA := locks.Lock("conversation:a")
	// A different key must not block.
	unlockB := locks.Lock("conversation:b")
	unlockB()
	unlockA()
}

func TestResourceLocks_EntriesAreReleased(t *testing.T) {
	locks := NewResourceLocks()

	unlock := locks.Lock("ticket:t1")
	unlock()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
