package syncutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMutexSerializes(t *testing.T) {
	t.Parallel()

	var mu Mutex
	var wg sync.WaitGroup
	counter := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				mu.Lock()
				counter++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, counter)
}

func TestRWMutexReaders(t *testing.T) {
	t.Parallel()

	var mu RWMutex
	mu.RLock()
	mu.RLock()
	mu.RUnlock()
	mu.RUnlock()
	mu.Lock()
	mu.Unlock()
}

func TestLockTimeout(t *testing.T) {
	prev := LockTimeout()
	t.Cleanup(func() { SetLockTimeout(prev) })

	SetLockTimeout(3 * time.Second)
	if Enabled {
		assert.Equal(t, 3*time.Second, LockTimeout())
	} else {
		assert.Zero(t, LockTimeout())
	}
}
