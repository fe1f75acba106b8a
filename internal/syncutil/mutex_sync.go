//go:build !deadlock

// Package syncutil holds the mutexes that guard bus access, detection caches
// and polling state. Plain sync types are used unless the module is built
// with -tags=deadlock, which swaps in github.com/sasha-s/go-deadlock.
package syncutil

import (
	"sync"
	"time"
)

// Enabled reports whether lock-order and hold-time checking is compiled in.
const Enabled = false

// Mutex is a sync.Mutex.
//
//nolint:gocritic // embedding exposes Lock/Unlock
type Mutex struct {
	sync.Mutex
}

// RWMutex is a sync.RWMutex.
//
//nolint:gocritic // embedding exposes Lock/Unlock
type RWMutex struct {
	sync.RWMutex
}

// SetLockTimeout is a no-op without the deadlock tag.
func SetLockTimeout(time.Duration) {}

// LockTimeout is always zero without the deadlock tag.
func LockTimeout() time.Duration {
	return 0
}
