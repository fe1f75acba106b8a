//go:build deadlock

package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// Enabled reports whether lock-order and hold-time checking is compiled in.
const Enabled = true

// Mutex is a deadlock.Mutex. A bus held past the lock timeout, for example
// by a send stuck polling for completion, is reported on stderr.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock.RWMutex.
type RWMutex struct {
	deadlock.RWMutex
}

// SetLockTimeout sets how long a goroutine may wait for a lock before it is
// reported. Zero disables the timeout check.
func SetLockTimeout(d time.Duration) {
	deadlock.Opts.DeadlockTimeout = d
}

// LockTimeout returns the current wait limit.
func LockTimeout() time.Duration {
	return deadlock.Opts.DeadlockTimeout
}
