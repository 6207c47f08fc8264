package lock

import "context"

// Mutex is a channel-based mutual exclusion primitive. Unlike sync.Mutex,
// acquisition can be bounded by a context and attempted without blocking,
// which lets the snapshot read and write paths wait for each other without
// polling.
type Mutex struct {
	ch chan struct{}
}

// NewMutex creates an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{ch: make(chan struct{}, 1)}
}

// Lock acquires the mutex, waiting until it is free or ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock acquires the mutex without blocking. Returns whether it was
// acquired.
func (m *Mutex) TryLock() bool {
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	select {
	case <-m.ch:
	default:
		panic("lock: unlock of unlocked Mutex")
	}
}
