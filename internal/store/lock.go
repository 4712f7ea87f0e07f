package store

import (
	"sync"
	"sync/atomic"
)

// poisonMutex is a sync.Mutex that remembers when a holder panicked.
// Once poisoned, every later acquisition fails with ErrLockPoisoned.
type poisonMutex struct {
	mu       sync.Mutex
	poisoned atomic.Bool
}

// do runs fn while holding the lock.
func (m *poisonMutex) do(fn func() error) error {
	m.mu.Lock()
	if m.poisoned.Load() {
		m.mu.Unlock()
		return ErrLockPoisoned
	}
	panicking := true
	defer func() {
		if panicking {
			m.poisoned.Store(true)
		}
		m.mu.Unlock()
	}()
	err := fn()
	panicking = false
	return err
}

// poisonRWMutex is the reader/writer variant of poisonMutex. Only a panic
// under the write lock poisons it; readers cannot leave the guarded state
// half-modified.
type poisonRWMutex struct {
	mu       sync.RWMutex
	poisoned atomic.Bool
}

func (m *poisonRWMutex) read(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.poisoned.Load() {
		return ErrLockPoisoned
	}
	return fn()
}

func (m *poisonRWMutex) write(fn func() error) error {
	m.mu.Lock()
	if m.poisoned.Load() {
		m.mu.Unlock()
		return ErrLockPoisoned
	}
	panicking := true
	defer func() {
		if panicking {
			m.poisoned.Store(true)
		}
		m.mu.Unlock()
	}()
	err := fn()
	panicking = false
	return err
}

// writeIgnoringPoison runs fn under the write lock even when the lock is
// poisoned. It is only used to release resources on shutdown.
func (m *poisonRWMutex) writeIgnoringPoison(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}
