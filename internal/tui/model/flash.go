package model

import (
	"sync"
	"time"
)

// Flash holds one transient notification.
type Flash struct {
	mu      sync.RWMutex
	message string
	isErr   bool
	expires time.Time
}

// Info shows msg for d.
func (f *Flash) Info(msg string, d time.Duration) { f.set(msg, false, d) }

// Error shows msg as an error for d.
func (f *Flash) Error(msg string, d time.Duration) { f.set(msg, true, d) }

func (f *Flash) set(msg string, isErr bool, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.isErr = isErr
	f.expires = time.Now().Add(d)
}

// Get returns the current message, or "" once it expired.
func (f *Flash) Get() (msg string, isErr bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return "", false
	}
	return f.message, f.isErr
}
