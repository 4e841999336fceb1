// Package locks serializes investigation work per vanpool. Concurrent
// Investigate calls for the same vanpool must not interleave; the second
// caller fails fast instead of queueing behind the first.
package locks

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned by Acquire when the vanpool is already being worked on.
var ErrHeld = errors.New("vanpool lock already held")

// Locker serializes investigation cycles per vanpool.
type Locker interface {
	// Acquire takes the lock for vanpoolID or returns ErrHeld. The returned
	// release function is idempotent.
	Acquire(ctx context.Context, vanpoolID string) (release func(), err error)
}

// InProcess is a Locker for a single-node deployment.
type InProcess struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewInProcess creates an empty in-process locker.
func NewInProcess() *InProcess {
	return &InProcess{held: make(map[string]struct{})}
}

func (l *InProcess) Acquire(ctx context.Context, vanpoolID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[vanpoolID]; ok {
		return nil, ErrHeld
	}
	l.held[vanpoolID] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, vanpoolID)
			l.mu.Unlock()
		})
	}
	return release, nil
}

var _ Locker = (*InProcess)(nil)
