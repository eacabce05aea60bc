// Package lock provides exclusive, bounded-wait access keyed by offer id.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"settlement-engine/internal/domain"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Manager hands out one weight-1 semaphore per key. Entries are dropped once nobody
// holds or waits on them.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		timeout: timeout,
	}
}

// Acquire blocks until key is free, the manager timeout elapses (ErrBusy) or ctx is done
// (ctx.Err()). The returned release func must be called exactly once.
func (m *Manager) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e := m.ref(key)

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		m.unref(key)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s held longer than %s", domain.ErrBusy, key, m.timeout)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			m.unref(key)
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
