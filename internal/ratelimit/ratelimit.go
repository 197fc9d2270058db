// Package ratelimit caps how many jobs one owner may enqueue inside a
// sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits or refuses one more event for owner.
type Limiter interface {
	Allow(ctx context.Context, owner int64) (bool, error)
}

// Memory is a process-local sliding-window limiter.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[int64][]time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{limit: limit, window: window, now: time.Now, hits: make(map[int64][]time.Time)}
}

func (m *Memory) Allow(_ context.Context, owner int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)
	kept := m.hits[owner][:0]
	for _, ts := range m.hits[owner] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= m.limit {
		m.hits[owner] = kept
		return false, nil
	}
	m.hits[owner] = append(kept, now)
	return true, nil
}
