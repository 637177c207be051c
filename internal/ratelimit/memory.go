// Package ratelimit caps how many upload credentials a client can obtain per sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a sliding-window log kept in process memory. It is safe for concurrent use but
// only limits the requests one instance sees.
type Memory struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a hit for key and reports whether it fits in the window. Rejected calls are
// not recorded.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)
	hits := m.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= m.limit {
		m.hits[key] = hits
		return false, nil
	}
	m.hits[key] = append(hits, now)
	m.sweep(cutoff)
	return true, nil
}

// sweep drops keys whose newest hit left the window.
func (m *Memory) sweep(cutoff time.Time) {
	if len(m.hits) < 1024 {
		return
	}
	for k, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, k)
		}
	}
}
