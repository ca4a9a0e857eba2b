package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryCounterStore tracks rolling-window counters in process memory.
// Single-instance only: a multi-instance deployment must use the redis store
// so limits hold cluster-wide.
type InMemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

type counter struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// WithClock overrides the time source; used by tests to cross window
// boundaries deterministically.
func (s *InMemoryCounterStore) WithClock(now func() time.Time) *InMemoryCounterStore {
	s.now = now
	return s
}

func (s *InMemoryCounterStore) Count(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.roll(key)
	if c == nil {
		return 0, s.now().Add(window), nil
	}
	return c.count, c.windowStart.Add(c.window), nil
}

func (s *InMemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.roll(key)
	if c == nil {
		c = &counter{windowStart: s.now(), window: window}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.windowStart.Add(c.window), nil
}

func (s *InMemoryCounterStore) Decr(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.roll(key)
	if c == nil || c.count == 0 {
		return nil
	}
	c.count--
	return nil
}

// roll expires the counter when its window has elapsed. Must be called while
// holding s.mu.
func (s *InMemoryCounterStore) roll(key string) *counter {
	c, ok := s.counters[key]
	if !ok {
		return nil
	}
	if s.now().Sub(c.windowStart) >= c.window {
		delete(s.counters, key)
		return nil
	}
	return c
}
