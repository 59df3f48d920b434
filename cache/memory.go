// Package cache provides an in-memory sqlcore.Cache and the codec used to
// store results in any cache.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/syssam/sqlcore"
)

type entry struct {
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

// expired reports whether the entry is absent at now.
func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && !now.Before(e.insertedAt.Add(e.ttl))
}

// Memory is an in-memory expiring cache. Writes are last-write-wins and
// expired entries are absent. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// Option configures a Memory cache.
type Option func(*Memory)

// WithClock sets the clock used for expiration. Default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory returns an empty in-memory cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{entries: make(map[string]entry), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements sqlcore.Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.expired(m.now()) {
		return nil, nil
	}
	return e.value, nil
}

// Set implements sqlcore.Cache. The value is copied.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...), insertedAt: m.now(), ttl: ttl}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Delete implements sqlcore.Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// DeletePrefix implements sqlcore.Cache.
func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

// Clear implements sqlcore.Cache.
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (m *Memory) Purge() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ sqlcore.Cache = (*Memory)(nil)
