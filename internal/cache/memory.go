package cache

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/blackout/internal/redact"
)

// Memory is an in-process ResultCache used when Redis is disabled
type Memory struct {
	mu      sync.Mutex
	prefix  string
	ttl     time.Duration
	entries map[string]memoryEntry
	hits    int64
	misses  int64
	now     func() time.Time
}

type memoryEntry struct {
	result  redact.Result
	expires time.Time
}

// NewMemory returns an empty cache. A zero ttl keeps entries forever.
func NewMemory(prefix string, ttl time.Duration) *Memory {
	return &Memory{
		prefix:  prefix,
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, fingerprint, text string) (redact.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(m.prefix, fingerprint, text)
	e, ok := m.entries[key]
	if ok && !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	if !ok {
		m.misses++
		return redact.Result{}, false, nil
	}
	m.hits++
	return e.result, true, nil
}

func (m *Memory) Set(_ context.Context, fingerprint, text string, res redact.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{result: res}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[Key(m.prefix, fingerprint, text)] = e
	return nil
}

func (m *Memory) Stats(context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Stats{Hits: m.hits, Misses: m.misses, TotalKeys: int64(len(m.entries))}
	s.computeHitRate()
	return s, nil
}

func (m *Memory) Close() error { return nil }
