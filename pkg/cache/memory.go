package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a Memory cache created with a non-positive size.
const DefaultMaxEntries = 64

type entry struct {
	key     string
	value   []byte
	expires time.Time
}

// Memory is an in-process LRU cache with a per-entry TTL.
type Memory struct {
	mu    sync.Mutex
	max   int
	ttl   time.Duration
	order *list.List // front is most recently used
	items map[string]*list.Element
	now   func() time.Time
}

// NewMemory returns a cache holding at most maxEntries values, each for ttl.
// A non-positive ttl keeps entries until they are evicted.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		max:   maxEntries,
		ttl:   ttl,
		order: list.New(),
		items: make(map[string]*list.Element),
		now:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, ErrMiss
	}
	e := el.Value.(*entry)
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.remove(el)
		return nil, ErrMiss
	}
	m.order.MoveToFront(el)
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if m.ttl > 0 {
		expires = m.now().Add(m.ttl)
	}
	if el, ok := m.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expires = expires
		m.order.MoveToFront(el)
		return nil
	}
	m.items[key] = m.order.PushFront(&entry{key: key, value: value, expires: expires})
	for m.order.Len() > m.max {
		m.remove(m.order.Back())
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

func (m *Memory) Close() error { return nil }

func (m *Memory) remove(el *list.Element) {
	m.order.Remove(el)
	delete(m.items, el.Value.(*entry).key)
}
