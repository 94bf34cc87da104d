package credstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps values in process memory. Each key holds an atomic
// pointer to an immutable byte slice, so readers never block the writer and
// never see a half-written value.
type MemoryStore struct {
	slots sync.Map // string -> *atomic.Pointer[[]byte]
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) slot(key string) *atomic.Pointer[[]byte] {
	if p, ok := m.slots.Load(key); ok {
		return p.(*atomic.Pointer[[]byte])
	}
	p, _ := m.slots.LoadOrStore(key, &atomic.Pointer[[]byte]{})
	return p.(*atomic.Pointer[[]byte])
}

// Publish implements Store.
func (m *MemoryStore) Publish(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := append([]byte(nil), data...)
	m.slot(key).Store(&stored)
	return nil
}

// Fetch implements Store.
func (m *MemoryStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := m.slots.Load(key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.Ref(key), ErrNotPublished)
	}
	data := p.(*atomic.Pointer[[]byte]).Load()
	if data == nil {
		return nil, fmt.Errorf("%s: %w", m.Ref(key), ErrNotPublished)
	}
	return append([]byte(nil), (*data)...), nil
}

// Revoke implements Store.
func (m *MemoryStore) Revoke(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p, ok := m.slots.Load(key); ok {
		p.(*atomic.Pointer[[]byte]).Store(nil)
	}
	return nil
}

// Ref implements Store.
func (m *MemoryStore) Ref(key string) string {
	return "memory://" + key
}
