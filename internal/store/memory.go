package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/glyphcaster/internal/document"
)

// Memory is a Store held in memory.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]document.Change
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]document.Change)}
}

// Append implements Store.
func (m *Memory) Append(ctx context.Context, id string, changes []document.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = append(m.docs[id], changes...)
	return nil
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, id string) ([]document.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	changes, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]document.Change, len(changes))
	copy(out, changes)
	return out, nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
