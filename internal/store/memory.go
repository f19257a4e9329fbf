package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory keeps objects in a mutex-guarded map. It backs local experimentation
// and tests; nothing persists across restarts.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	handles := make([]Handle, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			handles = append(handles, Handle{Key: key})
		}
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Key < handles[j].Key })
	return handles, nil
}

func (m *Memory) Get(ctx context.Context, h Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.objects[h.Key]
	if !exists {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if strings.TrimSpace(key) == "" {
		return Handle{}, fmt.Errorf("object key is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = stored
	return Handle{Key: key}, nil
}

func (m *Memory) Delete(ctx context.Context, h Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, h.Key)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close() error {
	return nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
