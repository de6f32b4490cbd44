package kv

import (
	"context"
	"sync"
)

// Memory keeps entries in process. Used by tests and the memory driver.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entries[key]
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	return Entry{Value: value, Version: entry.Version}, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, baseVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.entries[key].Version
	if current != baseVersion {
		return 0, &ConflictError{Key: key, Expected: baseVersion, Current: current}
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = Entry{Value: stored, Version: current + 1}
	return current + 1, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
