package store

import (
	"context"
	"errors"
	"sync"
)

// Memory is an in-process Store for development and tests. It is constructed
// explicitly and injected, so every test gets its own isolated instance.
type Memory struct {
	mu   sync.Mutex
	kv   map[string][]byte
	sets map[string]map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		kv:   make(map[string][]byte),
		sets: make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.kv[key] = v
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *Memory) SAdd(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	if _, exists := s[member]; exists {
		return false, nil
	}
	s[member] = struct{}{}
	return true, nil
}

func (m *Memory) SRem(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[key]; ok {
		delete(s, member)
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(s))
	for member := range s {
		out = append(out, member)
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, key string, fn func(old []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := fn(m.kv[key])
	if err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}
	v := make([]byte, len(next))
	copy(v, next)
	m.kv[key] = v
	return nil
}
