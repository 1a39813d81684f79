package filerepo

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps files in a map.
type Memory struct {
	mu    sync.RWMutex
	files map[string]File
}

// NewMemory returns an empty Memory repository.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]File)}
}

// Put stores a copy of f.
func (m *Memory) Put(_ context.Context, key string, f File) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.Data = append([]byte(nil), f.Data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = f
	return nil
}

// Get returns a copy of the file.
func (m *Memory) Get(_ context.Context, key string) (File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[key]
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, key)
	}
	f.Data = append([]byte(nil), f.Data...)
	return f, nil
}

// Delete removes the file.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

// Exists reports whether key is stored.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[key]
	return ok, nil
}
