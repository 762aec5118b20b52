package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound indicates a key has never been written or was deleted.
var ErrNotFound = errors.New("record not found")

// Persisted key names. They are shared with the browser client and must not change.
const (
	KeyAccessToken       = "aratiri_accessToken"
	KeyRefreshToken      = "aratiri_refreshToken"
	KeyPreferredCurrency = "preferredCurrency"
	KeyBalanceVisible    = "balanceVisible"
	KeyTheme             = "aratiri_theme"
)

// KV captures the client-side persistence operations the session and preference
// layers need. SetMany and Delete must apply all keys or none.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Ensure Memory satisfies the KV interface at compile time.
var _ KV = (*Memory)(nil)

// Memory is a process-local KV used by tests and by the `memory` store setting.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetMany writes every pair under one lock.
func (m *Memory) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

// Delete removes keys; missing keys are not an error.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
