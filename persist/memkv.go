package persist

import (
	"context"
	"sync"
)

// MemKVConfig configures an in-memory KV.
type MemKVConfig struct {
	// MaxBytes caps the total size of keys plus values (0 = unlimited).
	MaxBytes int
}

// MemKV is a thread-safe in-memory KV for tests and ephemeral sessions.
type MemKV struct {
	mu       sync.RWMutex
	values   map[string]string
	maxBytes int
	used     int
}

// NewMemKV creates an empty in-memory KV.
func NewMemKV(cfg MemKVConfig) *MemKV {
	return &MemKV{
		values:   make(map[string]string),
		maxBytes: cfg.MaxBytes,
	}
}

func (s *MemKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemKV) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used
	if old, ok := s.values[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if s.maxBytes > 0 && used > s.maxBytes {
		return ErrQuotaExceeded
	}
	s.values[key] = value
	s.used = used
	return nil
}

func (s *MemKV) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.values[key]; ok {
		s.used -= len(key) + len(old)
		delete(s.values, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *MemKV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Compile-time interface check.
var _ KV = (*MemKV)(nil)
