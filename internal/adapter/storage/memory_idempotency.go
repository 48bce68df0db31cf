package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/library-lending/internal/port"
)

var _ port.IdempotencyRepository = (*MemoryIdempotency)(nil)

type idempotencyEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryIdempotency is the single-process stand-in for RedisAdapter.
type MemoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]idempotencyEntry
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryIdempotency(ttl time.Duration) *MemoryIdempotency {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &MemoryIdempotency{
		keys: make(map[string]idempotencyEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (m *MemoryIdempotency) Acquire(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.keys[key]; ok && now.Before(e.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	m.keys[key] = idempotencyEntry{token: token, expiresAt: now.Add(m.ttl)}
	return token, true, nil
}

func (m *MemoryIdempotency) Release(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.keys[key]; ok && e.token == token {
		delete(m.keys, key)
	}
	return nil
}
