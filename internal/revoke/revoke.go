// Package revoke tracks session token ids that were logged out before expiry.
package revoke

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Forever is the retention for tokens that carry no expiry.
const Forever time.Duration = 0

// Store is a denylist of token ids.
type Store interface {
	// Revoke denies id for ttl. Forever keeps it until the store is cleared.
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	// IsRevoked reports whether id was revoked and has not aged out.
	IsRevoked(ctx context.Context, id string) (bool, error)
}

const keyPrefix = "session:revoked:"

// Redis keeps the denylist in Redis so it survives restarts and is shared by replicas.
type Redis struct {
	client redis.UniversalClient
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an opened client.
func NewRedis(client redis.UniversalClient) *Redis { return &Redis{client: client} }

// Revoke implements Store.
func (r *Redis) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	return r.client.Set(ctx, keyPrefix+id, 1, ttl).Err()
}

// IsRevoked implements Store.
func (r *Redis) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Memory is a process-local denylist.
type Memory struct {
	mu  sync.Mutex
	ids map[string]time.Time // zero time means no expiry
	now func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]time.Time), now: time.Now}
}

// Revoke implements Store.
func (m *Memory) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var until time.Time
	if ttl > 0 {
		until = m.now().Add(ttl)
	}
	m.ids[id] = until
	m.sweepLocked()
	return nil
}

// IsRevoked implements Store.
func (m *Memory) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.ids[id]
	if !ok {
		return false, nil
	}
	if !until.IsZero() && !m.now().Before(until) {
		delete(m.ids, id)
		return false, nil
	}
	return true, nil
}

func (m *Memory) sweepLocked() {
	now := m.now()
	for id, until := range m.ids {
		if !until.IsZero() && !now.Before(until) {
			delete(m.ids, id)
		}
	}
}
