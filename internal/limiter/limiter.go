// Package limiter defines interfaces and implementations for login rate limiting.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, email, client string) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, email, client string) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, email, client string) (bool, time.Duration, error)
}

// Policy configures a lockout: MaxFails failures within Window block for BlockFor.
// MaxFails <= 0 disables limiting.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// HashClient returns a stable hash of a client address so raw IPs are never stored.
func HashClient(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:8])
}

func key(email, client string) string { return email + "|" + HashClient(client) }

// Nop never blocks.
type Nop struct{}

func (Nop) Allow(context.Context, string, string) (bool, time.Duration, error) {
	return true, 0, nil
}

func (Nop) Success(context.Context, string, string) error { return nil }

func (Nop) Failure(context.Context, string, string) (bool, time.Duration, error) {
	return false, 0, nil
}

// sweepEvery bounds how often Failure scans for expired entries.
const sweepEvery = time.Minute

// Memory is an in-process sliding window with lockout.
type Memory struct {
	policy Policy
	now    func() time.Time

	mu    sync.Mutex
	state map[string]*attempts
	swept time.Time
}

type attempts struct {
	fails        int
	windowStart  time.Time
	blockedUntil time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs an in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, now: time.Now, state: make(map[string]*attempts)}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (m *Memory) Allow(_ context.Context, email, client string) (bool, time.Duration, error) {
	if m.policy.MaxFails <= 0 {
		return true, 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state[key(email, client)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); a.blockedUntil.After(now) {
		return false, a.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for (email, client).
func (m *Memory) Success(_ context.Context, email, client string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, key(email, client))
	return nil
}

// Failure records a failed attempt; may set a block until a future time.
func (m *Memory) Failure(_ context.Context, email, client string) (bool, time.Duration, error) {
	if m.policy.MaxFails <= 0 {
		return false, 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepLocked(now)
	k := key(email, client)
	a, ok := m.state[k]
	if !ok || now.Sub(a.windowStart) > m.policy.Window {
		a = &attempts{windowStart: now}
		m.state[k] = a
	}
	a.fails++
	if a.fails >= m.policy.MaxFails {
		a.fails = 0
		a.windowStart = now
		a.blockedUntil = now.Add(m.policy.BlockFor)
		return true, m.policy.BlockFor, nil
	}
	return false, 0, nil
}

// sweepLocked drops entries whose window and block have both run out.
func (m *Memory) sweepLocked(now time.Time) {
	if now.Sub(m.swept) < sweepEvery {
		return
	}
	m.swept = now
	for k, a := range m.state {
		if now.Sub(a.windowStart) > m.policy.Window && !a.blockedUntil.After(now) {
			delete(m.state, k)
		}
	}
}
