package crypto

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Algorithm names the digest format used for new passwords.
type Algorithm string

const (
	Argon2id Algorithm = "argon2id"
	Bcrypt   Algorithm = "bcrypt"
)

// Hasher turns plaintext passwords into digests and checks them.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, plaintext, digest string) bool
}

// PoolHasher runs hashing on at most N concurrent workers.
type PoolHasher struct {
	algo Algorithm
	sem  *semaphore.Weighted
}

var _ Hasher = (*PoolHasher)(nil)

// NewHasher returns a hasher producing algo digests. workers <= 0 means GOMAXPROCS.
func NewHasher(algo Algorithm, workers int) (*PoolHasher, error) {
	switch algo {
	case "":
		algo = Argon2id
	case Argon2id, Bcrypt:
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algo)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &PoolHasher{algo: algo, sem: semaphore.NewWeighted(int64(workers))}, nil
}

// Algorithm returns the algorithm used for new digests.
func (h *PoolHasher) Algorithm() Algorithm { return h.algo }

// Hash waits for a free worker and digests plaintext.
func (h *PoolHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	if h.algo == Bcrypt {
		return HashBcrypt(plaintext)
	}
	return HashArgon2id(plaintext)
}

// Verify waits for a free worker and checks plaintext against digest.
// A cancelled context counts as a mismatch.
func (h *PoolHasher) Verify(ctx context.Context, plaintext, digest string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)
	return VerifyPassword(plaintext, digest)
}
