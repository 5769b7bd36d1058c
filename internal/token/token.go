// Package token issues and verifies signed session tokens.
//
// Tokens are HS256 JWTs whose subject is the user id. Every token carries a
// random jti so that a single session can be revoked without rotating the key.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// ErrEmptySecret is returned by New when no signing key is configured.
var ErrEmptySecret = errors.New("token: empty signing secret")

// Claims is the verified content of a token.
type Claims struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token never expires
}

// Codec signs and verifies tokens with a shared secret.
type Codec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// New returns a codec. A zero ttl issues tokens without exp.
func New(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Codec{key: secret, ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured lifetime, zero for none.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue creates a signed token for userID.
func (c *Codec) Issue(userID string) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		ID:       ulid.Make().String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if c.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

// Verify checks signature, algorithm and expiry. Any failure yields false.
func (c *Codec) Verify(tok string) (Claims, bool) {
	if tok == "" {
		return Claims{}, false
	}
	var rc jwt.RegisteredClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	parsed, err := parser.ParseWithClaims(tok, &rc, func(*jwt.Token) (any, error) { return c.key, nil })
	if err != nil || !parsed.Valid || rc.Subject == "" {
		return Claims{}, false
	}
	out := Claims{UserID: rc.Subject, TokenID: rc.ID}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		out.ExpiresAt = rc.ExpiresAt.Time
	}
	return out, true
}
