package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(nil, 0)
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	c, err := New(secret, 0)
	require.NoError(t, err)

	tok, err := c.Issue("user-1")
	require.NoError(t, err)

	cl, ok := c.Verify(tok)
	require.True(t, ok)
	require.Equal(t, "user-1", cl.UserID)
	require.NotEmpty(t, cl.TokenID)
	require.False(t, cl.IssuedAt.IsZero())
	require.True(t, cl.ExpiresAt.IsZero())

	tok2, err := c.Issue("user-1")
	require.NoError(t, err)
	cl2, ok := c.Verify(tok2)
	require.True(t, ok)
	require.NotEqual(t, cl.TokenID, cl2.TokenID)
}

func TestVerify_Rejects(t *testing.T) {
	c, err := New(secret, 0)
	require.NoError(t, err)
	tok, err := c.Issue("user-1")
	require.NoError(t, err)

	other, err := New([]byte("other-secret"), 0)
	require.NoError(t, err)
	foreign, err := other.Issue("user-1")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString(secret)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ID: "x"}).
		SignedString(secret)
	require.NoError(t, err)

	sig := []byte(tok)
	mid := len(sig) - 10
	if sig[mid] == 'A' {
		sig[mid] = 'B'
	} else {
		sig[mid] = 'A'
	}

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"truncated":    tok[:len(tok)-5],
		"tampered":     string(sig),
		"payload only": strings.Split(tok, ".")[1],
		"wrong key":    foreign,
		"alg none":     none,
		"wrong alg":    hs512,
		"missing sub":  noSubject,
	}
	for name, in := range cases {
		_, ok := c.Verify(in)
		require.False(t, ok, name)
	}
}

func TestVerify_Expiry(t *testing.T) {
	c, err := New(secret, time.Hour)
	require.NoError(t, err)
	base := time.Now()
	c.now = func() time.Time { return base }

	tok, err := c.Issue("user-1")
	require.NoError(t, err)

	cl, ok := c.Verify(tok)
	require.True(t, ok)
	require.WithinDuration(t, base.Add(time.Hour), cl.ExpiresAt, time.Second)

	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, ok = c.Verify(tok)
	require.False(t, ok)
}
