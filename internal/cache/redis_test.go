package cache

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_BadURL(t *testing.T) {
	_, err := Open(context.Background(), "not a redis url")
	require.ErrorContains(t, err, "parse redis url")
}

func TestOpen_Live(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := Open(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
