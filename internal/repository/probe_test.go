package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/repository"
	"github.com/and161185/playlister/internal/repository/memory"
)

func TestProbe(t *testing.T) {
	ctx := context.Background()
	e := memory.New()
	require.ErrorIs(t, repository.Probe(ctx, e), errs.ErrNotInitialized)

	require.NoError(t, e.Connect(ctx))
	require.NoError(t, repository.Probe(ctx, e))

	require.NoError(t, e.Disconnect(ctx))
	require.Error(t, repository.Probe(ctx, e))
}
