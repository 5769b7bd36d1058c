package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/playlister/internal/config"
	"github.com/and161185/playlister/internal/limiter"
	"github.com/and161185/playlister/internal/model"
	"github.com/and161185/playlister/internal/repository/memory"
	"github.com/and161185/playlister/internal/revoke"
)

func TestRedactURL(t *testing.T) {
	cases := map[string]string{
		"":                                 "",
		"postgres://app:s3cret@db:5432/pl": "postgres://app@db:5432/pl",
		"mongodb://root:pw@mongo:27017":    "mongodb://root@mongo:27017",
		"redis://:pw@cache:6379/0":         "redis://redacted@cache:6379/0",
		"postgres://db/pl?password=s3cret": "postgres://db/pl?password=redacted",
		"postgres://db/pl?sslmode=disable": "postgres://db/pl?sslmode=disable",
		"://not a url":                     "[redacted]",
	}
	for in, want := range cases {
		require.Equal(t, want, redactURL(in), in)
	}
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(&config.Config{AppEnv: "production", LogLevel: "warn"})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = newLogger(&config.Config{LogLevel: "loud"})
	require.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	log := zap.NewNop()
	require.Equal(t, "memory", newEngine(&config.Config{StorageEngine: config.EngineMemory}, log).Name())
	require.Equal(t, "postgresql", newEngine(&config.Config{StorageEngine: config.EnginePostgres}, log).Name())
	require.Equal(t, "mongodb", newEngine(&config.Config{StorageEngine: config.EngineMongo}, log).Name())
}

func TestSessionStores_InMemoryWithoutRedis(t *testing.T) {
	revoked, lim := sessionStores(&config.Config{LoginMaxFails: 3}, nil)
	require.IsType(t, &revoke.Memory{}, revoked)
	require.IsType(t, &limiter.Memory{}, lim)
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	e := memory.New()
	require.NoError(t, e.Connect(ctx))
	u, err := e.CreateUser(ctx, model.NewUser{FirstName: "A", LastName: "B", Email: "a@b.io", PasswordDigest: "d"})
	require.NoError(t, err)
	_, err = e.CreatePlaylist(ctx, model.NewPlaylist{Name: "p", OwnerEmail: u.Email})
	require.NoError(t, err)

	require.NoError(t, resetAll(ctx, e))

	_, err = e.FindUserByEmail(ctx, "a@b.io")
	require.Error(t, err)
	all, err := e.GetAllPlaylists(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestReset_RequiresConfirmation(t *testing.T) {
	t.Setenv("STORAGE_ENGINE", "memory")
	err := newApp().Run(context.Background(), []string{"playlisterd", "reset"})
	require.ErrorIs(t, err, errUsage)

	require.NoError(t, newApp().Run(context.Background(), []string{"playlisterd", "reset", "--yes"}))
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	err := newApp().Run(context.Background(), []string{"playlisterd", "migrate"})
	require.ErrorIs(t, err, errUsage)
}
