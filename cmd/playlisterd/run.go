package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/playlister/internal/cache"
	"github.com/and161185/playlister/internal/config"
	"github.com/and161185/playlister/internal/crypto"
	"github.com/and161185/playlister/internal/limiter"
	"github.com/and161185/playlister/internal/metrics"
	"github.com/and161185/playlister/internal/migrate"
	"github.com/and161185/playlister/internal/repository"
	"github.com/and161185/playlister/internal/repository/instrumented"
	"github.com/and161185/playlister/internal/repository/memory"
	"github.com/and161185/playlister/internal/repository/mongodb"
	"github.com/and161185/playlister/internal/repository/postgres"
	"github.com/and161185/playlister/internal/revoke"
	grpcserver "github.com/and161185/playlister/internal/server/grpc"
	httpserver "github.com/and161185/playlister/internal/server/http"
	"github.com/and161185/playlister/internal/service"
	"github.com/and161185/playlister/internal/token"
)

const probeInterval = 10 * time.Second

func runServe(ctx context.Context, _ *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: invalid configuration: %w", errUsage, err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.AppEnv),
		zap.String("engine", cfg.StorageEngine),
	)

	reg := metrics.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	engine := instrumented.Wrap(newEngine(cfg, log), m)
	if err := engine.Connect(ctx); err != nil {
		log.Error("storage connect failed", zap.String("target", storageTarget(cfg)), zap.Error(err))
		return err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.Open(ctx, cfg.RedisURL)
		if err != nil {
			_ = engine.Disconnect(context.Background())
			log.Error("redis connect failed", zap.String("target", redactURL(cfg.RedisURL)), zap.Error(err))
			return err
		}
		log.Info("redis connected", zap.String("target", redactURL(cfg.RedisURL)))
	}
	revoked, lim := sessionStores(cfg, rdb)

	hasher, err := crypto.NewHasher(crypto.Algorithm(cfg.HashAlgo), cfg.HashWorkers)
	if err != nil {
		return err
	}
	codec, err := token.New([]byte(cfg.JWTSecret), cfg.SessionTTL)
	if err != nil {
		return err
	}
	cookie, err := cfg.Cookie()
	if err != nil {
		return err
	}

	identity := service.NewIdentityService(engine, hasher, codec, revoked, lim, log.Named("identity"))
	playlists := service.NewPlaylistService(engine, engine, log.Named("playlists"))
	probe := func(ctx context.Context) error { return repository.Probe(ctx, engine) }

	router := httpserver.NewRouter(httpserver.Deps{
		Identity:     identity,
		Playlists:    playlists,
		Log:          log.Named("http"),
		Cookie:       cookie,
		SessionTTL:   cfg.SessionTTL,
		CORSOrigin:   cfg.CORSOrigin,
		TrustProxy:   cfg.TrustProxy,
		AuthRate:     cfg.AuthRatePerSecond,
		AuthBurst:    cfg.AuthBurst,
		MaxBodyBytes: cfg.MaxRequestBodySize,
		Metrics:      m,
		Gatherer:     reg,
		Ready:        probe,
	})
	srv := httpserver.NewServer(router, cfg.HTTPAddr, cfg.ReadTimeout, cfg.WriteTimeout, cfg.ShutdownTimeout, log)
	srv.OnShutdown("storage", engine.Disconnect)
	if rdb != nil {
		srv.OnShutdown("redis", func(context.Context) error { return rdb.Close() })
	}

	adminLn, err := net.Listen("tcp", cfg.AdminAddr)
	if err != nil {
		_ = engine.Disconnect(context.Background())
		return fmt.Errorf("admin listen %s: %w", cfg.AdminAddr, err)
	}
	admin := grpcserver.NewAdmin(probe, probeInterval, log.Named("admin"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return admin.Serve(gctx, adminLn) })
	if err := g.Wait(); err != nil {
		log.Error("server error", zap.Error(err))
		_ = engine.Disconnect(context.Background())
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func runMigrate(ctx context.Context, _ *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is required", errUsage)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	defer func() { _ = log.Sync() }()

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	v, err := migrate.Version(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	log.Info("migrations applied", zap.String("target", redactURL(cfg.DatabaseURL)), zap.Int64("version", v))
	return nil
}

func runReset(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: reset deletes all data; pass --yes to confirm", errUsage)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("%w: invalid configuration: %w", errUsage, err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	defer func() { _ = log.Sync() }()

	engine := newEngine(cfg, log)
	if err := engine.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = engine.Disconnect(context.Background()) }()

	if err := resetAll(ctx, engine); err != nil {
		return err
	}
	log.Info("storage reset", zap.String("engine", engine.Name()))
	return nil
}

// resetAll clears playlists first so no playlist outlives its owner.
func resetAll(ctx context.Context, e repository.Engine) error {
	if err := e.DeleteAllPlaylists(ctx); err != nil {
		return fmt.Errorf("delete playlists: %w", err)
	}
	if err := e.DeleteAllUsers(ctx); err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	return zc.Build()
}

func newEngine(cfg *config.Config, log *zap.Logger) repository.Engine {
	switch cfg.StorageEngine {
	case config.EnginePostgres:
		return postgres.New(cfg.DatabaseURL, log.Named("postgres"))
	case config.EngineMemory:
		return memory.New()
	default:
		return mongodb.New(cfg.MongoURI, cfg.MongoDatabase, log.Named("mongodb"))
	}
}

// sessionStores shares Redis across processes when configured, else keeps state in memory.
func sessionStores(cfg *config.Config, rdb *redis.Client) (revoke.Store, limiter.Limiter) {
	policy := limiter.Policy{Window: cfg.LoginWindow, MaxFails: cfg.LoginMaxFails, BlockFor: cfg.LoginBlock}
	if rdb == nil {
		return revoke.NewMemory(), limiter.NewMemory(policy)
	}
	return revoke.NewRedis(rdb), limiter.NewRedis(rdb, policy)
}

func storageTarget(cfg *config.Config) string {
	switch cfg.StorageEngine {
	case config.EnginePostgres:
		return redactURL(cfg.DatabaseURL)
	case config.EngineMongo:
		return redactURL(cfg.MongoURI)
	default:
		return cfg.StorageEngine
	}
}

// redactURL drops the password from a connection URL before it is logged.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}
	if parsed.User != nil {
		name := parsed.User.Username()
		if name == "" {
			name = "redacted"
		}
		parsed.User = url.User(name)
	}
	q := parsed.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}
