package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/migrate"
	"github.com/and161185/playlister/internal/repository"
)

var _ repository.Engine = (*Engine)(nil)

// Engine implements repository.Engine on PostgreSQL.
//
// Users and playlists live in their own tables; songs are a jsonb column and the
// user -> playlist references are rows in user_playlists.
type Engine struct {
	dsn string
	log *zap.Logger

	mu sync.RWMutex
	db *DB
}

// New constructs an engine for dsn. Nothing is opened until Connect.
func New(dsn string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{dsn: dsn, log: log}
}

// NewWithDB wraps an already opened pool. The engine counts as connected.
func NewWithDB(db *DB) *Engine {
	return &Engine{log: zap.NewNop(), db: db}
}

// Name implements repository.Engine.
func (e *Engine) Name() string { return "postgresql" }

// Connect applies pending migrations and opens the pool.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return nil
	}
	if e.dsn == "" {
		return fmt.Errorf("%w: postgres: empty database url", errs.ErrConnection)
	}
	if err := migrate.Up(ctx, e.dsn); err != nil {
		return fmt.Errorf("%w: postgres: migrate: %w", errs.ErrConnection, err)
	}
	db, err := Open(ctx, e.dsn)
	if err != nil {
		return fmt.Errorf("%w: postgres: %w", errs.ErrConnection, err)
	}
	e.db = db
	e.log.Info("postgres connected")
	return nil
}

// Disconnect closes the pool. Repeated calls are no-ops.
func (e *Engine) Disconnect(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	e.db.Close()
	e.db = nil
	e.log.Info("postgres disconnected")
	return nil
}

func (e *Engine) pool() (PgxPool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return nil, errs.ErrNotInitialized
	}
	return e.db.Pool, nil
}

func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.FromString(id)
	if err != nil {
		return uuid.Nil, errs.ErrInvalidID
	}
	return u, nil
}

// nullable turns an absent optional field into SQL NULL for COALESCE merges.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
