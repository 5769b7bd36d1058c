// Package mongodb contains the MongoDB implementation of repository.Engine.
//
// Users and playlists are independent collections. Links between them are plain
// values (ownerEmail on playlists, an ObjectID array on users) that the engine
// only ever touches through targeted $set/$push updates.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/repository"
)

var _ repository.Engine = (*Engine)(nil)

const (
	usersCollection     = "users"
	playlistsCollection = "playlists"

	connectTimeout = 10 * time.Second
)

// Engine implements repository.Engine on MongoDB.
type Engine struct {
	uri      string
	database string
	log      *zap.Logger

	mu     sync.RWMutex
	client *mongo.Client // nil when the database was injected
	db     *mongo.Database

	now func() time.Time
}

// New constructs an engine for uri/database. Nothing is opened until Connect.
func New(uri, database string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{uri: uri, database: database, log: log, now: utcNow}
}

// NewWithDatabase wraps an already connected database handle. The engine does not
// own the client and Disconnect only detaches from it.
func NewWithDatabase(db *mongo.Database) *Engine {
	return &Engine{log: zap.NewNop(), db: db, now: utcNow}
}

// Mongo keeps millisecond precision.
func utcNow() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// Name implements repository.Engine.
func (e *Engine) Name() string { return "mongodb" }

// Connect dials the server, verifies it with a ping and ensures indexes.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return nil
	}
	if e.uri == "" || e.database == "" {
		return fmt.Errorf("%w: mongo: uri and database are required", errs.ErrConnection)
	}

	opts := options.Client().ApplyURI(e.uri).SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: mongo: %w", errs.ErrConnection, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("%w: mongo: ping: %w", errs.ErrConnection, err)
	}
	db := client.Database(e.database)
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("%w: mongo: indexes: %w", errs.ErrConnection, err)
	}

	e.client, e.db = client, db
	e.log.Info("mongo connected", zap.String("database", e.database))
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(playlistsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ownerEmail", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("owner_email"),
	})
	return err
}

// Disconnect closes the client. Repeated calls are no-ops.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	client := e.client
	e.client, e.db = nil, nil
	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("mongo: disconnect: %w", err)
	}
	e.log.Info("mongo disconnected")
	return nil
}

func (e *Engine) collection(name string) (*mongo.Collection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.db == nil {
		return nil, errs.ErrNotInitialized
	}
	return e.db.Collection(name), nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.ErrInvalidID
	}
	return oid, nil
}

// notFound maps the driver's empty-result error onto errs.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.ErrNotFound
	}
	return err
}

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)
