package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
)

// CreatePlaylist inserts a playlist document with an always-present songs array.
func (e *Engine) CreatePlaylist(ctx context.Context, in model.NewPlaylist) (*model.Playlist, error) {
	coll, err := e.collection(playlistsCollection)
	if err != nil {
		return nil, err
	}
	now := e.now()
	doc := playlistDoc{
		ID:         primitive.NewObjectID(),
		Name:       in.Name,
		OwnerEmail: in.OwnerEmail,
		Songs:      model.NonNilSongs(in.Songs),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("mongo: create playlist: %w", err)
	}
	return doc.toModel(), nil
}

// FindPlaylistByID loads a playlist by ObjectID.
func (e *Engine) FindPlaylistByID(ctx context.Context, id string) (*model.Playlist, error) {
	coll, err := e.collection(playlistsCollection)
	if err != nil {
		return nil, err
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var doc playlistDoc
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err = notFound(err); err == errs.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("mongo: find playlist: %w", err)
	}
	return doc.toModel(), nil
}

// FindPlaylistsByOwnerEmail lists playlists owned by email in creation order.
func (e *Engine) FindPlaylistsByOwnerEmail(ctx context.Context, email string) ([]model.Playlist, error) {
	return e.findPlaylists(ctx, bson.M{"ownerEmail": email})
}

// GetAllPlaylists lists every playlist in creation order.
func (e *Engine) GetAllPlaylists(ctx context.Context) ([]model.Playlist, error) {
	return e.findPlaylists(ctx, bson.M{})
}

func (e *Engine) findPlaylists(ctx context.Context, filter bson.M) ([]model.Playlist, error) {
	coll, err := e.collection(playlistsCollection)
	if err != nil {
		return nil, err
	}
	// ObjectIDs generated by this process increase monotonically.
	cur, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: list playlists: %w", err)
	}
	var docs []playlistDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: list playlists: %w", err)
	}
	out := make([]model.Playlist, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}

// UpdatePlaylist applies a $set of the present fields and returns the new document.
func (e *Engine) UpdatePlaylist(ctx context.Context, id string, upd model.PlaylistUpdate) (*model.Playlist, error) {
	if upd.Empty() {
		return e.FindPlaylistByID(ctx, id)
	}
	coll, err := e.collection(playlistsCollection)
	if err != nil {
		return nil, err
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var doc playlistDoc
	update := bson.M{"$set": playlistSet(upd, e.now())}
	if err := coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, returnAfter).Decode(&doc); err != nil {
		if err = notFound(err); err == errs.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("mongo: update playlist: %w", err)
	}
	return doc.toModel(), nil
}

// DeletePlaylist removes the playlist document if present.
func (e *Engine) DeletePlaylist(ctx context.Context, id string) error {
	coll, err := e.collection(playlistsCollection)
	if err != nil {
		return err
	}
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("mongo: delete playlist: %w", err)
	}
	return nil
}

// DeleteAllPlaylists empties the playlists collection.
func (e *Engine) DeleteAllPlaylists(ctx context.Context) error {
	coll, err := e.collection(playlistsCollection)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("mongo: delete all playlists: %w", err)
	}
	return nil
}
