package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/and161185/playlister/internal/errs"
	"github.com/and161185/playlister/internal/model"
)

// CreateUser inserts a user document; the unique email index rejects duplicates.
func (e *Engine) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	coll, err := e.collection(usersCollection)
	if err != nil {
		return nil, err
	}
	now := e.now()
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: in.PasswordDigest,
		Playlists:    []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errs.ErrAlreadyExists
		}
		return nil, fmt.Errorf("mongo: create user: %w", err)
	}
	return doc.toModel(), nil
}

// FindUserByID loads a user by ObjectID.
func (e *Engine) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := e.collection(usersCollection); err != nil {
		return nil, err
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return e.findUser(ctx, bson.M{"_id": oid})
}

// FindUserByEmail loads a user by email.
func (e *Engine) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return e.findUser(ctx, bson.M{"email": email})
}

func (e *Engine) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	coll, err := e.collection(usersCollection)
	if err != nil {
		return nil, err
	}
	var doc userDoc
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err = notFound(err); err == errs.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	return doc.toModel(), nil
}

// UpdateUser applies a $set of the present fields and returns the new document.
func (e *Engine) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if _, err := e.collection(usersCollection); err != nil {
		return nil, err
	}
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if upd.Empty() {
		return e.findUser(ctx, bson.M{"_id": oid})
	}
	return e.modifyUser(ctx, oid, bson.M{"$set": userSet(upd, e.now())})
}

// AddPlaylistToUser pushes the playlist id onto the user's playlists array.
func (e *Engine) AddPlaylistToUser(ctx context.Context, userID, playlistID string) (*model.User, error) {
	if _, err := e.collection(usersCollection); err != nil {
		return nil, err
	}
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	pid, err := parseID(playlistID)
	if err != nil {
		return nil, err
	}
	return e.modifyUser(ctx, uid, bson.M{
		"$push": bson.M{"playlists": pid},
		"$set":  bson.M{"updatedAt": e.now()},
	})
}

func (e *Engine) modifyUser(ctx context.Context, oid primitive.ObjectID, update bson.M) (*model.User, error) {
	coll, err := e.collection(usersCollection)
	if err != nil {
		return nil, err
	}
	var doc userDoc
	err = coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, returnAfter).Decode(&doc)
	if err != nil {
		if err = notFound(err); err == errs.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("mongo: update user: %w", err)
	}
	return doc.toModel(), nil
}

// DeleteUser removes the user document if present.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	coll, err := e.collection(usersCollection)
	if err != nil {
		return err
	}
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("mongo: delete user: %w", err)
	}
	return nil
}

// DeleteAllUsers empties the users collection, keeping its indexes.
func (e *Engine) DeleteAllUsers(ctx context.Context) error {
	coll, err := e.collection(usersCollection)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("mongo: delete all users: %w", err)
	}
	return nil
}
