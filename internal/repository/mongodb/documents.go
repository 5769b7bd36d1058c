package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/and161185/playlister/internal/model"
)

// userDoc keeps the field names already used by deployed collections.
type userDoc struct {
	ID           primitive.ObjectID   `bson:"_id"`
	FirstName    string               `bson:"firstName"`
	LastName     string               `bson:"lastName"`
	Email        string               `bson:"email"`
	PasswordHash string               `bson:"passwordHash"`
	Playlists    []primitive.ObjectID `bson:"playlists"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func (d *userDoc) toModel() *model.User {
	refs := make([]string, 0, len(d.Playlists))
	for _, id := range d.Playlists {
		refs = append(refs, id.Hex())
	}
	return &model.User{
		ID:             d.ID.Hex(),
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Email:          d.Email,
		PasswordDigest: d.PasswordHash,
		PlaylistRefs:   refs,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type playlistDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Name       string             `bson:"name"`
	OwnerEmail string             `bson:"ownerEmail"`
	Songs      []model.Song       `bson:"songs"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (d *playlistDoc) toModel() *model.Playlist {
	return &model.Playlist{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		OwnerEmail: d.OwnerEmail,
		Songs:      model.NonNilSongs(d.Songs),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// userSet builds the $set document for the present fields of upd.
func userSet(upd model.UserUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if upd.FirstName != nil {
		set["firstName"] = *upd.FirstName
	}
	if upd.LastName != nil {
		set["lastName"] = *upd.LastName
	}
	if upd.PasswordDigest != nil {
		set["passwordHash"] = *upd.PasswordDigest
	}
	return set
}

// playlistSet builds the $set document for the present fields of upd.
// The songs array is always written whole.
func playlistSet(upd model.PlaylistUpdate, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Songs != nil {
		set["songs"] = model.NonNilSongs(*upd.Songs)
	}
	return set
}
