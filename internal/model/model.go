// Package model defines domain entities used by services and repositories.
package model

import "time"

// Song is a playlist entry. Songs have no identity of their own.
type Song struct {
	Title     string `json:"title" bson:"title"`
	Artist    string `json:"artist" bson:"artist"`
	Year      int    `json:"year" bson:"year"`
	YouTubeID string `json:"youTubeId" bson:"youTubeId"`
}

// User represents an account. PasswordDigest is never the raw password.
type User struct {
	ID             string // engine-assigned, opaque
	FirstName      string
	LastName       string
	Email          string   // unique
	PasswordDigest string   // argon2id or bcrypt digest
	PlaylistRefs   []string // owned playlist ids, in insertion order
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Public strips the digest and references.
func (u *User) Public() PublicUser {
	return PublicUser{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

// PublicUser is the part of a user that may leave the core.
type PublicUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// NewUser carries the fields supplied when creating a user.
type NewUser struct {
	FirstName      string
	LastName       string
	Email          string
	PasswordDigest string
}

// UserUpdate is a field-level merge; nil fields are left untouched.
// Email is immutable once registered.
type UserUpdate struct {
	FirstName      *string
	LastName       *string
	PasswordDigest *string
}

// Empty reports whether no field is set.
func (u UserUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.PasswordDigest == nil
}

// Playlist is a named, ordered list of songs owned by a user (by email).
type Playlist struct {
	ID         string
	Name       string
	OwnerEmail string
	Songs      []Song // never nil after a read
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewPlaylist carries the fields supplied when creating a playlist.
type NewPlaylist struct {
	Name       string
	OwnerEmail string
	Songs      []Song
}

// PlaylistUpdate is a field-level merge. Songs, when set, replaces the whole sequence.
type PlaylistUpdate struct {
	Name  *string
	Songs *[]Song
}

// Empty reports whether no field is set.
func (u PlaylistUpdate) Empty() bool {
	return u.Name == nil && u.Songs == nil
}

// PlaylistPair is the id/name summary used for listings.
type PlaylistPair struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// NonNilSongs returns s, or an empty slice when s is nil.
func NonNilSongs(s []Song) []Song {
	if s == nil {
		return []Song{}
	}
	return s
}
